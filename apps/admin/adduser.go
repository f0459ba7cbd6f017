package main

import (
	"context"

	"github.com/eduflow/stms/core"
	"github.com/eduflow/stms/core/user"
)

// addUser updates or creates an account. Accounts created here are active
// and verified; -admin grants every role.
func (cli *commandLine) addUser(uname, email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrRepo.GetUserByUsernameOrEmail(ctx, uname)
	if err != nil {
		if err != user.ErrNotFound {
			return err
		}
		roles := []string{user.RoleParent}
		if isAdmin {
			roles = user.AllRoles
		}
		_, err = cli.usrSvc.Create(ctx, user.NewUser{
			Name:     uname,
			Username: uname,
			Email:    email,
			Password: pwd,
			Roles:    roles,
		}, nil)
		return err
	}

	if isAdmin {
		role, err := cli.usrRepo.GetRoleByName(ctx, user.RoleAdmin)
		if err != nil {
			return err
		}
		if err = cli.usrRepo.AssignRole(ctx, usr.ID, role.ID, nil); err != nil {
			return err
		}
	}
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	active := true
	usr.UpdatedAt = user.NowFunc().UTC()
	_, err = cli.usrRepo.UpdateUser(ctx, usr, &active)
	return err
}
