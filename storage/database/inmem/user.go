package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/eduflow/stms/core/user"
)

var userPKCount int

type userRepository struct {
	users *userTable
	roles *roleTable
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{users: db.user, roles: db.roles}
}

func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.users.table))
	for _, u := range repo.users.table {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

func (repo *userRepository) rolesFor(userID int) []string {
	var names []string
	for _, ra := range repo.users.assignments {
		if ra.UserID == userID {
			if role, ok := repo.roles.table[ra.RoleID]; ok {
				names = append(names, role.Name)
			}
		}
	}
	return names
}

func (repo *userRepository) CheckUsernameUniqueness(_ context.Context, username, email string, excludedUsers ...user.User) error {
	repo.users.mutex.RLock()
	defer repo.users.mutex.RUnlock()

	for _, usr := range repo.query() {
		if isExcluded(usr, excludedUsers) {
			continue
		}
		if usr.Username == username {
			return user.ErrUsernameExists
		}
		if usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func isExcluded(usr user.User, excluded []user.User) bool {
	for _, ex := range excluded {
		if ex.ID == usr.ID {
			return true
		}
	}
	return false
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.users.mutex.Lock()
	defer repo.users.mutex.Unlock()

	userPKCount++
	usr.ID = userPKCount
	repo.users.table[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) QueryAllUsers(_ context.Context) ([]user.User, error) {
	repo.users.mutex.RLock()
	defer repo.users.mutex.RUnlock()

	users := repo.query()
	for i := range users {
		users[i].Roles = repo.rolesFor(users[i].ID)
	}
	return users, nil
}

func (repo *userRepository) GetUserByID(_ context.Context, id int) (user.User, error) {
	repo.users.mutex.RLock()
	defer repo.users.mutex.RUnlock()

	if usr, ok := repo.users.table[id]; ok {
		found := *usr
		found.Roles = repo.rolesFor(found.ID)
		return found, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByUsername(_ context.Context, username string) (user.User, error) {
	return repo.find(func(usr user.User) bool { return usr.Username == username })
}

func (repo *userRepository) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	return repo.find(func(usr user.User) bool { return usr.Email == email })
}

func (repo *userRepository) GetUserByUsernameOrEmail(_ context.Context, username string) (user.User, error) {
	return repo.find(func(usr user.User) bool { return usr.Username == username || usr.Email == username })
}

func (repo *userRepository) find(match func(user.User) bool) (user.User, error) {
	repo.users.mutex.RLock()
	defer repo.users.mutex.RUnlock()

	for _, usr := range repo.query() {
		if match(usr) {
			usr.Roles = repo.rolesFor(usr.ID)
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) FilterUsers(_ context.Context, filter user.QueryFilter) ([]user.User, error) {
	repo.users.mutex.RLock()
	defer repo.users.mutex.RUnlock()

	var users []user.User
	search := strings.ToLower(filter.Search)
	for _, usr := range repo.query() {
		usr.Roles = repo.rolesFor(usr.ID)
		if search != "" &&
			!strings.Contains(strings.ToLower(usr.Name), search) &&
			!strings.Contains(strings.ToLower(usr.Username), search) &&
			!strings.Contains(strings.ToLower(usr.Email), search) {
			continue
		}
		if filter.Roles != nil && !hasAnyRole(usr, filter.Roles) {
			continue
		}
		if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
			continue
		}
		if filter.IsVerified != nil && usr.IsVerified != *filter.IsVerified {
			continue
		}
		if !filter.CreatedFrom.IsZero() && usr.CreatedAt.Before(filter.CreatedFrom) {
			continue
		}
		if !filter.CreatedTo.IsZero() && usr.CreatedAt.After(filter.CreatedTo) {
			continue
		}
		users = append(users, usr)
	}
	return users, nil
}

func hasAnyRole(usr user.User, roles []string) bool {
	for _, role := range roles {
		if usr.HasRole(role) {
			return true
		}
	}
	return false
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User, isActive *bool) (user.User, error) {
	repo.users.mutex.Lock()
	defer repo.users.mutex.Unlock()

	// only save set fields
	origUsr, ok := repo.users.table[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if usr.Name != "" {
		origUsr.Name = usr.Name
	}
	if usr.Username != "" {
		origUsr.Username = usr.Username
	}
	if usr.Email != "" {
		origUsr.Email = usr.Email
	}
	if len(usr.PasswordHash) > 0 {
		origUsr.PasswordHash = usr.PasswordHash
	}
	if isActive != nil {
		origUsr.IsActive = *isActive
	}
	origUsr.UpdatedAt = usr.UpdatedAt

	updated := *origUsr
	updated.Roles = repo.rolesFor(updated.ID)
	return updated, nil
}

func (repo *userRepository) DeleteUsersByID(_ context.Context, ids ...int) error {
	repo.users.mutex.Lock()
	defer repo.users.mutex.Unlock()

	for _, id := range ids {
		delete(repo.users.table, id)
	}
	return nil
}

func (repo *userRepository) GetRoleByName(_ context.Context, name string) (user.Role, error) {
	repo.roles.mutex.RLock()
	defer repo.roles.mutex.RUnlock()

	for _, role := range repo.roles.table {
		if role.Name == name {
			return *role, nil
		}
	}
	return user.Role{}, user.ErrRoleNotFound
}

func (repo *userRepository) Roles(_ context.Context) ([]user.Role, error) {
	repo.roles.mutex.RLock()
	defer repo.roles.mutex.RUnlock()

	roles := make([]user.Role, 0, len(repo.roles.table))
	for _, role := range repo.roles.table {
		roles = append(roles, *role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Level < roles[j].Level })
	return roles, nil
}

func (repo *userRepository) AssignRole(_ context.Context, userID, roleID int, assignedBy *int) error {
	repo.users.mutex.Lock()
	defer repo.users.mutex.Unlock()

	for _, ra := range repo.users.assignments {
		if ra.UserID == userID && ra.RoleID == roleID {
			return nil
		}
	}
	ra := user.RoleAssignment{
		ID:         len(repo.users.assignments) + 1,
		UserID:     userID,
		RoleID:     roleID,
		AssignedAt: time.Now().UTC(),
	}
	if assignedBy != nil {
		ra.AssignedBy.SetValid(*assignedBy)
	}
	repo.users.assignments = append(repo.users.assignments, ra)
	return nil
}

func (repo *userRepository) RevokeRole(_ context.Context, userID, roleID int) error {
	repo.users.mutex.Lock()
	defer repo.users.mutex.Unlock()

	kept := repo.users.assignments[:0]
	for _, ra := range repo.users.assignments {
		if ra.UserID == userID && ra.RoleID == roleID {
			continue
		}
		kept = append(kept, ra)
	}
	repo.users.assignments = kept
	return nil
}

func (repo *userRepository) ConsumeOTP(_ context.Context, userID int, code string) (bool, error) {
	repo.users.mutex.Lock()
	defer repo.users.mutex.Unlock()

	usr, ok := repo.users.table[userID]
	if !ok {
		return false, user.ErrNotFound
	}
	if !usr.OTPCode.Valid || !user.OTPMatches(usr.OTPCode.String, code) {
		return false, nil
	}
	usr.OTPCode.Valid = false
	usr.OTPCode.String = ""
	usr.IsVerified = true
	usr.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (repo *userRepository) SetLastLogin(_ context.Context, userID int, at time.Time) error {
	repo.users.mutex.Lock()
	defer repo.users.mutex.Unlock()

	usr, ok := repo.users.table[userID]
	if !ok {
		return user.ErrNotFound
	}
	usr.LastLogin.SetValid(at)
	return nil
}
