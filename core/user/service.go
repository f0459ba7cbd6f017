package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/eduflow/stms/core"
)

var (
	// errors
	ErrNotFound       = errors.New("user not found")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
	ErrRoleNotFound   = errors.New("invalid role selection")
	ErrOTPMismatch    = errors.New("invalid OTP code")

	// for mocking
	NowFunc = time.Now
)

type (
	Repository interface {
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, user User) (User, error)
		QueryAllUsers(ctx context.Context) ([]User, error)
		GetUserByID(ctx context.Context, id int) (User, error)
		GetUserByUsername(ctx context.Context, username string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		GetUserByUsernameOrEmail(ctx context.Context, username string) (User, error)
		// FilterUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		FilterUsers(ctx context.Context, filter QueryFilter) ([]User, error)
		UpdateUser(ctx context.Context, user User, isActive *bool) (User, error)
		DeleteUsersByID(ctx context.Context, ids ...int) error

		GetRoleByName(ctx context.Context, name string) (Role, error)
		Roles(ctx context.Context) ([]Role, error)
		AssignRole(ctx context.Context, userID, roleID int, assignedBy *int) error
		RevokeRole(ctx context.Context, userID, roleID int) error

		// ConsumeOTP atomically compares the stored code with the provided one
		// and, on match, clears it and marks the user verified. It reports
		// whether the code matched.
		ConsumeOTP(ctx context.Context, userID int, code string) (bool, error)
		SetLastLogin(ctx context.Context, userID int, at time.Time) error
	}

	Service interface {
		Register(ctx context.Context, nr NewRegistration) (User, error)
		VerifyOTP(ctx context.Context, ov OTPVerification) (User, error)
		RecordLogin(ctx context.Context, usr *User) error
		CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error
		Create(ctx context.Context, nu NewUser, createdBy *int) (User, error)
		QueryAll(ctx context.Context) ([]User, error)
		GetByID(ctx context.Context, id int) (User, error)
		GetByUsername(ctx context.Context, uname string) (User, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		Roles(ctx context.Context) ([]Role, error)
		Filter(ctx context.Context, filter QueryFilter) ([]User, error)
		Update(ctx context.Context, id int, uu UpdateUser, updatedBy *int) (User, error)
		Delete(ctx context.Context, ids ...int) error
	}

	service struct {
		repo     Repository
		mailSvc  core.EmailService
		logger   core.Logger
		appName  string
		syncMail bool // send OTP mail synchronously (tests)
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService, logger core.Logger, appName string) Service {
	return &service{
		repo:    repo,
		mailSvc: mailSvc,
		logger:  logger,
		appName: appName,
	}
}

// NewServiceMock returns a Service that delivers OTP mail synchronously so
// tests can observe sent messages without sleeping.
func NewServiceMock(repo Repository, mailSvc core.EmailService, logger core.Logger) Service {
	return &service{
		repo:     repo,
		mailSvc:  mailSvc,
		logger:   logger,
		appName:  "EduFlow",
		syncMail: true,
	}
}

func (svc *service) CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(ctx, uname, email, exclUsers...); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

// Register creates an unverified account with a fresh OTP code and mails the
// code to the new address. The account cannot log in until VerifyOTP succeeds.
func (svc *service) Register(ctx context.Context, nr NewRegistration) (User, error) {
	role, err := svc.repo.GetRoleByName(ctx, nr.Role)
	if err != nil {
		if errors.Cause(err) == ErrRoleNotFound {
			return User{}, core.NewValidationError(err, core.FieldError{Field: "role", Error: err.Error()})
		}
		return User{}, err
	}

	code, err := GenerateOTP()
	if err != nil {
		return User{}, err
	}

	now := NowFunc().UTC()
	usr := User{
		Name:       nr.FullName,
		Username:   nr.Username,
		Email:      nr.Email,
		IsActive:   true,
		IsVerified: false,
		Roles:      []string{role.Name},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	usr.OTPCode.SetValid(code)
	if err = usr.SetPassword(nr.Password); err != nil {
		return User{}, err
	}

	usr, err = svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, err
	}
	if err = svc.repo.AssignRole(ctx, usr.ID, role.ID, nil); err != nil {
		return User{}, err
	}

	svc.sendOTPMail(usr, code)
	return usr, nil
}

// VerifyOTP activates the account if the provided code matches. A code is
// consumed on success and can never be replayed; once the account is
// verified the stored code is gone, so every further attempt fails.
func (svc *service) VerifyOTP(ctx context.Context, ov OTPVerification) (User, error) {
	usr, err := svc.repo.GetUserByUsername(ctx, ov.Username)
	if err != nil {
		return User{}, err
	}

	ok, err := svc.repo.ConsumeOTP(ctx, usr.ID, ov.OTPCode)
	if err != nil {
		return User{}, err
	}
	if !ok {
		return User{}, ErrOTPMismatch
	}
	return svc.repo.GetUserByID(ctx, usr.ID)
}

// RecordLogin stamps last_login on a successful authentication.
func (svc *service) RecordLogin(ctx context.Context, usr *User) error {
	now := NowFunc().UTC()
	if err := svc.repo.SetLastLogin(ctx, usr.ID, now); err != nil {
		return err
	}
	usr.LastLogin.SetValid(now)
	return nil
}

// Create is the admin path; accounts created here are verified from the start.
func (svc *service) Create(ctx context.Context, nu NewUser, createdBy *int) (User, error) {
	now := NowFunc().UTC()
	usr := User{
		Name:       nu.Name,
		Username:   nu.Username,
		Email:      nu.Email,
		IsActive:   true,
		IsVerified: true,
		Roles:      nu.Roles,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, err
	}
	for _, name := range nu.Roles {
		role, err := svc.repo.GetRoleByName(ctx, name)
		if err != nil {
			return User{}, err
		}
		if err = svc.repo.AssignRole(ctx, usr.ID, role.ID, createdBy); err != nil {
			return User{}, err
		}
	}
	return usr, nil
}

func (svc *service) QueryAll(ctx context.Context) ([]User, error) {
	return svc.repo.QueryAllUsers(ctx)
}

func (svc *service) GetByID(ctx context.Context, id int) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *service) GetByUsername(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUserByUsername(ctx, core.CleanString(uname, true /* lower */))
}

func (svc *service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUserByUsernameOrEmail(ctx, core.CleanString(uname, true /* lower */))
}

func (svc *service) Roles(ctx context.Context) ([]Role, error) {
	return svc.repo.Roles(ctx)
}

func (svc *service) Filter(ctx context.Context, filter QueryFilter) ([]User, error) {
	filter.Clean()
	if filter.IsEmpty() {
		return svc.repo.QueryAllUsers(ctx)
	}
	return svc.repo.FilterUsers(ctx, filter)
}

// Update saves the set fields; a non-nil Roles replaces the whole role set,
// revoking assignments left out of it.
func (svc *service) Update(ctx context.Context, id int, uu UpdateUser, updatedBy *int) (User, error) {
	usr := User{
		ID:        id,
		Name:      uu.Name,
		Username:  uu.Username,
		Email:     uu.Email,
		Roles:     uu.Roles,
		UpdatedAt: NowFunc().UTC(),
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, err
		}
	}

	var revoked []string
	if uu.Roles != nil {
		cur, err := svc.repo.GetUserByID(ctx, id)
		if err != nil {
			return User{}, err
		}
		for _, name := range cur.Roles {
			if !contains(uu.Roles, name) {
				revoked = append(revoked, name)
			}
		}
	}

	usr, err := svc.repo.UpdateUser(ctx, usr, uu.IsActive)
	if err != nil {
		return User{}, err
	}
	for _, name := range uu.Roles {
		role, err := svc.repo.GetRoleByName(ctx, name)
		if err != nil {
			return User{}, err
		}
		if err = svc.repo.AssignRole(ctx, usr.ID, role.ID, updatedBy); err != nil {
			return User{}, err
		}
	}
	for _, name := range revoked {
		role, err := svc.repo.GetRoleByName(ctx, name)
		if err != nil {
			return User{}, err
		}
		if err = svc.repo.RevokeRole(ctx, usr.ID, role.ID); err != nil {
			return User{}, err
		}
	}
	if uu.Roles != nil {
		usr.Roles = uu.Roles
	}
	return usr, nil
}

func (svc *service) Delete(ctx context.Context, ids ...int) error {
	return svc.repo.DeleteUsersByID(ctx, ids...)
}

func (svc *service) sendOTPMail(usr User, code string) {
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      svc.appName + " - Verify your account",
		TemplateName: "otp",
		TemplateData: struct {
			Name    string
			OTPCode string
		}{usr.Name, code},
	}
	if svc.syncMail {
		svc.mailSvc.SendMessages(msg)
		return
	}
	go svc.mailSvc.SendMessages(msg)
}
