package user

import (
	"context"
	"time"

	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/eduflow/stms/core"
)

// Role tiers. Lower level means more privileged.
const (
	RoleAdmin   = "admin"
	RoleParent  = "parent"
	RoleStudent = "student"
)

var (
	AllRoles = []string{RoleAdmin, RoleParent, RoleStudent}

	// SelfRegisterRoles are the tiers an anonymous registration may pick;
	// admins are only ever created by other admins or the CLI.
	SelfRegisterRoles = []string{RoleParent, RoleStudent}

	roleLevels = map[string]int{
		RoleAdmin:   1,
		RoleParent:  2,
		RoleStudent: 3,
	}
)

func RoleLevel(role string) int {
	if lvl, ok := roleLevels[role]; ok {
		return lvl
	}
	return len(roleLevels) + 1 // unknown roles rank below everything
}

// MinRoleLevel returns the most privileged (lowest) level held in roles.
func MinRoleLevel(roles []string) int {
	min := len(roleLevels) + 1
	for _, role := range roles {
		if lvl := RoleLevel(role); lvl < min {
			min = lvl
		}
	}
	return min
}

// Role is static reference data seeded by migrations.
type Role struct {
	ID          int       `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	Level       int       `json:"level" db:"level"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// RoleAssignment links an account to a role, recording who assigned it and when.
type RoleAssignment struct {
	ID         int       `json:"id" db:"id"`
	UserID     int       `json:"user_id" db:"user_id"`
	RoleID     int       `json:"role_id" db:"role_id"`
	AssignedBy null.Int  `json:"assigned_by" db:"assigned_by"`
	AssignedAt time.Time `json:"assigned_at" db:"assigned_at"`
}

type User struct {
	ID           int         `json:"id" db:"id"`
	Name         string      `json:"name" db:"name"`
	Username     string      `json:"username" db:"username"`
	Email        string      `json:"email" db:"email"`
	PasswordHash []byte      `json:"-" db:"password_hash"`
	IsActive     bool        `json:"is_active" db:"is_active"`
	IsVerified   bool        `json:"is_verified" db:"is_verified"`
	OTPCode      null.String `json:"-" db:"otp_code"`
	Roles        []string    `json:"roles" db:"-"`
	LastLogin    null.Time   `json:"last_login" db:"last_login"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"` // UTC
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

// CheckPassword returns a non-nil error on mismatch. A malformed stored hash
// also yields an error; callers treat both the same way.
func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) HasRole(name string) bool {
	for _, role := range u.Roles {
		if role == name {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool   { return u.HasRole(RoleAdmin) }
func (u *User) IsParent() bool  { return u.HasRole(RoleParent) }
func (u *User) IsStudent() bool { return u.HasRole(RoleStudent) }

// NewRegistration contains information needed to self-register an account.
// The account starts unverified; VerifyOTP activates it.
type NewRegistration struct {
	Username string `json:"username" validate:"required,min=3,alphanum_"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	FullName string `json:"full_name" validate:"required"`
	Role     string `json:"role" validate:"required,selfroles"`
}

func (nr *NewRegistration) Validate(ctx context.Context, svc Service) error {
	nr.Username = core.CleanString(nr.Username, true /* lower */)
	nr.Email = core.CleanString(nr.Email, true /* lower */)
	nr.FullName = core.CleanString(nr.FullName)
	nr.Role = core.CleanString(nr.Role, true /* lower */)

	if err := core.Validate.Struct(nr); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nr.Username, nr.Email)
}

// OTPVerification is the payload confirming a freshly registered account.
type OTPVerification struct {
	Username string `json:"username" validate:"required"`
	OTPCode  string `json:"otp_code" validate:"required,len=6,numeric"`
}

func (ov *OTPVerification) Validate() error {
	ov.Username = core.CleanString(ov.Username, true /* lower */)
	ov.OTPCode = core.CleanString(ov.OTPCode)
	return core.Validate.Struct(ov)
}

// NewUser contains information needed by an admin to create an account
// directly; such accounts are active and verified from the start.
type NewUser struct {
	Name     string   `json:"name" validate:"required"`
	Username string   `json:"username" validate:"required,min=3,alphanum_"`
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required"`
	Roles    []string `json:"roles" validate:"omitempty,accountroles"`
}

func (nu *NewUser) Validate(ctx context.Context, svc Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)

	if err := core.Validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nu.Username, nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Name     string   `json:"name"`
	Username string   `json:"username" validate:"omitempty,min=3,alphanum_"`
	Email    string   `json:"email" validate:"omitempty,email"`
	IsActive *bool    `json:"is_active"`
	Roles    []string `json:"roles" validate:"omitempty,accountroles"`
	Password string   `json:"password"`
}

func (uu *UpdateUser) Validate(ctx context.Context, origUsr User, svc Service) error {
	name := core.CleanString(uu.Name)
	if name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}

	uname := core.CleanString(uu.Username, true /* lower */)
	if uname != "" {
		uu.Username = uname
	} else {
		uu.Username = origUsr.Username
	}

	email := core.CleanString(uu.Email, true /* lower */)
	if email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}

	if err := core.Validate.Struct(uu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, uu.Username, uu.Email, origUsr)
}

type QueryFilter struct {
	Search      string    `query:"search"`
	Roles       []string  `query:"role"`
	IsActive    *bool     `query:"is_active"`
	IsVerified  *bool     `query:"is_verified"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.IsActive == nil && qf.IsVerified == nil &&
		qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
