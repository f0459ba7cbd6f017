package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/eduflow/stms/core/user"
)

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *sql.DB) *userRepository {
	return &userRepository{db: sqlx.NewDb(db, "postgres")}
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	query := `SELECT username, email FROM users WHERE (username = ? OR email = ?)`
	args := []interface{}{username, email}
	if len(excludedUsers) > 0 {
		ids := make([]int, 0, len(excludedUsers))
		for _, usr := range excludedUsers {
			ids = append(ids, usr.ID)
		}
		inQuery, inArgs, err := sqlx.In(`id NOT IN (?)`, ids)
		if err != nil {
			return errors.Wrap(err, "building uniqueness query")
		}
		query += " AND " + inQuery
		args = append(args, inArgs...)
	}

	rows, err := repo.db.QueryxContext(ctx, repo.db.Rebind(query), args...)
	if err != nil {
		return errors.Wrap(err, "checking uniqueness")
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var uname, mail string
		if err = rows.Scan(&uname, &mail); err != nil {
			return errors.Wrap(err, "checking uniqueness")
		}
		if uname == username {
			return user.ErrUsernameExists
		}
		if mail == email {
			return user.ErrEmailExists
		}
	}
	return errors.Wrap(rows.Err(), "checking uniqueness")
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	const query = `
INSERT INTO users (name, username, email, password_hash, is_active, is_verified, otp_code, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id`
	err := repo.db.QueryRowxContext(
		ctx, query,
		usr.Name, usr.Username, usr.Email, usr.PasswordHash,
		usr.IsActive, usr.IsVerified, usr.OTPCode, usr.CreatedAt, usr.UpdatedAt,
	).Scan(&usr.ID)
	if err != nil {
		return user.User{}, errors.Wrap(err, "creating user")
	}
	return usr, nil
}

func (repo *userRepository) QueryAllUsers(ctx context.Context) ([]user.User, error) {
	var users []user.User
	if err := repo.db.SelectContext(ctx, &users, `SELECT * FROM users ORDER BY created_at DESC`); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	if err := repo.loadRoles(ctx, users); err != nil {
		return nil, err
	}
	return users, nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id int) (user.User, error) {
	return repo.getUser(ctx, `SELECT * FROM users WHERE id = $1`, id)
}

func (repo *userRepository) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	return repo.getUser(ctx, `SELECT * FROM users WHERE username = $1`, username)
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getUser(ctx, `SELECT * FROM users WHERE email = $1`, email)
}

func (repo *userRepository) GetUserByUsernameOrEmail(ctx context.Context, username string) (user.User, error) {
	return repo.getUser(ctx, `SELECT * FROM users WHERE username = $1 OR email = $1`, username)
}

func (repo *userRepository) getUser(ctx context.Context, query string, args ...interface{}) (user.User, error) {
	var usr user.User
	if err := repo.db.GetContext(ctx, &usr, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "getting user")
	}
	users := []user.User{usr}
	if err := repo.loadRoles(ctx, users); err != nil {
		return user.User{}, err
	}
	return users[0], nil
}

func (repo *userRepository) FilterUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	query := `SELECT DISTINCT u.* FROM users u`
	var conds []string
	var args []interface{}

	if len(filter.Roles) > 0 {
		query += ` JOIN user_roles ur ON ur.user_id = u.id JOIN roles r ON r.id = ur.role_id`
		inCond, inArgs, err := sqlx.In(`r.name IN (?)`, filter.Roles)
		if err != nil {
			return nil, errors.Wrap(err, "building filter query")
		}
		conds = append(conds, inCond)
		args = append(args, inArgs...)
	}
	if filter.Search != "" {
		conds = append(conds, `(u.name ILIKE ? OR u.username ILIKE ? OR u.email ILIKE ?)`)
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern, pattern)
	}
	if filter.IsActive != nil {
		conds = append(conds, `u.is_active = ?`)
		args = append(args, *filter.IsActive)
	}
	if filter.IsVerified != nil {
		conds = append(conds, `u.is_verified = ?`)
		args = append(args, *filter.IsVerified)
	}
	if !filter.CreatedFrom.IsZero() {
		conds = append(conds, `u.created_at >= ?`)
		args = append(args, filter.CreatedFrom)
	}
	if !filter.CreatedTo.IsZero() {
		conds = append(conds, `u.created_at <= ?`)
		args = append(args, filter.CreatedTo)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY u.created_at DESC"

	var users []user.User
	if err := repo.db.SelectContext(ctx, &users, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "filtering users")
	}
	if err := repo.loadRoles(ctx, users); err != nil {
		return nil, err
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User, isActive *bool) (user.User, error) {
	sets := []string{"name = ?", "username = ?", "email = ?", "updated_at = ?"}
	args := []interface{}{usr.Name, usr.Username, usr.Email, usr.UpdatedAt}
	if len(usr.PasswordHash) > 0 {
		sets = append(sets, "password_hash = ?")
		args = append(args, usr.PasswordHash)
	}
	if isActive != nil {
		sets = append(sets, "is_active = ?")
		args = append(args, *isActive)
	}
	args = append(args, usr.ID)

	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = ?`, strings.Join(sets, ", "))
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(query), args...)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.GetUserByID(ctx, usr.ID)
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...int) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM users WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}

func (repo *userRepository) GetRoleByName(ctx context.Context, name string) (user.Role, error) {
	var role user.Role
	if err := repo.db.GetContext(ctx, &role, `SELECT * FROM roles WHERE name = $1`, name); err != nil {
		if err == sql.ErrNoRows {
			return user.Role{}, user.ErrRoleNotFound
		}
		return user.Role{}, errors.Wrap(err, "getting role")
	}
	return role, nil
}

func (repo *userRepository) Roles(ctx context.Context) ([]user.Role, error) {
	var roles []user.Role
	if err := repo.db.SelectContext(ctx, &roles, `SELECT * FROM roles ORDER BY level`); err != nil {
		return nil, errors.Wrap(err, "querying roles")
	}
	return roles, nil
}

func (repo *userRepository) AssignRole(ctx context.Context, userID, roleID int, assignedBy *int) error {
	const query = `
INSERT INTO user_roles (user_id, role_id, assigned_by)
VALUES ($1, $2, $3)
ON CONFLICT (user_id, role_id) DO NOTHING`
	if _, err := repo.db.ExecContext(ctx, query, userID, roleID, null.IntFromPtr(assignedBy)); err != nil {
		return errors.Wrap(err, "assigning role")
	}
	return nil
}

func (repo *userRepository) RevokeRole(ctx context.Context, userID, roleID int) error {
	const query = `DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`
	if _, err := repo.db.ExecContext(ctx, query, userID, roleID); err != nil {
		return errors.Wrap(err, "revoking role")
	}
	return nil
}

// ConsumeOTP locks the row so a matching code can only ever be redeemed once.
func (repo *userRepository) ConsumeOTP(ctx context.Context, userID int, code string) (bool, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, errors.Wrap(err, "starting OTP transaction")
	}
	defer func() { _ = tx.Rollback() }()

	var stored null.String
	if err = tx.GetContext(ctx, &stored, `SELECT otp_code FROM users WHERE id = $1 FOR UPDATE`, userID); err != nil {
		if err == sql.ErrNoRows {
			return false, user.ErrNotFound
		}
		return false, errors.Wrap(err, "reading OTP code")
	}
	if !stored.Valid || !user.OTPMatches(stored.String, code) {
		return false, nil
	}

	const update = `UPDATE users SET otp_code = NULL, is_verified = TRUE, updated_at = $1 WHERE id = $2`
	if _, err = tx.ExecContext(ctx, update, time.Now().UTC(), userID); err != nil {
		return false, errors.Wrap(err, "consuming OTP code")
	}
	if err = tx.Commit(); err != nil {
		return false, errors.Wrap(err, "committing OTP consumption")
	}
	return true, nil
}

func (repo *userRepository) SetLastLogin(ctx context.Context, userID int, at time.Time) error {
	if _, err := repo.db.ExecContext(ctx, `UPDATE users SET last_login = $1 WHERE id = $2`, at, userID); err != nil {
		return errors.Wrap(err, "setting last login")
	}
	return nil
}

// loadRoles populates Roles for all users in a single query.
func (repo *userRepository) loadRoles(ctx context.Context, users []user.User) error {
	if len(users) == 0 {
		return nil
	}
	ids := make([]int, 0, len(users))
	idx := make(map[int]int, len(users)) // user ID -> position
	for i, usr := range users {
		ids = append(ids, usr.ID)
		idx[usr.ID] = i
	}

	query, args, err := sqlx.In(`
SELECT ur.user_id, r.name
FROM user_roles ur
JOIN roles r ON r.id = ur.role_id
WHERE ur.user_id IN (?)
ORDER BY r.level`, ids)
	if err != nil {
		return errors.Wrap(err, "building roles query")
	}

	rows, err := repo.db.QueryxContext(ctx, repo.db.Rebind(query), args...)
	if err != nil {
		return errors.Wrap(err, "loading roles")
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var userID int
		var name string
		if err = rows.Scan(&userID, &name); err != nil {
			return errors.Wrap(err, "loading roles")
		}
		i := idx[userID]
		users[i].Roles = append(users[i].Roles, name)
	}
	return errors.Wrap(rows.Err(), "loading roles")
}
