package repositories

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/BradenHooton/reportauth/internal/database"
	"github.com/BradenHooton/reportauth/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// rowScanner interface for scanning rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...interface{}) error
}

const userColumns = `user_id, username, email, password_hash, first_name, last_name,
	is_active, is_locked, failed_login_attempts, last_login_date, password_changed_date,
	must_change_password, created_by, created_date, modified_by, modified_date`

// UserRepository owns the users table.
type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User

	err := scanner.Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName,
		&user.IsActive, &user.IsLocked, &user.FailedLoginAttempts, &user.LastLoginDate, &user.PasswordChangedDate,
		&user.MustChangePassword, &user.CreatedBy, &user.CreatedDate, &user.ModifiedBy, &user.ModifiedDate,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &user, nil
}

func scanUserRows(rows pgx.Rows) ([]*models.User, error) {
	defer rows.Close()

	users := make([]*models.User, 0)

	for rows.Next() {
		user, err := scanUserRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return users, nil
}

// notFoundUser turns a bare ErrNotFound into a typed user NotFoundError.
func notFoundUser(err error, key string) error {
	if errors.Is(err, models.ErrNotFound) {
		return &models.NotFoundError{Resource: "user", Key: key}
	}
	return err
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`

	user, err := scanUserRow(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFoundUser(err, fmt.Sprint(id))
	}

	return user, nil
}

// GetByUsername matches exactly; usernames are case-sensitive.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	user, err := scanUserRow(r.db.Pool.QueryRow(ctx, query, username))
	if err != nil {
		return nil, notFoundUser(err, username)
	}

	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUserRow(r.db.Pool.QueryRow(ctx, query, email))
	if err != nil {
		return nil, notFoundUser(err, "")
	}

	return user, nil
}

func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY username LIMIT $1 OFFSET $2`

	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}

	return scanUserRows(rows)
}

// Create inserts the user and its initial role assignments in one transaction.
// An unknown role id aborts the whole insert with a role NotFoundError.
func (r *UserRepository) Create(ctx context.Context, user *models.User, roleIDs []string) (*models.User, error) {
	var created *models.User

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if err := ensureRolesExist(ctx, tx, roleIDs); err != nil {
			return err
		}

		query := `
			INSERT INTO users (username, email, password_hash, first_name, last_name,
				must_change_password, password_changed_date, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, CURRENT_TIMESTAMP, $7)
			RETURNING ` + userColumns

		u, err := scanUserRow(tx.QueryRow(ctx, query,
			user.Username, user.Email, user.PasswordHash, user.FirstName, user.LastName,
			user.MustChangePassword, user.CreatedBy,
		))
		if err != nil {
			return err
		}

		for _, roleID := range roleIDs {
			_, err := tx.Exec(ctx, `
				INSERT INTO user_roles (user_id, role_id, assigned_by)
				VALUES ($1, $2, $3)
				ON CONFLICT (user_id, role_id) DO NOTHING`,
				u.ID, roleID, user.CreatedBy,
			)
			if err != nil {
				// a role deleted after ensureRolesExist surfaces here as its FK
				return assignmentError(database.MapPostgresError(err), u.ID, roleID)
			}
		}

		created = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

func ensureRolesExist(ctx context.Context, q querier, roleIDs []string) error {
	if len(roleIDs) == 0 {
		return nil
	}

	rows, err := q.Query(ctx, `SELECT role_id FROM roles WHERE role_id = ANY($1)`, roleIDs)
	if err != nil {
		return fmt.Errorf("failed to query roles: %w", err)
	}
	defer rows.Close()

	found := make(map[string]bool, len(roleIDs))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("failed to scan role id: %w", err)
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating roles: %w", err)
	}

	var missing []string
	for _, id := range roleIDs {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &models.NotFoundError{Resource: "role", Key: strings.Join(missing, ",")}
	}
	return nil
}

// IncrementFailedAttempts bumps the counter and sets the lock flag in a single
// statement. The row lock taken by UPDATE serializes concurrent callers, so no
// failure is lost and the threshold cannot be skipped.
func (r *UserRepository) IncrementFailedAttempts(ctx context.Context, id int64, threshold int) (models.LockoutUpdate, error) {
	query := `
		UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1,
		    is_locked = is_locked OR failed_login_attempts + 1 >= $2
		WHERE user_id = $1
		RETURNING failed_login_attempts, is_locked
	`

	var update models.LockoutUpdate
	err := r.db.Pool.QueryRow(ctx, query, id, threshold).Scan(&update.FailedAttempts, &update.Locked)
	if err != nil {
		return models.LockoutUpdate{}, notFoundUser(database.MapPostgresError(err), fmt.Sprint(id))
	}

	return update, nil
}

// RecordSuccessfulLogin zeroes the failure counter and stamps last_login_date.
// The lock flag is left alone.
func (r *UserRepository) RecordSuccessfulLogin(ctx context.Context, id int64) (time.Time, error) {
	query := `
		UPDATE users
		SET failed_login_attempts = 0,
		    last_login_date = CURRENT_TIMESTAMP
		WHERE user_id = $1
		RETURNING last_login_date
	`

	var lastLogin time.Time
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(&lastLogin)
	if err != nil {
		return time.Time{}, notFoundUser(database.MapPostgresError(err), fmt.Sprint(id))
	}

	return lastLogin, nil
}

// PasswordUpdate describes a credential change.
type PasswordUpdate struct {
	Hash               string
	MustChangePassword bool
	ResetFailures      bool
	ModifiedBy         string
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, upd PasswordUpdate) error {
	query := `
		UPDATE users
		SET password_hash = $2,
		    password_changed_date = CURRENT_TIMESTAMP,
		    must_change_password = $3,
		    failed_login_attempts = CASE WHEN $4 THEN 0 ELSE failed_login_attempts END,
		    modified_by = $5,
		    modified_date = CURRENT_TIMESTAMP
		WHERE user_id = $1
	`

	tag, err := r.db.Pool.Exec(ctx, query, id, upd.Hash, upd.MustChangePassword, upd.ResetFailures, upd.ModifiedBy)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return &models.NotFoundError{Resource: "user", Key: fmt.Sprint(id)}
	}

	return nil
}

// SetLocked toggles the lock flag. Unlocking also clears the failure counter so
// the next single failure does not relock the account.
func (r *UserRepository) SetLocked(ctx context.Context, id int64, locked bool, modifiedBy string) (*models.User, error) {
	query := `
		UPDATE users
		SET is_locked = $2,
		    failed_login_attempts = CASE WHEN $2 THEN failed_login_attempts ELSE 0 END,
		    modified_by = $3,
		    modified_date = CURRENT_TIMESTAMP
		WHERE user_id = $1
		RETURNING ` + userColumns

	user, err := scanUserRow(r.db.Pool.QueryRow(ctx, query, id, locked, modifiedBy))
	if err != nil {
		return nil, notFoundUser(err, fmt.Sprint(id))
	}

	return user, nil
}

func (r *UserRepository) SetActive(ctx context.Context, id int64, active bool, modifiedBy string) (*models.User, error) {
	query := `
		UPDATE users
		SET is_active = $2,
		    modified_by = $3,
		    modified_date = CURRENT_TIMESTAMP
		WHERE user_id = $1
		RETURNING ` + userColumns

	user, err := scanUserRow(r.db.Pool.QueryRow(ctx, query, id, active, modifiedBy))
	if err != nil {
		return nil, notFoundUser(err, fmt.Sprint(id))
	}

	return user, nil
}

// UpdateProfile applies the non-nil fields of in.
func (r *UserRepository) UpdateProfile(ctx context.Context, id int64, in models.UpdateProfileInput, modifiedBy string) (*models.User, error) {
	query := `
		UPDATE users
		SET email = COALESCE($2, email),
		    first_name = COALESCE($3, first_name),
		    last_name = COALESCE($4, last_name),
		    modified_by = $5,
		    modified_date = CURRENT_TIMESTAMP
		WHERE user_id = $1
		RETURNING ` + userColumns

	user, err := scanUserRow(r.db.Pool.QueryRow(ctx, query, id, in.Email, in.FirstName, in.LastName, modifiedBy))
	if err != nil {
		return nil, notFoundUser(err, fmt.Sprint(id))
	}

	return user, nil
}

func (r *UserRepository) CountTotal(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// CountByState counts users in one of the states "active", "inactive" or "locked".
func (r *UserRepository) CountByState(ctx context.Context, state string) (int64, error) {
	var where string
	switch state {
	case "active":
		where = `is_active AND NOT is_locked`
	case "inactive":
		where = `NOT is_active`
	case "locked":
		where = `is_locked`
	default:
		return 0, fmt.Errorf("unknown user state %q", state)
	}

	var count int64
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE `+where).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s users: %w", state, err)
	}
	return count, nil
}

func (r *UserRepository) CountNewSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE created_date >= $1`, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count new users: %w", err)
	}
	return count, nil
}
