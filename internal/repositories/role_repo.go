package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/BradenHooton/reportauth/internal/database"
	"github.com/BradenHooton/reportauth/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const roleColumns = `role_id, role_name, description, is_active, created_date`

// RoleRepository owns the role catalog and user_roles assignments.
type RoleRepository struct {
	pool *pgxpool.Pool
}

func NewRoleRepository(db *database.DB) *RoleRepository {
	return &RoleRepository{pool: db.Pool}
}

func scanRoleRow(row rowScanner) (*models.Role, error) {
	var role models.Role

	err := row.Scan(&role.ID, &role.Name, &role.Description, &role.IsActive, &role.CreatedDate)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &role, nil
}

func scanRoleRows(rows pgx.Rows) ([]models.Role, error) {
	defer rows.Close()

	roles := make([]models.Role, 0)

	for rows.Next() {
		role, err := scanRoleRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, *role)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating role rows: %w", err)
	}

	return roles, nil
}

func (r *RoleRepository) GetByID(ctx context.Context, roleID string) (*models.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE role_id = $1`

	role, err := scanRoleRow(r.pool.QueryRow(ctx, query, roleID))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, &models.NotFoundError{Resource: "role", Key: roleID}
		}
		return nil, err
	}

	return role, nil
}

// List returns the whole catalog, inactive roles included.
func (r *RoleRepository) List(ctx context.Context) ([]models.Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY role_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}

	return scanRoleRows(rows)
}

func (r *RoleRepository) Create(ctx context.Context, role *models.Role) (*models.Role, error) {
	query := `
		INSERT INTO roles (role_id, role_name, description, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + roleColumns

	created, err := scanRoleRow(r.pool.QueryRow(ctx, query, role.ID, role.Name, role.Description, role.IsActive))
	if err != nil {
		return nil, err
	}

	return created, nil
}

// Update changes the mutable parts of a role. A nil argument leaves the column alone.
func (r *RoleRepository) Update(ctx context.Context, roleID string, description *string, active *bool) (*models.Role, error) {
	query := `
		UPDATE roles
		SET description = COALESCE($2, description),
		    is_active = COALESCE($3, is_active)
		WHERE role_id = $1
		RETURNING ` + roleColumns

	role, err := scanRoleRow(r.pool.QueryRow(ctx, query, roleID, description, active))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, &models.NotFoundError{Resource: "role", Key: roleID}
		}
		return nil, err
	}

	return role, nil
}

// Assign adds a (user, role) pair. An existing pair yields AlreadyAssignedError;
// a missing user or role yields NotFoundError.
func (r *RoleRepository) Assign(ctx context.Context, userID int64, roleID, assignedBy string) error {
	query := `
		INSERT INTO user_roles (user_id, role_id, assigned_by)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, role_id) DO NOTHING
	`

	tag, err := r.pool.Exec(ctx, query, userID, roleID, assignedBy)
	if err != nil {
		return assignmentError(database.MapPostgresError(err), userID, roleID)
	}
	if tag.RowsAffected() == 0 {
		return &models.AlreadyAssignedError{UserID: userID, RoleID: roleID}
	}

	return nil
}

// Revoke removes a (user, role) pair; it reports NotFoundError when the pair
// did not exist.
func (r *RoleRepository) Revoke(ctx context.Context, userID int64, roleID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	if err != nil {
		return fmt.Errorf("failed to revoke role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &models.NotFoundError{Resource: "role assignment", Key: fmt.Sprintf("%d/%s", userID, roleID)}
	}

	return nil
}

// ListForUser returns the user's roles ordered by id. With activeOnly set,
// roles deactivated in the catalog are omitted.
func (r *RoleRepository) ListForUser(ctx context.Context, userID int64, activeOnly bool) ([]models.Role, error) {
	query := `
		SELECT r.role_id, r.role_name, r.description, r.is_active, r.created_date
		FROM user_roles ur
		JOIN roles r ON r.role_id = ur.role_id
		WHERE ur.user_id = $1 AND (r.is_active OR NOT $2)
		ORDER BY r.role_id
	`

	rows, err := r.pool.Query(ctx, query, userID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to query user roles: %w", err)
	}

	return scanRoleRows(rows)
}

func assignmentError(err error, userID int64, roleID string) error {
	var integrity *models.IntegrityError
	if errors.As(err, &integrity) {
		switch integrity.Constraint {
		case "user_roles_user_id_fkey":
			return &models.NotFoundError{Resource: "user", Key: fmt.Sprint(userID)}
		case "user_roles_role_id_fkey":
			return &models.NotFoundError{Resource: "role", Key: roleID}
		}
	}
	return err
}

// CountAssignments returns the number of users holding each catalog role.
// Roles nobody holds are reported with zero.
func (r *RoleRepository) CountAssignments(ctx context.Context) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT r.role_id, COUNT(ur.user_id)
		FROM roles r
		LEFT JOIN user_roles ur ON ur.role_id = r.role_id
		GROUP BY r.role_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to count role assignments: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var (
			roleID string
			n      int64
		)
		if err := rows.Scan(&roleID, &n); err != nil {
			return nil, fmt.Errorf("failed to scan role count: %w", err)
		}
		counts[roleID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating role counts: %w", err)
	}

	return counts, nil
}
