package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/BradenHooton/reportauth/internal/database"
	"github.com/BradenHooton/reportauth/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

const permissionColumns = `permission_id, role_id, report_id, can_view, can_execute,
	can_modify, can_delete, granted_by, granted_date`

// PermissionRepository owns report_permissions.
type PermissionRepository struct {
	pool *pgxpool.Pool
}

func NewPermissionRepository(db *database.DB) *PermissionRepository {
	return &PermissionRepository{pool: db.Pool}
}

func scanPermissionRow(row rowScanner) (*models.ReportPermission, error) {
	var p models.ReportPermission

	err := row.Scan(
		&p.ID, &p.RoleID, &p.ReportID, &p.CanView, &p.CanExecute,
		&p.CanModify, &p.CanDelete, &p.GrantedBy, &p.GrantedDate,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &p, nil
}

// Upsert writes the grant for (role, report), replacing any existing flags.
func (r *PermissionRepository) Upsert(ctx context.Context, p *models.ReportPermission) (*models.ReportPermission, error) {
	query := `
		INSERT INTO report_permissions (role_id, report_id, can_view, can_execute, can_modify, can_delete, granted_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT ON CONSTRAINT report_permissions_role_report_key DO UPDATE
		SET can_view = EXCLUDED.can_view,
		    can_execute = EXCLUDED.can_execute,
		    can_modify = EXCLUDED.can_modify,
		    can_delete = EXCLUDED.can_delete,
		    granted_by = EXCLUDED.granted_by,
		    granted_date = CURRENT_TIMESTAMP
		RETURNING ` + permissionColumns

	saved, err := scanPermissionRow(r.pool.QueryRow(ctx, query,
		p.RoleID, p.ReportID, p.CanView, p.CanExecute, p.CanModify, p.CanDelete, p.GrantedBy,
	))
	if err != nil {
		var integrity *models.IntegrityError
		if errors.As(err, &integrity) {
			switch integrity.Constraint {
			case "report_permissions_role_id_fkey":
				return nil, &models.NotFoundError{Resource: "role", Key: p.RoleID}
			case "report_permissions_report_id_fkey":
				return nil, &models.NotFoundError{Resource: "report", Key: p.ReportID}
			}
		}
		return nil, err
	}

	return saved, nil
}

// EffectiveCapabilities ORs every grant on reportID held through the user's
// active roles. No roles, no grant or an unknown report all yield the zero value.
func (r *PermissionRepository) EffectiveCapabilities(ctx context.Context, userID int64, reportID string) (models.Capabilities, error) {
	query := `
		SELECT COALESCE(bool_or(p.can_view), FALSE),
		       COALESCE(bool_or(p.can_execute), FALSE),
		       COALESCE(bool_or(p.can_modify), FALSE),
		       COALESCE(bool_or(p.can_delete), FALSE)
		FROM user_roles ur
		JOIN roles ro ON ro.role_id = ur.role_id AND ro.is_active
		JOIN report_permissions p ON p.role_id = ur.role_id
		WHERE ur.user_id = $1 AND p.report_id = $2
	`

	var caps models.Capabilities
	err := r.pool.QueryRow(ctx, query, userID, reportID).Scan(&caps.View, &caps.Execute, &caps.Modify, &caps.Delete)
	if err != nil {
		return models.Capabilities{}, fmt.Errorf("failed to resolve capabilities: %w", err)
	}

	return caps, nil
}

// ListForReport returns every role grant on reportID.
func (r *PermissionRepository) ListForReport(ctx context.Context, reportID string) ([]*models.ReportPermission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+permissionColumns+` FROM report_permissions WHERE report_id = $1 ORDER BY role_id`, reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to query report permissions: %w", err)
	}
	defer rows.Close()

	perms := make([]*models.ReportPermission, 0)
	for rows.Next() {
		p, err := scanPermissionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report permission: %w", err)
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating report permission rows: %w", err)
	}

	return perms, nil
}

// EnsureReport registers a report key so grants can reference it. Existing
// keys are left untouched.
func (r *PermissionRepository) EnsureReport(ctx context.Context, reportID, name string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO report_configs (report_id, report_name)
		VALUES ($1, NULLIF($2, ''))
		ON CONFLICT (report_id) DO NOTHING`, reportID, name)
	if err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}
