package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/reportauth/internal/database"
	"github.com/BradenHooton/reportauth/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const activityColumns = `log_id, user_id, username, activity_type, activity_description,
	ip_address, user_agent, activity_date, success, error_message`

// ActivityLogRepository appends to and reads the user activity log. Rows are
// never updated or deleted.
type ActivityLogRepository struct {
	pool *pgxpool.Pool
}

func NewActivityLogRepository(db *database.DB) *ActivityLogRepository {
	return &ActivityLogRepository{pool: db.Pool}
}

func scanActivityRow(row rowScanner) (*models.ActivityLogEntry, error) {
	var e models.ActivityLogEntry

	err := row.Scan(
		&e.ID, &e.UserID, &e.Username, &e.ActivityType, &e.Description,
		&e.IPAddress, &e.UserAgent, &e.ActivityDate, &e.Success, &e.ErrorMessage,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &e, nil
}

func scanActivityRows(rows pgx.Rows) ([]*models.ActivityLogEntry, error) {
	defer rows.Close()

	entries := make([]*models.ActivityLogEntry, 0)

	for rows.Next() {
		e, err := scanActivityRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity log: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity log rows: %w", err)
	}

	return entries, nil
}

// Create appends one entry. A user_id that no longer exists is stored as NULL
// so the username snapshot is still kept.
func (r *ActivityLogRepository) Create(ctx context.Context, entry *models.ActivityLogEntry) (*models.ActivityLogEntry, error) {
	query := `
		INSERT INTO user_activity_log (
			user_id, username, activity_type, activity_description,
			ip_address, user_agent, success, error_message
		)
		VALUES (
			(SELECT user_id FROM users WHERE user_id = $1), $2, $3, $4, $5, $6, $7, $8
		)
		RETURNING ` + activityColumns

	result, err := scanActivityRow(r.pool.QueryRow(
		ctx, query,
		entry.UserID, entry.Username, entry.ActivityType, entry.Description,
		entry.IPAddress, entry.UserAgent, entry.Success, entry.ErrorMessage,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create activity log: %w", err)
	}

	return result, nil
}

// GetByUserID returns a user's activity, newest first.
func (r *ActivityLogRepository) GetByUserID(ctx context.Context, userID int64, limit, offset int) ([]*models.ActivityLogEntry, error) {
	query := `
		SELECT ` + activityColumns + `
		FROM user_activity_log
		WHERE user_id = $1
		ORDER BY activity_date DESC, log_id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity log: %w", err)
	}

	return scanActivityRows(rows)
}

// GetByUsername returns activity recorded under a username snapshot, including
// rows whose user has since been removed.
func (r *ActivityLogRepository) GetByUsername(ctx context.Context, username string, limit, offset int) ([]*models.ActivityLogEntry, error) {
	query := `
		SELECT ` + activityColumns + `
		FROM user_activity_log
		WHERE username = $1
		ORDER BY activity_date DESC, log_id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, username, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity log: %w", err)
	}

	return scanActivityRows(rows)
}

func (r *ActivityLogRepository) GetByActivityType(ctx context.Context, activityType string, limit, offset int) ([]*models.ActivityLogEntry, error) {
	query := `
		SELECT ` + activityColumns + `
		FROM user_activity_log
		WHERE activity_type = $1
		ORDER BY activity_date DESC, log_id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, activityType, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity log: %w", err)
	}

	return scanActivityRows(rows)
}

// GetFailed returns unsuccessful events, newest first.
func (r *ActivityLogRepository) GetFailed(ctx context.Context, limit, offset int) ([]*models.ActivityLogEntry, error) {
	query := `
		SELECT ` + activityColumns + `
		FROM user_activity_log
		WHERE success = FALSE
		ORDER BY activity_date DESC, log_id DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity log: %w", err)
	}

	return scanActivityRows(rows)
}

func (r *ActivityLogRepository) CountByUserID(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM user_activity_log WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count activity log: %w", err)
	}
	return count, nil
}

func (r *ActivityLogRepository) CountSinceByType(ctx context.Context, activityType string, since time.Time) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM user_activity_log WHERE activity_type = $1 AND activity_date >= $2`,
		activityType, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count activity log: %w", err)
	}
	return count, nil
}
