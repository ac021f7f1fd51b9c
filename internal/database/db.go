package database

import (
	"context"
	"errors"

	"github.com/BradenHooton/reportauth/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Unique constraints that map to a user-facing field name.
var uniqueConstraintFields = map[string]string{
	"users_username_key":                 "username",
	"users_email_key":                    "email",
	"roles_pkey":                         "role_id",
	"roles_role_name_key":                "role_name",
	"user_roles_pkey":                    "role assignment",
	"report_permissions_role_report_key": "report permission",
}

// MapPostgresError converts driver errors into the models error taxonomy.
func MapPostgresError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			field, ok := uniqueConstraintFields[pgErr.ConstraintName]
			if !ok {
				field = pgErr.ConstraintName
			}
			return &models.DuplicateError{Field: field}
		case "23503", // foreign_key_violation
			"23502", // not_null_violation
			"23514": // check_violation
			return &models.IntegrityError{Constraint: pgErr.ConstraintName, Err: err}
		}
	}

	return err
}

func (db *DB) WithTransaction(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		} else if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	err = fn(tx)
	return err
}
