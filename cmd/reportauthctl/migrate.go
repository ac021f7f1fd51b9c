package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	var rollback bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(cmd, func(ctx context.Context, e *env) error {
				if rollback {
					if err := e.db.Rollback(ctx); err != nil {
						return err
					}
				} else if err := e.db.Migrate(ctx); err != nil {
					return err
				}

				version, err := e.db.MigrationVersion(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&rollback, "rollback", "r", false, "roll back the latest migration")
	return cmd
}
