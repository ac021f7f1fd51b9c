package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BradenHooton/reportauth/internal/models"
)

func newUnlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock <username>",
		Short: "Unlock an account and clear its failed-login counter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd, func(ctx context.Context, e *env) error {
				accounts := e.accountService()
				user, err := accounts.FindByUsername(ctx, args[0])
				if err != nil {
					return fmt.Errorf("find %s: %w", args[0], err)
				}

				if _, err := accounts.SetLocked(ctx, user.ID, false, models.SystemActor()); err != nil {
					return fmt.Errorf("unlock %s: %w", args[0], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "unlocked %s\n", user.Username)
				return nil
			})
		},
	}
}
