package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/BradenHooton/reportauth/internal/models"
)

type sampleUser struct {
	username  string
	email     string
	firstName string
	lastName  string
	role      string
}

var sampleUsers = []sampleUser{
	{"report_manager", "manager@example.com", "Report", "Manager", models.RoleReportManager},
	{"report_viewer", "viewer@example.com", "Report", "Viewer", models.RoleReportViewer},
	{"report_executor", "executor@example.com", "Report", "Executor", models.RoleReportExecutor},
}

// userCreator is the slice of AccountService that seeding needs.
type userCreator interface {
	CreateUser(ctx context.Context, in models.CreateUserInput, actor models.Actor) (int64, error)
}

func newSeedSamplesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed-samples",
		Short: "Create one sample account per report role",
		Long: "Create report_manager, report_viewer and report_executor. Each gets a random " +
			"temporary password that must be changed at first login.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(cmd, func(ctx context.Context, e *env) error {
				return seedSamples(ctx, e.accountService(), cmd.OutOrStdout())
			})
		},
	}
}

// seedSamples creates the sample accounts, skipping any that already exist.
func seedSamples(ctx context.Context, accounts userCreator, out io.Writer) error {
	for _, s := range sampleUsers {
		password, err := temporaryPassword()
		if err != nil {
			return err
		}

		first, last := s.firstName, s.lastName
		_, err = accounts.CreateUser(ctx, models.CreateUserInput{
			Username:           s.username,
			Email:              s.email,
			Password:           password,
			FirstName:          &first,
			LastName:           &last,
			Roles:              []string{s.role},
			MustChangePassword: true,
		}, models.SystemActor())

		var dup *models.DuplicateError
		switch {
		case errors.As(err, &dup):
			fmt.Fprintf(out, "%-16s exists, skipped\n", s.username)
		case err != nil:
			return fmt.Errorf("create %s: %w", s.username, err)
		default:
			fmt.Fprintf(out, "%-16s %-16s temporary password: %s\n", s.username, s.role, password)
		}
	}
	return nil
}

// temporaryPassword returns a random password that satisfies the default
// policy: the fixed prefix and suffix supply every character class.
func temporaryPassword() (string, error) {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate password: %w", err)
	}
	return "Rp" + base64.RawURLEncoding.EncodeToString(b) + "7#", nil
}
