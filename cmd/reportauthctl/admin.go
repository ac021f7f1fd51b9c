package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/BradenHooton/reportauth/internal/models"
)

const maxPasswordPrompts = 3

var errPasswordMismatch = errors.New("passwords do not match")

func newCreateAdminCmd() *cobra.Command {
	var username, email, firstName, lastName string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		Long: "Create an administrator account. The password is taken from ADMIN_PASSWORD " +
			"or prompted for twice without echo.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			password := os.Getenv("ADMIN_PASSWORD")
			if password == "" {
				var err error
				password, err = promptNewPassword(terminalReader(cmd.ErrOrStderr()), cmd.ErrOrStderr())
				if err != nil {
					return err
				}
			}

			return withDatabase(cmd, func(ctx context.Context, e *env) error {
				accounts := e.accountService()
				id, err := accounts.CreateUser(ctx, models.CreateUserInput{
					Username:  username,
					Email:     email,
					Password:  password,
					FirstName: optional(firstName),
					LastName:  optional(lastName),
					Roles:     []string{models.RoleAdmin},
				}, models.SystemActor())
				if err != nil {
					return fmt.Errorf("create admin: %w", err)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "created admin %q (user id %d)\n", strings.TrimSpace(username), id)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "admin username (required)")
	cmd.Flags().StringVar(&email, "email", "", "admin email (required)")
	cmd.Flags().StringVar(&firstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&lastName, "last-name", "", "last name")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// passwordReader reads one secret after printing prompt.
type passwordReader func(prompt string) (string, error)

// terminalReader reads from stdin without echo when it is a terminal, and
// line by line otherwise so the command can be scripted.
func terminalReader(out io.Writer) passwordReader {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		lines := bufio.NewReader(os.Stdin)
		return func(prompt string) (string, error) {
			fmt.Fprint(out, prompt)
			line, err := lines.ReadString('\n')
			if err != nil && !(errors.Is(err, io.EOF) && line != "") {
				return "", err
			}
			return strings.TrimRight(line, "\r\n"), nil
		}
	}
	return func(prompt string) (string, error) {
		fmt.Fprint(out, prompt)
		secret, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		return string(secret), err
	}
}

// promptNewPassword asks for a password and its confirmation, retrying on
// an empty entry or a mismatch.
func promptNewPassword(read passwordReader, out io.Writer) (string, error) {
	for attempt := 0; attempt < maxPasswordPrompts; attempt++ {
		password, err := read("Enter password: ")
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		if password == "" {
			fmt.Fprintln(out, "password is required")
			continue
		}

		confirm, err := read("Confirm password: ")
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		if password != confirm {
			fmt.Fprintln(out, errPasswordMismatch.Error())
			continue
		}
		return password, nil
	}
	return "", errPasswordMismatch
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
