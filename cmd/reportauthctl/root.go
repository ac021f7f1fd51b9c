package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/BradenHooton/reportauth/internal/config"
	"github.com/BradenHooton/reportauth/internal/database"
	"github.com/BradenHooton/reportauth/internal/repositories"
	"github.com/BradenHooton/reportauth/internal/services"
	pkgauth "github.com/BradenHooton/reportauth/pkg/auth"
	pkglogger "github.com/BradenHooton/reportauth/pkg/logger"
)

const commandTimeout = 2 * time.Minute

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "reportauthctl",
		Short:         "Operator tool for the report authorization service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newMigrateCmd())
	root.AddCommand(newCreateAdminCmd())
	root.AddCommand(newSeedSamplesCmd())
	root.AddCommand(newUnlockCmd())
	return root
}

// env is what every subcommand needs: configuration, a pool and a logger.
type env struct {
	cfg    *config.Config
	db     *database.DB
	logger *slog.Logger
}

// withDatabase loads configuration, connects and runs fn with a bounded context.
func withDatabase(cmd *cobra.Command, fn func(ctx context.Context, e *env) error) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg, err := config.LoadDatabaseOnly()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	return fn(ctx, &env{cfg: cfg, db: db, logger: logger})
}

// accountService wires the account service the same way the API does, minus
// the HTTP-only pieces.
func (e *env) accountService() *services.AccountService {
	userRepo := repositories.NewUserRepository(e.db)
	roleRepo := repositories.NewRoleRepository(e.db)
	audit := services.NewAuditService(
		repositories.NewActivityLogRepository(e.db),
		pkglogger.NewAuditLogger(e.logger, e.cfg.Server.Env),
		e.logger,
		nil,
	)
	return services.NewAccountService(userRepo, roleRepo, pkgauth.NewHasher(e.cfg.Auth.BcryptCost), audit, services.AccountConfig{
		LockoutThreshold: e.cfg.Auth.LockoutThreshold,
		Policy: pkgauth.PasswordPolicy{
			MinLength: e.cfg.Policy.MinLength,
			MaxLength: e.cfg.Policy.MaxLength,
			Symbols:   e.cfg.Policy.Symbols,
		},
	}, e.logger)
}
