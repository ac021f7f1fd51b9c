package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/BradenHooton/reportauth/internal/auth"
	"github.com/BradenHooton/reportauth/internal/config"
	"github.com/BradenHooton/reportauth/internal/database"
	"github.com/BradenHooton/reportauth/internal/handlers"
	"github.com/BradenHooton/reportauth/internal/metrics"
	middlewareCustom "github.com/BradenHooton/reportauth/internal/middleware"
	"github.com/BradenHooton/reportauth/internal/models"
	"github.com/BradenHooton/reportauth/internal/repositories"
	"github.com/BradenHooton/reportauth/internal/routes"
	"github.com/BradenHooton/reportauth/internal/services"
	pkgauth "github.com/BradenHooton/reportauth/pkg/auth"
	pkghttp "github.com/BradenHooton/reportauth/pkg/http"
	pkglogger "github.com/BradenHooton/reportauth/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Server.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if cfg.Database.MigrateOnStart {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := db.Migrate(ctx)
		cancel()
		if err != nil {
			logger.Error("failed to run migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	roleRepo := repositories.NewRoleRepository(db)
	permissionRepo := repositories.NewPermissionRepository(db)
	activityRepo := repositories.NewActivityLogRepository(db)

	// Initialize security services
	m := metrics.New()
	hasher := pkgauth.NewHasher(cfg.Auth.BcryptCost)
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry)
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelay: cfg.Auth.FailureDelay,
		Jitter:    cfg.Auth.FailureJitter,
	})
	auditLogger := pkglogger.NewAuditLogger(logger, cfg.Server.Env)

	// Initialize services
	auditService := services.NewAuditService(activityRepo, auditLogger, logger, m)
	accountService := services.NewAccountService(userRepo, roleRepo, hasher, auditService, services.AccountConfig{
		LockoutThreshold: cfg.Auth.LockoutThreshold,
		Policy: pkgauth.PasswordPolicy{
			MinLength: cfg.Policy.MinLength,
			MaxLength: cfg.Policy.MaxLength,
			Symbols:   cfg.Policy.Symbols,
		},
	}, logger)
	roleService := services.NewRoleService(roleRepo, userRepo, auditService, logger)
	permissionService := services.NewPermissionService(permissionRepo, auditService, logger)
	authService := services.NewAuthService(accountService, roleRepo, hasher, auditService, timingDelay, m, logger)
	adminService := services.NewAdminService(userRepo, roleRepo, activityRepo, logger)

	// Initialize handlers
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	h := routes.Handlers{
		Auth:  handlers.NewAuthHandler(authService, accountService, tokenManager, ipConfig, logger),
		Users: handlers.NewUserHandler(accountService, roleService, permissionService, ipConfig, logger),
		Roles: handlers.NewRoleHandler(roleService, permissionService, ipConfig, logger),
		Audit: handlers.NewAuditHandler(auditService, ipConfig, logger),
		Admin: handlers.NewAdminHandler(adminService, logger),
	}

	// Bootstrap first admin user if configured
	if cfg.Bootstrap.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := ensureAdminUser(ctx, accountService, cfg.Bootstrap, logger); err != nil {
			logger.Error("failed to ensure admin user", slog.Any("error", err))
		}
		cancel()
	}

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.SecureLogger(logger, ipConfig))
	router.Use(m.Instrument)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, h, tokenManager,
		routes.NewAccountReader(userRepo, roleRepo),
		permissionService,
		middlewareCustom.RateLimitConfig{
			Requests: cfg.Auth.LoginRateLimit,
			Window:   cfg.Auth.LoginRateWindow,
			IPConfig: ipConfig,
		},
	)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			pkghttp.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "database": "down"})
			return
		}
		pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy", "database": "up"})
	})
	router.Handle("/metrics", m.Handler())

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// ensureAdminUser creates the first admin from ADMIN_USERNAME, ADMIN_EMAIL and
// ADMIN_PASSWORD. An existing account with that username is left untouched.
func ensureAdminUser(ctx context.Context, accounts *services.AccountService, b config.BootstrapConfig, logger *slog.Logger) error {
	_, err := accounts.CreateUser(ctx, models.CreateUserInput{
		Username: b.AdminUsername,
		Email:    b.AdminEmail,
		Password: b.AdminPassword,
		Roles:    []string{models.RoleAdmin},
	}, models.SystemActor())

	var dup *models.DuplicateError
	if errors.As(err, &dup) {
		logger.Info("admin user already exists", slog.String("username", b.AdminUsername))
		return nil
	}
	if err != nil {
		return err
	}

	logger.Info("admin user created successfully", slog.String("username", b.AdminUsername))
	return nil
}
