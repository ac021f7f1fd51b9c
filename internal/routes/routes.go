package routes

import (
	"context"

	"github.com/go-chi/chi/v5"

	"github.com/BradenHooton/reportauth/internal/auth"
	"github.com/BradenHooton/reportauth/internal/handlers"
	"github.com/BradenHooton/reportauth/internal/middleware"
	"github.com/BradenHooton/reportauth/internal/models"
)

// Handlers bundles the HTTP handlers mounted by RegisterRoutes
type Handlers struct {
	Auth  *handlers.AuthHandler
	Users *handlers.UserHandler
	Roles *handlers.RoleHandler
	Audit *handlers.AuditHandler
	Admin *handlers.AdminHandler
}

// UserLookup and RoleLookup are the repository methods RequireRole needs.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type RoleLookup interface {
	ListForUser(ctx context.Context, userID int64, activeOnly bool) ([]models.Role, error)
}

// accountReader joins the user and role repositories, whose GetByID methods
// would otherwise collide, into an auth.AccountReader.
type accountReader struct {
	users UserLookup
	roles RoleLookup
}

// NewAccountReader builds the live account view checked on every authenticated request.
func NewAccountReader(users UserLookup, roles RoleLookup) auth.AccountReader {
	return &accountReader{users: users, roles: roles}
}

func (a *accountReader) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return a.users.GetByID(ctx, id)
}

func (a *accountReader) ListForUser(ctx context.Context, userID int64, activeOnly bool) ([]models.Role, error) {
	return a.roles.ListForUser(ctx, userID, activeOnly)
}

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	h Handlers,
	tokenManager *auth.TokenManager,
	accounts auth.AccountReader,
	capabilities auth.CapabilityChecker,
	loginLimit middleware.RateLimitConfig,
) {
	// Public routes - no authentication required
	router.With(middleware.RateLimitByIP(loginLimit)).Post("/auth/login", h.Auth.Login)

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(tokenManager))
		r.Use(auth.RequireActiveAccount(accounts))

		// The only route open to a token that carries must_change_password
		r.Post("/auth/password", h.Auth.ChangePassword)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequirePasswordCurrent)

			// Any authenticated user
			r.Get("/users/me", h.Users.Me)
			r.Get("/users/me/capabilities/{reportID}", h.Users.MyCapabilities)
			r.Post("/activity", h.Audit.RecordActivity)
			r.With(auth.RequireCapability(capabilities, models.CapabilityExecute)).
				Post("/reports/{reportID}/executions", h.Audit.RecordReportExecution)

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(accounts, models.RoleAdmin))

				r.Get("/users", h.Users.ListUsers)
				r.Post("/users", h.Users.CreateUser)
				r.Get("/users/{id}", h.Users.GetUser)
				r.Patch("/users/{id}", h.Users.UpdateUser)
				r.Delete("/users/{id}", h.Users.DeleteUser)
				r.Post("/users/{id}/password-reset", h.Users.ResetPassword)
				r.Post("/users/{id}/lock", h.Users.Lock)
				r.Post("/users/{id}/unlock", h.Users.Unlock)
				r.Post("/users/{id}/activate", h.Users.Activate)
				r.Post("/users/{id}/deactivate", h.Users.Deactivate)
				r.Post("/users/{id}/roles/{roleID}", h.Users.AssignRole)
				r.Delete("/users/{id}/roles/{roleID}", h.Users.RevokeRole)
				r.Get("/users/{id}/capabilities/{reportID}", h.Users.UserCapabilities)
				r.Get("/users/{id}/activity", h.Audit.GetUserActivity)

				r.Get("/roles", h.Roles.ListRoles)
				r.Post("/roles", h.Roles.CreateRole)
				r.Patch("/roles/{roleID}", h.Roles.UpdateRole)

				r.Post("/reports", h.Roles.RegisterReport)
				r.Get("/reports/{reportID}/permissions", h.Roles.ListPermissions)
				r.Put("/reports/{reportID}/permissions/{roleID}", h.Roles.GrantPermission)

				r.Get("/activity/failures", h.Audit.GetFailures)
				r.Get("/activity/types/{activityType}", h.Audit.GetByType)

				r.Get("/admin/dashboard/stats", h.Admin.GetDashboardStats)
				r.Get("/admin/dashboard/activity", h.Admin.GetRecentActivity)
			})
		})
	})
}
