package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/BradenHooton/reportauth/internal/models"
	pkghttp "github.com/BradenHooton/reportauth/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// UserContextKey is the key for storing user claims in context
	UserContextKey contextKey = "user"
	// AccountContextKey holds the account row loaded by RequireActiveAccount
	AccountContextKey contextKey = "account"
)

// AccountReader loads the current account and role state for a token holder.
type AccountReader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	ListForUser(ctx context.Context, userID int64, activeOnly bool) ([]models.Role, error)
}

// CapabilityChecker answers whether a user holds a capability on a report.
type CapabilityChecker interface {
	HasCapability(ctx context.Context, userID int64, reportID string, capability models.Capability) (bool, error)
}

// AuthMiddleware validates bearer tokens and injects the claims into context.
func AuthMiddleware(tm *TokenManager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				pkghttp.WriteUnauthorized(w, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				pkghttp.WriteUnauthorized(w, "invalid authorization header format")
				return
			}

			claims, err := tm.ValidateToken(parts[1])
			if err != nil {
				pkghttp.WriteUnauthorized(w, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireActiveAccount loads the token holder's account on every request and
// rejects it once the account is locked, deactivated or gone, so an unexpired
// token stops working as soon as the account state changes.
func RequireActiveAccount(accounts AccountReader) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := loadAccount(w, r, accounts)
			if !ok {
				return
			}
			ctx := context.WithValue(r.Context(), AccountContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePasswordCurrent rejects accounts that must change their password.
// Mount it on every route except the password change. The account row loaded
// by RequireActiveAccount wins over the token claim, so an administrative
// reset applies to tokens issued before it.
func RequirePasswordCurrent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := GetUserFromContext(r)
		if claims == nil {
			pkghttp.WriteUnauthorized(w, "unauthorized")
			return
		}
		mustChange := claims.MustChangePassword
		if account := GetAccountFromContext(r); account != nil {
			mustChange = account.MustChangePassword
		}
		if mustChange {
			pkghttp.WriteError(w, http.StatusForbidden, "password_change_required", "password must be changed before continuing")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole enforces role-based access control against the database rather
// than the token, so revocations, locks and deactivations apply immediately.
func RequireRole(accounts AccountReader, roleID string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetAccountFromContext(r)
			if user == nil {
				var ok bool
				if user, ok = loadAccount(w, r, accounts); !ok {
					return
				}
			}

			roles, err := accounts.ListForUser(r.Context(), user.ID, true)
			if err != nil {
				pkghttp.WriteInternalError(w, "internal server error")
				return
			}
			if !models.HasRole(roles, roleID) {
				pkghttp.WriteForbidden(w, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// loadAccount fetches the claims' account and writes the rejection itself
// when the caller may not proceed.
func loadAccount(w http.ResponseWriter, r *http.Request, accounts AccountReader) (*models.User, bool) {
	claims := GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return nil, false
	}

	user, err := accounts.GetByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteUnauthorized(w, "unauthorized")
			return nil, false
		}
		pkghttp.WriteInternalError(w, "internal server error")
		return nil, false
	}
	if !user.CanAuthenticate() {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return nil, false
	}
	return user, true
}

// RequireCapability gates a route on the caller's effective capability for the
// report named by the {reportID} URL parameter.
func RequireCapability(checker CapabilityChecker, capability models.Capability) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetUserFromContext(r)
			if claims == nil {
				pkghttp.WriteUnauthorized(w, "unauthorized")
				return
			}

			reportID := chi.URLParam(r, "reportID")
			if reportID == "" {
				pkghttp.WriteBadRequest(w, "report id is required")
				return
			}

			ok, err := checker.HasCapability(r.Context(), claims.UserID, reportID, capability)
			if err != nil {
				pkghttp.WriteInternalError(w, "internal server error")
				return
			}
			if !ok {
				pkghttp.WriteForbidden(w, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetUserFromContext extracts user claims from request context
func GetUserFromContext(r *http.Request) *models.TokenClaims {
	claims, ok := r.Context().Value(UserContextKey).(*models.TokenClaims)
	if !ok {
		return nil
	}
	return claims
}

// GetAccountFromContext returns the account loaded by RequireActiveAccount, or nil.
func GetAccountFromContext(r *http.Request) *models.User {
	user, _ := r.Context().Value(AccountContextKey).(*models.User)
	return user
}

// WithClaims returns a copy of ctx carrying claims.
func WithClaims(ctx context.Context, claims *models.TokenClaims) context.Context {
	return context.WithValue(ctx, UserContextKey, claims)
}
