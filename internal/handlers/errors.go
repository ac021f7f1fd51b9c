package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BradenHooton/reportauth/internal/models"
	pkgauth "github.com/BradenHooton/reportauth/pkg/auth"
	pkghttp "github.com/BradenHooton/reportauth/pkg/http"
)

// writeServiceError maps a service error onto the HTTP error envelope.
// Unclassified errors are logged and reported as 500 without detail.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var (
		authErr   *models.AuthenticationError
		policyErr *pkgauth.PasswordPolicyError
		dupErr    *models.DuplicateError
		nfErr     *models.NotFoundError
		valErr    *models.ValidationError
		assignErr *models.AlreadyAssignedError
	)

	switch {
	case errors.As(err, &authErr):
		code := "unauthorized"
		if authErr.Reason == models.ReasonLocked {
			code = "account_locked"
		}
		pkghttp.WriteError(w, http.StatusUnauthorized, code, authErr.PublicMessage())
	case errors.As(err, &policyErr):
		pkghttp.WriteErrorWithDetails(w, http.StatusBadRequest, "weak_password",
			"password does not meet policy", strings.Join(policyErr.Messages(), "; "))
	case errors.As(err, &valErr):
		pkghttp.WriteBadRequest(w, valErr.Error())
	case errors.As(err, &assignErr):
		pkghttp.WriteConflict(w, assignErr.Error())
	case errors.As(err, &dupErr):
		pkghttp.WriteConflict(w, dupErr.Error())
	case errors.As(err, &nfErr):
		pkghttp.WriteNotFound(w, nfErr.Error())
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Resource not found")
	case errors.Is(err, models.ErrIntegrity):
		pkghttp.WriteConflict(w, "request conflicts with existing data")
	default:
		logger.Error("request failed", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
