package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/reportauth/internal/auth"
	"github.com/BradenHooton/reportauth/internal/models"
	pkghttp "github.com/BradenHooton/reportauth/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Authenticate(ctx context.Context, username, password string, origin models.OriginMetadata) (*models.AuthResult, error)
}

// PasswordChanger is the self-service password change.
type PasswordChanger interface {
	ChangePassword(ctx context.Context, id int64, oldPassword, newPassword string, origin models.OriginMetadata) error
}

// TokenIssuer signs access tokens for authenticated users.
type TokenIssuer interface {
	GenerateAccessToken(result *models.AuthResult) (string, time.Time, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service  AuthServiceInterface
	accounts PasswordChanger
	tokens   TokenIssuer
	ipConfig *pkghttp.IPConfig
	logger   *slog.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, accounts PasswordChanger, tokens TokenIssuer, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service:  service,
		accounts: accounts,
		tokens:   tokens,
		ipConfig: ipConfig,
		logger:   logger,
	}
}

// LoginRequest represents the request body for login
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=50"`
	Password string `json:"password" validate:"required,max=256"`
}

// LoginResponse is returned on successful login. When MustChangePassword is
// set the token only opens POST /auth/password.
type LoginResponse struct {
	AccessToken        string           `json:"access_token"`
	TokenType          string           `json:"token_type"`
	ExpiresAt          time.Time        `json:"expires_at"`
	MustChangePassword bool             `json:"must_change_password"`
	User               *models.UserInfo `json:"user"`
}

// ChangePasswordRequest represents the request body for a password change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

// Login handles user login
// @Summary User login
// @Accept json
// @Param request body LoginRequest true "Login request"
// @Produce json
// @Success 200 {object} LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.service.Authenticate(r.Context(), req.Username, req.Password, originFrom(r, h.ipConfig))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	token, expiresAt, err := h.tokens.GenerateAccessToken(result)
	if err != nil {
		h.logger.Error("failed to issue access token", slog.Int64("user_id", result.User.ID), slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, LoginResponse{
		AccessToken:        token,
		TokenType:          "Bearer",
		ExpiresAt:          expiresAt,
		MustChangePassword: result.MustChangePassword,
		User:               result.User,
	})
}

// ChangePassword handles POST /auth/password for the authenticated user.
// Callers log in again afterwards to get a token without the must-change flag.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req ChangePasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	err := h.accounts.ChangePassword(r.Context(), claims.UserID, req.CurrentPassword, req.NewPassword, originFrom(r, h.ipConfig))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
