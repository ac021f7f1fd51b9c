package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/BradenHooton/reportauth/internal/auth"
	"github.com/BradenHooton/reportauth/internal/models"
	pkghttp "github.com/BradenHooton/reportauth/pkg/http"
)

// UserService defines the interface for account administration
type UserService interface {
	CreateUser(ctx context.Context, in models.CreateUserInput, actor models.Actor) (int64, error)
	GetUserInfo(ctx context.Context, id int64) (*models.UserInfo, error)
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error)
	UpdateProfile(ctx context.Context, id int64, in models.UpdateProfileInput, actor models.Actor) (*models.User, error)
	ResetPassword(ctx context.Context, id int64, newPassword string, actor models.Actor) error
	SetLocked(ctx context.Context, id int64, locked bool, actor models.Actor) (*models.User, error)
	SetActive(ctx context.Context, id int64, active bool, actor models.Actor) (*models.User, error)
	DeactivateUser(ctx context.Context, id int64, actor models.Actor) error
}

// RoleAssigner grants and removes roles on users.
type RoleAssigner interface {
	AssignRole(ctx context.Context, userID int64, roleID string, actor models.Actor) error
	RevokeRole(ctx context.Context, userID int64, roleID string, actor models.Actor) error
}

// CapabilityResolver answers what a user may do with a report.
type CapabilityResolver interface {
	EffectiveCapabilities(ctx context.Context, userID int64, reportID string) (models.Capabilities, error)
}

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	users    UserService
	roles    RoleAssigner
	caps     CapabilityResolver
	ipConfig *pkghttp.IPConfig
	logger   *slog.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(users UserService, roles RoleAssigner, caps CapabilityResolver, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		users:    users,
		roles:    roles,
		caps:     caps,
		ipConfig: ipConfig,
		logger:   logger,
	}
}

// Request/Response DTOs

// CreateUserRequest represents the request body for creating a user
type CreateUserRequest struct {
	Username           string   `json:"username" validate:"required,username"`
	Email              string   `json:"email" validate:"required,email,max=100"`
	Password           string   `json:"password" validate:"required"`
	FirstName          *string  `json:"first_name" validate:"omitempty,max=50"`
	LastName           *string  `json:"last_name" validate:"omitempty,max=50"`
	Roles              []string `json:"roles" validate:"dive,required,max=50"`
	MustChangePassword bool     `json:"must_change_password"`
}

// UpdateUserRequest represents the request body for a profile change
type UpdateUserRequest struct {
	Email     *string `json:"email" validate:"omitempty,email,max=100"`
	FirstName *string `json:"first_name" validate:"omitempty,max=50"`
	LastName  *string `json:"last_name" validate:"omitempty,max=50"`
}

// ResetPasswordRequest carries the temporary password set by an administrator
type ResetPasswordRequest struct {
	NewPassword string `json:"new_password" validate:"required"`
}

// UserResponse represents a user in list responses
type UserResponse struct {
	ID                  int64      `json:"user_id"`
	Username            string     `json:"username"`
	Email               string     `json:"email"`
	FirstName           *string    `json:"first_name,omitempty"`
	LastName            *string    `json:"last_name,omitempty"`
	IsActive            bool       `json:"is_active"`
	IsLocked            bool       `json:"is_locked"`
	FailedLoginAttempts int        `json:"failed_login_attempts"`
	LastLoginDate       *time.Time `json:"last_login_date,omitempty"`
	MustChangePassword  bool       `json:"must_change_password"`
	CreatedDate         time.Time  `json:"created_date"`
}

// ListUsersResponse represents a page of users
type ListUsersResponse struct {
	Users  []*UserResponse `json:"users"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// CapabilitiesResponse is a user's effective access to one report
type CapabilitiesResponse struct {
	UserID       int64               `json:"user_id"`
	ReportID     string              `json:"report_id"`
	Capabilities models.Capabilities `json:"capabilities"`
}

func userModelToResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:                  user.ID,
		Username:            user.Username,
		Email:               user.Email,
		FirstName:           user.FirstName,
		LastName:            user.LastName,
		IsActive:            user.IsActive,
		IsLocked:            user.IsLocked,
		FailedLoginAttempts: user.FailedLoginAttempts,
		LastLoginDate:       user.LastLoginDate,
		MustChangePassword:  user.MustChangePassword,
		CreatedDate:         user.CreatedDate,
	}
}

// Me handles GET /users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}
	h.writeUserInfo(w, r, claims.UserID)
}

// MyCapabilities handles GET /users/me/capabilities/{reportID}
func (h *UserHandler) MyCapabilities(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}
	h.writeCapabilities(w, r, claims.UserID)
}

// CreateUser handles POST /users
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	id, err := h.users.CreateUser(r.Context(), models.CreateUserInput{
		Username:           req.Username,
		Email:              req.Email,
		Password:           req.Password,
		FirstName:          req.FirstName,
		LastName:           req.LastName,
		Roles:              req.Roles,
		MustChangePassword: req.MustChangePassword,
	}, actorFrom(r, h.ipConfig))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	info, err := h.users.GetUserInfo(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusCreated, info)
}

// ListUsers handles GET /users?limit=&offset=
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	if limit == 0 || limit > 100 {
		limit = 50
	}
	offset := queryInt(r, "offset", 0)

	users, err := h.users.ListUsers(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	resp := ListUsersResponse{Users: make([]*UserResponse, 0, len(users)), Limit: limit, Offset: offset}
	for _, u := range users {
		resp.Users = append(resp.Users, userModelToResponse(u))
	}
	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// GetUser handles GET /users/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathUserID(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}
	h.writeUserInfo(w, r, id)
}

// UpdateUser handles PATCH /users/{id}
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathUserID(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	var req UpdateUserRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), id, models.UpdateProfileInput{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}, actorFrom(r, h.ipConfig))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, userModelToResponse(user))
}

// ResetPassword handles POST /users/{id}/password-reset
func (h *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	id, err := pathUserID(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	var req ResetPasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.users.ResetPassword(r.Context(), id, req.NewPassword, actorFrom(r, h.ipConfig)); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Lock handles POST /users/{id}/lock
func (h *UserHandler) Lock(w http.ResponseWriter, r *http.Request) {
	h.changeState(w, r, func(ctx context.Context, id int64, actor models.Actor) (*models.User, error) {
		return h.users.SetLocked(ctx, id, true, actor)
	})
}

// Unlock handles POST /users/{id}/unlock
func (h *UserHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	h.changeState(w, r, func(ctx context.Context, id int64, actor models.Actor) (*models.User, error) {
		return h.users.SetLocked(ctx, id, false, actor)
	})
}

// Activate handles POST /users/{id}/activate
func (h *UserHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.changeState(w, r, func(ctx context.Context, id int64, actor models.Actor) (*models.User, error) {
		return h.users.SetActive(ctx, id, true, actor)
	})
}

// Deactivate handles POST /users/{id}/deactivate
func (h *UserHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.changeState(w, r, func(ctx context.Context, id int64, actor models.Actor) (*models.User, error) {
		return h.users.SetActive(ctx, id, false, actor)
	})
}

// DeleteUser handles DELETE /users/{id}. Users are deactivated, never removed.
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathUserID(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}
	if h.isSelf(r, id) {
		pkghttp.WriteBadRequest(w, "administrators cannot delete their own account")
		return
	}

	if err := h.users.DeactivateUser(r.Context(), id, actorFrom(r, h.ipConfig)); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AssignRole handles POST /users/{id}/roles/{roleID}
func (h *UserHandler) AssignRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathUserID(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}
	roleID := strings.ToUpper(chi.URLParam(r, "roleID"))

	if err := h.roles.AssignRole(r.Context(), id, roleID, actorFrom(r, h.ipConfig)); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RevokeRole handles DELETE /users/{id}/roles/{roleID}
func (h *UserHandler) RevokeRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathUserID(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}
	roleID := strings.ToUpper(chi.URLParam(r, "roleID"))

	if err := h.roles.RevokeRole(r.Context(), id, roleID, actorFrom(r, h.ipConfig)); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UserCapabilities handles GET /users/{id}/capabilities/{reportID}
func (h *UserHandler) UserCapabilities(w http.ResponseWriter, r *http.Request) {
	id, err := pathUserID(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}
	h.writeCapabilities(w, r, id)
}

func (h *UserHandler) changeState(w http.ResponseWriter, r *http.Request, apply func(context.Context, int64, models.Actor) (*models.User, error)) {
	id, err := pathUserID(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}
	if h.isSelf(r, id) {
		pkghttp.WriteBadRequest(w, "administrators cannot change the state of their own account")
		return
	}

	user, err := apply(r.Context(), id, actorFrom(r, h.ipConfig))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, userModelToResponse(user))
}

func (h *UserHandler) writeUserInfo(w http.ResponseWriter, r *http.Request, id int64) {
	info, err := h.users.GetUserInfo(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, info)
}

func (h *UserHandler) writeCapabilities(w http.ResponseWriter, r *http.Request, userID int64) {
	reportID := strings.TrimSpace(chi.URLParam(r, "reportID"))
	if reportID == "" {
		pkghttp.WriteBadRequest(w, "report id is required")
		return
	}

	caps, err := h.caps.EffectiveCapabilities(r.Context(), userID, reportID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, CapabilitiesResponse{UserID: userID, ReportID: reportID, Capabilities: caps})
}

// isSelf reports whether the caller is acting on their own account.
func (h *UserHandler) isSelf(r *http.Request, id int64) bool {
	claims := auth.GetUserFromContext(r)
	return claims != nil && claims.UserID == id
}
