package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/BradenHooton/reportauth/internal/models"
	pkghttp "github.com/BradenHooton/reportauth/pkg/http"
)

// RoleCatalog manages the role catalog.
type RoleCatalog interface {
	ListCatalog(ctx context.Context) ([]models.Role, error)
	CreateRole(ctx context.Context, role models.Role, actor models.Actor) (*models.Role, error)
	UpdateRole(ctx context.Context, roleID string, description *string, active *bool, actor models.Actor) (*models.Role, error)
}

// PermissionGranter manages per-report grants.
type PermissionGranter interface {
	GrantReportPermission(ctx context.Context, grant models.ReportPermission, actor models.Actor) (*models.ReportPermission, error)
	ListReportPermissions(ctx context.Context, reportID string) ([]*models.ReportPermission, error)
	RegisterReport(ctx context.Context, reportID, name string) error
}

// RoleHandler handles the role catalog and report permission endpoints
type RoleHandler struct {
	roles       RoleCatalog
	permissions PermissionGranter
	ipConfig    *pkghttp.IPConfig
	logger      *slog.Logger
}

func NewRoleHandler(roles RoleCatalog, permissions PermissionGranter, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *RoleHandler {
	return &RoleHandler{
		roles:       roles,
		permissions: permissions,
		ipConfig:    ipConfig,
		logger:      logger,
	}
}

// CreateRoleRequest represents the request body for adding a role
type CreateRoleRequest struct {
	RoleID      string  `json:"role_id" validate:"required,max=50"`
	RoleName    string  `json:"role_name" validate:"required,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
}

// UpdateRoleRequest changes a role's description or active flag
type UpdateRoleRequest struct {
	Description *string `json:"description" validate:"omitempty,max=500"`
	IsActive    *bool   `json:"is_active"`
}

// GrantPermissionRequest is the full capability set a role holds on a report
type GrantPermissionRequest struct {
	CanView    bool `json:"can_view"`
	CanExecute bool `json:"can_execute"`
	CanModify  bool `json:"can_modify"`
	CanDelete  bool `json:"can_delete"`
}

// RegisterReportRequest adds a report to the catalog so grants can reference it
type RegisterReportRequest struct {
	ReportID   string `json:"report_id" validate:"required,max=50"`
	ReportName string `json:"report_name" validate:"required,max=200"`
}

// ListRoles handles GET /roles
func (h *RoleHandler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roles.ListCatalog(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{"roles": roles})
}

// CreateRole handles POST /roles
func (h *RoleHandler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var req CreateRoleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	role, err := h.roles.CreateRole(r.Context(), models.Role{
		ID:          req.RoleID,
		Name:        req.RoleName,
		Description: req.Description,
	}, actorFrom(r, h.ipConfig))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusCreated, role)
}

// UpdateRole handles PATCH /roles/{roleID}
func (h *RoleHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var req UpdateRoleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if req.Description == nil && req.IsActive == nil {
		pkghttp.WriteBadRequest(w, "nothing to update")
		return
	}

	roleID := strings.ToUpper(chi.URLParam(r, "roleID"))
	role, err := h.roles.UpdateRole(r.Context(), roleID, req.Description, req.IsActive, actorFrom(r, h.ipConfig))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, role)
}

// RegisterReport handles POST /reports
func (h *RoleHandler) RegisterReport(w http.ResponseWriter, r *http.Request) {
	var req RegisterReportRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.permissions.RegisterReport(r.Context(), req.ReportID, req.ReportName); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GrantPermission handles PUT /reports/{reportID}/permissions/{roleID}. The
// body replaces any earlier grant for the pair.
func (h *RoleHandler) GrantPermission(w http.ResponseWriter, r *http.Request) {
	var req GrantPermissionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	grant, err := h.permissions.GrantReportPermission(r.Context(), models.ReportPermission{
		RoleID:     strings.ToUpper(chi.URLParam(r, "roleID")),
		ReportID:   chi.URLParam(r, "reportID"),
		CanView:    req.CanView,
		CanExecute: req.CanExecute,
		CanModify:  req.CanModify,
		CanDelete:  req.CanDelete,
	}, actorFrom(r, h.ipConfig))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, grant)
}

// ListPermissions handles GET /reports/{reportID}/permissions
func (h *RoleHandler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	grants, err := h.permissions.ListReportPermissions(r.Context(), chi.URLParam(r, "reportID"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{"permissions": grants})
}
