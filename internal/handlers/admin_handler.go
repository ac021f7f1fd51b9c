package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/reportauth/internal/services"
	pkghttp "github.com/BradenHooton/reportauth/pkg/http"
)

// AdminServiceInterface defines the dashboard service contract.
type AdminServiceInterface interface {
	GetDashboardStats(ctx context.Context) (*services.DashboardStatsResponse, error)
	GetRecentActivity(ctx context.Context, limit int) (*services.DashboardActivityResponse, error)
}

// AdminHandler handles admin dashboard HTTP requests.
type AdminHandler struct {
	service AdminServiceInterface
	logger  *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(service AdminServiceInterface, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{service: service, logger: logger}
}

// GetDashboardStats handles GET /admin/dashboard/stats
func (h *AdminHandler) GetDashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetDashboardStats(r.Context())
	if err != nil {
		h.logger.Error("failed to build dashboard stats", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Failed to retrieve dashboard stats")
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, stats)
}

// GetRecentActivity handles GET /admin/dashboard/activity
// Accepts optional query param ?limit=N (1–20, default 20).
func (h *AdminHandler) GetRecentActivity(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	if limit == 0 || limit > 20 {
		limit = 20
	}

	activity, err := h.service.GetRecentActivity(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to load recent activity", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Failed to retrieve recent activity")
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, activity)
}
