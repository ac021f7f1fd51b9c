package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/BradenHooton/reportauth/internal/auth"
	"github.com/BradenHooton/reportauth/internal/models"
	pkghttp "github.com/BradenHooton/reportauth/pkg/http"
)

// ActivityService records and reads the activity trail.
type ActivityService interface {
	RecordActivity(ctx context.Context, event models.ActivityEvent) error
	UserTrail(ctx context.Context, userID int64, limit, offset int) ([]*models.ActivityLogEntry, error)
	RecentFailures(ctx context.Context, limit int) ([]*models.ActivityLogEntry, error)
	RecentByType(ctx context.Context, activityType string, limit int) ([]*models.ActivityLogEntry, error)
	GetCountForUser(ctx context.Context, userID int64) (int64, error)
}

// AuditHandler handles activity log HTTP requests
type AuditHandler struct {
	service  ActivityService
	ipConfig *pkghttp.IPConfig
	logger   *slog.Logger
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(service ActivityService, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{
		service:  service,
		ipConfig: ipConfig,
		logger:   logger,
	}
}

// RecordActivityRequest lets an authenticated caller log its own event, for
// example REPORT_EXECUTED from the report scheduler.
type RecordActivityRequest struct {
	ActivityType string `json:"activity_type" validate:"required,max=50"`
	Description  string `json:"description" validate:"max=500"`
	Success      *bool  `json:"success"`
	ErrorMessage string `json:"error_message" validate:"max=500"`
}

// ActivityPage is a page of activity rows
type ActivityPage struct {
	Entries []*models.ActivityLogEntry `json:"entries"`
	Total   int64                      `json:"total,omitempty"`
	Limit   int                        `json:"limit"`
	Offset  int                        `json:"offset"`
}

// RecordActivity handles POST /activity. The event is always filed under the
// caller; callers cannot write entries for other users.
func (h *AuditHandler) RecordActivity(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}

	var req RecordActivityRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	success := true
	if req.Success != nil {
		success = *req.Success
	}
	userID := claims.UserID

	err := h.service.RecordActivity(r.Context(), models.ActivityEvent{
		UserID:       &userID,
		Username:     claims.Username,
		ActivityType: req.ActivityType,
		Description:  req.Description,
		Origin:       originFrom(r, h.ipConfig),
		Success:      success,
		ErrorMessage: req.ErrorMessage,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// RecordReportExecution handles POST /reports/{reportID}/executions. The route
// is gated on the execute capability; reaching the handler means the caller
// may run the report, and the run is written to their trail.
func (h *AuditHandler) RecordReportExecution(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "unauthorized")
		return
	}
	userID := claims.UserID

	err := h.service.RecordActivity(r.Context(), models.ActivityEvent{
		UserID:       &userID,
		Username:     claims.Username,
		ActivityType: models.ActivityReportExecuted,
		Description:  "Report: " + chi.URLParam(r, "reportID"),
		Origin:       originFrom(r, h.ipConfig),
		Success:      true,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// GetUserActivity handles GET /users/{id}/activity?limit=&offset=
func (h *AuditHandler) GetUserActivity(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUserID(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	limit := queryInt(r, "limit", 50)
	if limit == 0 || limit > 100 {
		limit = 50
	}
	offset := queryInt(r, "offset", 0)

	entries, err := h.service.UserTrail(r.Context(), userID, limit, offset)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	count, err := h.service.GetCountForUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	w.Header().Set("X-Total-Count", strconv.FormatInt(count, 10))
	pkghttp.WriteJSON(w, http.StatusOK, ActivityPage{Entries: entries, Total: count, Limit: limit, Offset: offset})
}

// GetFailures handles GET /activity/failures?limit=
func (h *AuditHandler) GetFailures(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	if limit == 0 || limit > 100 {
		limit = 50
	}

	entries, err := h.service.RecentFailures(r.Context(), limit)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, ActivityPage{Entries: entries, Limit: limit})
}

// GetByType handles GET /activity/types/{activityType}?limit=
func (h *AuditHandler) GetByType(w http.ResponseWriter, r *http.Request) {
	activityType := strings.ToUpper(chi.URLParam(r, "activityType"))
	if activityType == "" {
		pkghttp.WriteBadRequest(w, "activity type is required")
		return
	}
	limit := queryInt(r, "limit", 50)
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	entries, err := h.service.RecentByType(r.Context(), activityType, limit)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, ActivityPage{Entries: entries, Limit: limit})
}
