package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/BradenHooton/reportauth/internal/metrics"
	"github.com/BradenHooton/reportauth/internal/models"
	pkglogger "github.com/BradenHooton/reportauth/pkg/logger"
	"github.com/go-playground/validator/v10"
)

// ActivityLogRepository defines the interface for activity log data access
type ActivityLogRepository interface {
	Create(ctx context.Context, entry *models.ActivityLogEntry) (*models.ActivityLogEntry, error)
	GetByUserID(ctx context.Context, userID int64, limit, offset int) ([]*models.ActivityLogEntry, error)
	GetByActivityType(ctx context.Context, activityType string, limit, offset int) ([]*models.ActivityLogEntry, error)
	GetFailed(ctx context.Context, limit, offset int) ([]*models.ActivityLogEntry, error)
	CountByUserID(ctx context.Context, userID int64) (int64, error)
}

// Auditor records activity events. Record never fails the caller.
type Auditor interface {
	Record(ctx context.Context, event models.ActivityEvent)
}

// Column widths of user_activity_log.
const (
	maxUsernameLen    = 50
	maxDescriptionLen = 500
	maxIPLen          = 45
	maxUserAgentLen   = 500
)

// AuditService handles activity logging with dual-write pattern (slog + database)
type AuditService struct {
	repo        ActivityLogRepository
	auditLogger *pkglogger.AuditLogger
	logger      *slog.Logger
	metrics     *metrics.Metrics
	validate    *validator.Validate
}

func NewAuditService(repo ActivityLogRepository, auditLogger *pkglogger.AuditLogger, logger *slog.Logger, m *metrics.Metrics) *AuditService {
	return &AuditService{
		repo:        repo,
		auditLogger: auditLogger,
		logger:      logger,
		metrics:     m,
		validate:    models.NewValidator(),
	}
}

// Record writes one audit line and one activity row. Oversized fields are
// truncated to the column widths. A persistence failure is logged and counted,
// never returned.
func (s *AuditService) Record(ctx context.Context, event models.ActivityEvent) {
	event.Username = truncate(event.Username, maxUsernameLen)
	event.Description = truncate(event.Description, maxDescriptionLen)
	event.ErrorMessage = truncate(event.ErrorMessage, maxDescriptionLen)
	event.Origin.IPAddress = truncate(event.Origin.IPAddress, maxIPLen)
	event.Origin.UserAgent = truncate(event.Origin.UserAgent, maxUserAgentLen)

	line := toAuditEvent(event)
	s.auditLogger.Log(ctx, auditChannel(event.ActivityType), line)

	if _, err := s.repo.Create(ctx, models.NewActivityLogEntry(event)); err != nil {
		s.metrics.AuditPersistFailed()
		s.auditLogger.LogPersistFailure(ctx, line, err)
	}
}

// RecordActivity is the entry point for callers logging their own events,
// such as REPORT_EXECUTED from the scheduler. Unlike Record it rejects
// malformed events.
func (s *AuditService) RecordActivity(ctx context.Context, event models.ActivityEvent) error {
	if err := s.validate.Struct(event); err != nil {
		return models.ValidationErrorFrom(err)
	}
	s.Record(ctx, event)
	return nil
}

// UserTrail returns a user's activity, newest first.
func (s *AuditService) UserTrail(ctx context.Context, userID int64, limit, offset int) ([]*models.ActivityLogEntry, error) {
	limit, offset = clampPage(limit, offset)

	entries, err := s.repo.GetByUserID(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get user activity trail: %w", err)
	}
	return entries, nil
}

// RecentByType returns the newest events of one activity type.
func (s *AuditService) RecentByType(ctx context.Context, activityType string, limit int) ([]*models.ActivityLogEntry, error) {
	limit, _ = clampPage(limit, 0)

	entries, err := s.repo.GetByActivityType(ctx, activityType, limit, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get activity by type: %w", err)
	}
	return entries, nil
}

func (s *AuditService) RecentFailures(ctx context.Context, limit int) ([]*models.ActivityLogEntry, error) {
	limit, _ = clampPage(limit, 0)

	entries, err := s.repo.GetFailed(ctx, limit, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get failed activity: %w", err)
	}
	return entries, nil
}

// GetCountForUser returns the number of activity rows for a user
func (s *AuditService) GetCountForUser(ctx context.Context, userID int64) (int64, error) {
	count, err := s.repo.CountByUserID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count activity log: %w", err)
	}
	return count, nil
}

// clampPage bounds limit to 1..100 (default 50) and offset to >= 0.
func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func toAuditEvent(e models.ActivityEvent) pkglogger.AuditEvent {
	line := pkglogger.AuditEvent{
		EventType:     e.ActivityType,
		Username:      e.Username,
		IPAddress:     e.Origin.IPAddress,
		UserAgent:     e.Origin.UserAgent,
		Success:       e.Success,
		FailureReason: e.ErrorMessage,
	}
	if e.UserID != nil {
		line.UserID = strconv.FormatInt(*e.UserID, 10)
	}
	if e.Description != "" {
		line.Metadata = map[string]string{"description": e.Description}
	}
	return line
}

func auditChannel(activityType string) string {
	switch activityType {
	case models.ActivityLoginSuccess, models.ActivityLoginFailed:
		return "auth"
	case models.ActivityPasswordChanged, models.ActivityPasswordChangeFailed, models.ActivityPasswordReset:
		return "password"
	}
	return "account"
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
