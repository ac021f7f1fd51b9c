package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BradenHooton/reportauth/internal/models"
)

// PermissionRepository defines the interface for report grants
type PermissionRepository interface {
	Upsert(ctx context.Context, p *models.ReportPermission) (*models.ReportPermission, error)
	EffectiveCapabilities(ctx context.Context, userID int64, reportID string) (models.Capabilities, error)
	ListForReport(ctx context.Context, reportID string) ([]*models.ReportPermission, error)
	EnsureReport(ctx context.Context, reportID, name string) error
}

// PermissionService resolves and grants per-report capabilities.
type PermissionService struct {
	repo   PermissionRepository
	audit  Auditor
	logger *slog.Logger
}

func NewPermissionService(repo PermissionRepository, audit Auditor, logger *slog.Logger) *PermissionService {
	return &PermissionService{
		repo:   repo,
		audit:  audit,
		logger: logger,
	}
}

// EffectiveCapabilities is the OR of every grant on reportID across the user's
// active roles. A user with no roles, no grant or an unknown report gets the
// zero Capabilities and no error.
func (s *PermissionService) EffectiveCapabilities(ctx context.Context, userID int64, reportID string) (models.Capabilities, error) {
	return s.repo.EffectiveCapabilities(ctx, userID, reportID)
}

func (s *PermissionService) HasCapability(ctx context.Context, userID int64, reportID string, capability models.Capability) (bool, error) {
	caps, err := s.repo.EffectiveCapabilities(ctx, userID, reportID)
	if err != nil {
		return false, err
	}
	return caps.Allows(capability), nil
}

// GrantReportPermission sets the capabilities a role holds on a report,
// replacing any earlier grant for the same pair.
func (s *PermissionService) GrantReportPermission(ctx context.Context, grant models.ReportPermission, actor models.Actor) (*models.ReportPermission, error) {
	grant.RoleID = strings.TrimSpace(grant.RoleID)
	grant.ReportID = strings.TrimSpace(grant.ReportID)
	if grant.RoleID == "" || grant.ReportID == "" {
		return nil, &models.ValidationError{Field: "RoleID/ReportID", Reasons: []string{"this field is required"}}
	}
	grant.GrantedBy = actor.Name()

	saved, err := s.repo.Upsert(ctx, &grant)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, models.ActivityEvent{
		UserID:       actor.UserID,
		Username:     actor.Name(),
		ActivityType: models.ActivityPermissionGranted,
		Description: fmt.Sprintf("role %s on report %s: view=%t execute=%t modify=%t delete=%t",
			saved.RoleID, saved.ReportID, saved.CanView, saved.CanExecute, saved.CanModify, saved.CanDelete),
		Origin:  actor.Origin,
		Success: true,
	})
	return saved, nil
}

func (s *PermissionService) ListReportPermissions(ctx context.Context, reportID string) ([]*models.ReportPermission, error) {
	return s.repo.ListForReport(ctx, reportID)
}

// RegisterReport makes reportID available for grants.
func (s *PermissionService) RegisterReport(ctx context.Context, reportID, name string) error {
	reportID = strings.TrimSpace(reportID)
	if reportID == "" {
		return &models.ValidationError{Field: "ReportID", Reasons: []string{"this field is required"}}
	}
	return s.repo.EnsureReport(ctx, reportID, name)
}
