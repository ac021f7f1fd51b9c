package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/BradenHooton/reportauth/internal/models"
)

// AdminUserRepository is the subset of UserRepository methods needed by AdminService.
type AdminUserRepository interface {
	CountTotal(ctx context.Context) (int64, error)
	CountByState(ctx context.Context, state string) (int64, error)
	CountNewSince(ctx context.Context, since time.Time) (int64, error)
}

// AdminRoleRepository is the subset of RoleRepository methods needed by AdminService.
type AdminRoleRepository interface {
	CountAssignments(ctx context.Context) (map[string]int64, error)
}

// AdminActivityRepository is the subset of ActivityLogRepository methods needed by AdminService.
type AdminActivityRepository interface {
	GetByActivityType(ctx context.Context, activityType string, limit, offset int) ([]*models.ActivityLogEntry, error)
	GetFailed(ctx context.Context, limit, offset int) ([]*models.ActivityLogEntry, error)
	CountSinceByType(ctx context.Context, activityType string, since time.Time) (int64, error)
}

// DashboardStatsResponse contains aggregate admin metrics.
type DashboardStatsResponse struct {
	TotalUsers       int64            `json:"total_users"`
	ActiveUsers      int64            `json:"active_users"`
	LockedUsers      int64            `json:"locked_users"`
	InactiveUsers    int64            `json:"inactive_users"`
	NewUsersToday    int64            `json:"new_users_today"`
	LoginsToday      int64            `json:"logins_today"`
	FailedLoginToday int64            `json:"failed_logins_today"`
	RoleBreakdown    map[string]int64 `json:"role_breakdown"`
}

// DashboardActivityResponse contains recent event feeds.
type DashboardActivityResponse struct {
	RecentLogins []*models.ActivityLogEntry `json:"recent_logins"`
	RecentFailed []*models.ActivityLogEntry `json:"recent_failed"`
}

// AdminService aggregates data for admin dashboard endpoints.
type AdminService struct {
	userRepo     AdminUserRepository
	roleRepo     AdminRoleRepository
	activityRepo AdminActivityRepository
	logger       *slog.Logger
}

// NewAdminService creates a new AdminService.
func NewAdminService(userRepo AdminUserRepository, roleRepo AdminRoleRepository, activityRepo AdminActivityRepository, logger *slog.Logger) *AdminService {
	return &AdminService{
		userRepo:     userRepo,
		roleRepo:     roleRepo,
		activityRepo: activityRepo,
		logger:       logger,
	}
}

// GetDashboardStats returns aggregate user and activity counts.
func (s *AdminService) GetDashboardStats(ctx context.Context) (*DashboardStatsResponse, error) {
	total, err := s.userRepo.CountTotal(ctx)
	if err != nil {
		s.logger.Error("dashboard: failed to count total users", slog.Any("error", err))
		return nil, err
	}

	states := map[string]int64{}
	for _, state := range []string{"active", "locked", "inactive"} {
		n, err := s.userRepo.CountByState(ctx, state)
		if err != nil {
			s.logger.Error("dashboard: failed to count users by state", slog.String("state", state), slog.Any("error", err))
			return nil, err
		}
		states[state] = n
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	newToday, err := s.userRepo.CountNewSince(ctx, today)
	if err != nil {
		s.logger.Error("dashboard: failed to count new users today", slog.Any("error", err))
		return nil, err
	}

	loginsToday, err := s.activityRepo.CountSinceByType(ctx, models.ActivityLoginSuccess, today)
	if err != nil {
		s.logger.Error("dashboard: failed to count logins today", slog.Any("error", err))
		return nil, err
	}

	failedToday, err := s.activityRepo.CountSinceByType(ctx, models.ActivityLoginFailed, today)
	if err != nil {
		s.logger.Error("dashboard: failed to count failed logins today", slog.Any("error", err))
		return nil, err
	}

	breakdown, err := s.roleRepo.CountAssignments(ctx)
	if err != nil {
		s.logger.Error("dashboard: failed to count role assignments", slog.Any("error", err))
		return nil, err
	}

	return &DashboardStatsResponse{
		TotalUsers:       total,
		ActiveUsers:      states["active"],
		LockedUsers:      states["locked"],
		InactiveUsers:    states["inactive"],
		NewUsersToday:    newToday,
		LoginsToday:      loginsToday,
		FailedLoginToday: failedToday,
		RoleBreakdown:    breakdown,
	}, nil
}

// GetRecentActivity returns recent login feeds for the activity dashboard.
// limit is clamped to a maximum of 20.
func (s *AdminService) GetRecentActivity(ctx context.Context, limit int) (*DashboardActivityResponse, error) {
	if limit <= 0 || limit > 20 {
		limit = 20
	}

	logins, err := s.activityRepo.GetByActivityType(ctx, models.ActivityLoginSuccess, limit, 0)
	if err != nil {
		s.logger.Error("dashboard: failed to fetch recent logins", slog.Any("error", err))
		return nil, err
	}

	failed, err := s.activityRepo.GetFailed(ctx, limit, 0)
	if err != nil {
		s.logger.Error("dashboard: failed to fetch failed activity", slog.Any("error", err))
		return nil, err
	}

	return &DashboardActivityResponse{
		RecentLogins: logins,
		RecentFailed: failed,
	}, nil
}
