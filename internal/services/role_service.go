package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BradenHooton/reportauth/internal/models"
	"github.com/go-playground/validator/v10"
)

// RoleRepository defines the interface for the role catalog and assignments
type RoleRepository interface {
	GetByID(ctx context.Context, roleID string) (*models.Role, error)
	List(ctx context.Context) ([]models.Role, error)
	Create(ctx context.Context, role *models.Role) (*models.Role, error)
	Update(ctx context.Context, roleID string, description *string, active *bool) (*models.Role, error)
	Assign(ctx context.Context, userID int64, roleID, assignedBy string) error
	Revoke(ctx context.Context, userID int64, roleID string) error
	ListForUser(ctx context.Context, userID int64, activeOnly bool) ([]models.Role, error)
}

// RoleService manages the role catalog and user-role assignments.
type RoleService struct {
	repo     RoleRepository
	users    UserRepository
	audit    Auditor
	validate *validator.Validate
	logger   *slog.Logger
}

func NewRoleService(repo RoleRepository, users UserRepository, audit Auditor, logger *slog.Logger) *RoleService {
	return &RoleService{
		repo:     repo,
		users:    users,
		audit:    audit,
		validate: models.NewValidator(),
		logger:   logger,
	}
}

// AssignRole adds roleID to the user. It returns *models.NotFoundError for an
// unknown user or role and *models.AlreadyAssignedError when the pair exists.
func (s *RoleService) AssignRole(ctx context.Context, userID int64, roleID string, actor models.Actor) error {
	if err := s.repo.Assign(ctx, userID, roleID, actor.Name()); err != nil {
		return err
	}

	s.recordRoleChange(ctx, userID, models.ActivityRoleAssigned, roleID, actor)
	return nil
}

func (s *RoleService) RevokeRole(ctx context.Context, userID int64, roleID string, actor models.Actor) error {
	if err := s.repo.Revoke(ctx, userID, roleID); err != nil {
		return err
	}

	s.recordRoleChange(ctx, userID, models.ActivityRoleRevoked, roleID, actor)
	return nil
}

// ListRoles returns the user's active roles ordered by role id.
func (s *RoleService) ListRoles(ctx context.Context, userID int64) ([]models.Role, error) {
	return s.repo.ListForUser(ctx, userID, true)
}

// ListCatalog returns every role, active or not.
func (s *RoleService) ListCatalog(ctx context.Context) ([]models.Role, error) {
	return s.repo.List(ctx)
}

// CreateRole adds a role to the catalog at runtime.
func (s *RoleService) CreateRole(ctx context.Context, role models.Role, actor models.Actor) (*models.Role, error) {
	role.ID = strings.ToUpper(strings.TrimSpace(role.ID))
	role.Name = strings.TrimSpace(role.Name)
	role.IsActive = true

	if err := s.validate.Struct(role); err != nil {
		return nil, models.ValidationErrorFrom(err)
	}

	created, err := s.repo.Create(ctx, &role)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, models.ActivityEvent{
		UserID:       actor.UserID,
		Username:     actor.Name(),
		ActivityType: models.ActivityRoleCreated,
		Description:  "created role " + created.ID,
		Origin:       actor.Origin,
		Success:      true,
	})
	return created, nil
}

// UpdateRole changes a role's description or active flag. The id and name are
// immutable because grants and assignments refer to them.
func (s *RoleService) UpdateRole(ctx context.Context, roleID string, description *string, active *bool, actor models.Actor) (*models.Role, error) {
	if description != nil && len([]rune(*description)) > 500 {
		return nil, &models.ValidationError{Field: "Description", Reasons: []string{"must have a maximum of 500 characters"}}
	}

	updated, err := s.repo.Update(ctx, roleID, description, active)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, models.ActivityEvent{
		UserID:       actor.UserID,
		Username:     actor.Name(),
		ActivityType: models.ActivityRoleUpdated,
		Description:  fmt.Sprintf("updated role %s (active=%t)", updated.ID, updated.IsActive),
		Origin:       actor.Origin,
		Success:      true,
	})
	return updated, nil
}

func (s *RoleService) recordRoleChange(ctx context.Context, userID int64, activity, roleID string, actor models.Actor) {
	event := models.ActivityEvent{
		UserID:       &userID,
		ActivityType: activity,
		Description:  fmt.Sprintf("%s by %s", roleID, actor.Name()),
		Origin:       actor.Origin,
		Success:      true,
	}
	if user, err := s.users.GetByID(ctx, userID); err == nil {
		event.Username = user.Username
	} else {
		s.logger.Warn("role change audit without username", slog.Int64("user_id", userID), slog.Any("error", err))
	}
	s.audit.Record(ctx, event)
}
