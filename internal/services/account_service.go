package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/reportauth/internal/models"
	"github.com/BradenHooton/reportauth/internal/repositories"
	pkgauth "github.com/BradenHooton/reportauth/pkg/auth"
	"github.com/go-playground/validator/v10"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]*models.User, error)
	Create(ctx context.Context, user *models.User, roleIDs []string) (*models.User, error)
	IncrementFailedAttempts(ctx context.Context, id int64, threshold int) (models.LockoutUpdate, error)
	RecordSuccessfulLogin(ctx context.Context, id int64) (time.Time, error)
	UpdatePassword(ctx context.Context, id int64, upd repositories.PasswordUpdate) error
	SetLocked(ctx context.Context, id int64, locked bool, modifiedBy string) (*models.User, error)
	SetActive(ctx context.Context, id int64, active bool, modifiedBy string) (*models.User, error)
	UpdateProfile(ctx context.Context, id int64, in models.UpdateProfileInput, modifiedBy string) (*models.User, error)
}

// AccountConfig carries the tunable account parameters.
type AccountConfig struct {
	LockoutThreshold int
	Policy           pkgauth.PasswordPolicy
}

// AccountService owns user records: creation, lockout bookkeeping and the
// password lifecycle.
type AccountService struct {
	repo     UserRepository
	roles    RoleRepository
	hasher   *pkgauth.Hasher
	audit    Auditor
	cfg      AccountConfig
	validate *validator.Validate
	logger   *slog.Logger
}

func NewAccountService(repo UserRepository, roles RoleRepository, hasher *pkgauth.Hasher, audit Auditor, cfg AccountConfig, logger *slog.Logger) *AccountService {
	if cfg.LockoutThreshold < 1 {
		cfg.LockoutThreshold = 5
	}
	if cfg.Policy.MinLength == 0 {
		cfg.Policy = pkgauth.DefaultPasswordPolicy()
	}
	return &AccountService{
		repo:     repo,
		roles:    roles,
		hasher:   hasher,
		audit:    audit,
		cfg:      cfg,
		validate: models.NewValidator(),
		logger:   logger,
	}
}

// LockoutThreshold is the failed-attempt count at which accounts lock.
func (s *AccountService) LockoutThreshold() int {
	return s.cfg.LockoutThreshold
}

// CreateUser validates, hashes and stores a new account together with its
// initial roles. Nothing is written when any check fails.
func (s *AccountService) CreateUser(ctx context.Context, in models.CreateUserInput, actor models.Actor) (int64, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)

	if err := s.validate.Struct(in); err != nil {
		return 0, models.ValidationErrorFrom(err)
	}
	if err := s.cfg.Policy.Validate(in.Password); err != nil {
		return 0, err
	}

	// Checked up front for a precise error; the unique constraints still
	// decide races between concurrent creators.
	if _, err := s.repo.GetByUsername(ctx, in.Username); err == nil {
		return 0, &models.DuplicateError{Field: "username"}
	} else if !errors.Is(err, models.ErrNotFound) {
		return 0, fmt.Errorf("failed to check username: %w", err)
	}
	if _, err := s.repo.GetByEmail(ctx, in.Email); err == nil {
		return 0, &models.DuplicateError{Field: "email"}
	} else if !errors.Is(err, models.ErrNotFound) {
		return 0, fmt.Errorf("failed to check email: %w", err)
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return 0, err
	}

	created, err := s.repo.Create(ctx, &models.User{
		Username:           in.Username,
		Email:              in.Email,
		PasswordHash:       digest,
		FirstName:          in.FirstName,
		LastName:           in.LastName,
		MustChangePassword: in.MustChangePassword,
		CreatedBy:          actor.Name(),
	}, dedupe(in.Roles))
	if err != nil {
		return 0, err
	}

	s.logger.Info("user created", slog.Int64("user_id", created.ID), slog.Any("roles", in.Roles))
	s.audit.Record(ctx, models.ActivityEvent{
		UserID:       &created.ID,
		Username:     created.Username,
		ActivityType: models.ActivityUserCreated,
		Description:  fmt.Sprintf("created by %s with roles [%s]", actor.Name(), strings.Join(in.Roles, ",")),
		Origin:       actor.Origin,
		Success:      true,
	})

	return created.ID, nil
}

func (s *AccountService) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.repo.GetByUsername(ctx, username)
}

func (s *AccountService) FindByID(ctx context.Context, id int64) (*models.User, error) {
	return s.repo.GetByID(ctx, id)
}

// RecordFailedAttempt increments the failure counter and locks the account
// once the threshold is reached. It returns the new count and lock state.
func (s *AccountService) RecordFailedAttempt(ctx context.Context, id int64) (int, bool, error) {
	upd, err := s.repo.IncrementFailedAttempts(ctx, id, s.cfg.LockoutThreshold)
	if err != nil {
		return 0, false, err
	}
	return upd.FailedAttempts, upd.Locked, nil
}

// ResetFailedAttempts zeroes the counter after a successful login. It never
// clears the lock flag.
func (s *AccountService) ResetFailedAttempts(ctx context.Context, id int64) (time.Time, error) {
	return s.repo.RecordSuccessfulLogin(ctx, id)
}

// ChangePassword is the self-service path: the current password must verify.
func (s *AccountService) ChangePassword(ctx context.Context, id int64, oldPassword, newPassword string, origin models.OriginMetadata) error {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	event := models.ActivityEvent{
		UserID:   &user.ID,
		Username: user.Username,
		Origin:   origin,
	}

	if !s.hasher.Verify(oldPassword, user.PasswordHash) {
		event.ActivityType = models.ActivityPasswordChangeFailed
		event.ErrorMessage = "current password did not verify"
		s.audit.Record(ctx, event)
		return &models.AuthenticationError{Reason: models.ReasonBadCredential}
	}

	if err := s.cfg.Policy.Validate(newPassword); err != nil {
		event.ActivityType = models.ActivityPasswordChangeFailed
		event.ErrorMessage = err.Error()
		s.audit.Record(ctx, event)
		return err
	}

	digest, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, id, repositories.PasswordUpdate{
		Hash:               digest,
		MustChangePassword: false,
		ModifiedBy:         user.Username,
	}); err != nil {
		return err
	}

	event.ActivityType = models.ActivityPasswordChanged
	event.Success = true
	s.audit.Record(ctx, event)
	return nil
}

// ResetPassword is the administrative path: no old-password check, the user
// must change the password at next login, and the failure counter is zeroed.
// The lock flag is left as it is; unlocking is a separate action.
func (s *AccountService) ResetPassword(ctx context.Context, id int64, newPassword string, actor models.Actor) error {
	if err := s.cfg.Policy.Validate(newPassword); err != nil {
		return err
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	digest, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, id, repositories.PasswordUpdate{
		Hash:               digest,
		MustChangePassword: true,
		ResetFailures:      true,
		ModifiedBy:         actor.Name(),
	}); err != nil {
		return err
	}

	s.audit.Record(ctx, models.ActivityEvent{
		UserID:       &user.ID,
		Username:     user.Username,
		ActivityType: models.ActivityPasswordReset,
		Description:  "password reset by " + actor.Name(),
		Origin:       actor.Origin,
		Success:      true,
	})
	return nil
}

// SetLocked locks or unlocks an account. Unlocking also zeroes the counter.
func (s *AccountService) SetLocked(ctx context.Context, id int64, locked bool, actor models.Actor) (*models.User, error) {
	user, err := s.repo.SetLocked(ctx, id, locked, actor.Name())
	if err != nil {
		return nil, err
	}

	activity := models.ActivityUserUnlocked
	if locked {
		activity = models.ActivityUserLocked
	}
	s.recordAdminAction(ctx, user, activity, actor)
	return user, nil
}

func (s *AccountService) SetActive(ctx context.Context, id int64, active bool, actor models.Actor) (*models.User, error) {
	user, err := s.repo.SetActive(ctx, id, active, actor.Name())
	if err != nil {
		return nil, err
	}

	activity := models.ActivityUserDeactivated
	if active {
		activity = models.ActivityUserActivated
	}
	s.recordAdminAction(ctx, user, activity, actor)
	return user, nil
}

// DeactivateUser is the only form of deletion: the row and its audit trail stay.
func (s *AccountService) DeactivateUser(ctx context.Context, id int64, actor models.Actor) error {
	user, err := s.repo.SetActive(ctx, id, false, actor.Name())
	if err != nil {
		return err
	}
	s.recordAdminAction(ctx, user, models.ActivityUserDeleted, actor)
	return nil
}

func (s *AccountService) UpdateProfile(ctx context.Context, id int64, in models.UpdateProfileInput, actor models.Actor) (*models.User, error) {
	if in.Email != nil {
		email := strings.TrimSpace(*in.Email)
		in.Email = &email
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, models.ValidationErrorFrom(err)
	}
	if in.IsEmpty() {
		return s.repo.GetByID(ctx, id)
	}

	user, err := s.repo.UpdateProfile(ctx, id, in, actor.Name())
	if err != nil {
		return nil, err
	}
	s.recordAdminAction(ctx, user, models.ActivityUserUpdated, actor)
	return user, nil
}

func (s *AccountService) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	limit, offset = clampPage(limit, offset)

	users, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		s.logger.Error("failed to list users", slog.Int("limit", limit), slog.Int("offset", offset), slog.Any("error", err))
		return nil, err
	}
	return users, nil
}

// GetUserInfo returns the user without credentials, with active roles attached.
func (s *AccountService) GetUserInfo(ctx context.Context, id int64) (*models.UserInfo, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	roles, err := s.roles.ListForUser(ctx, id, true)
	if err != nil {
		return nil, err
	}
	return models.NewUserInfo(user, roles), nil
}

// recordAdminAction files the event under the affected user so it shows in
// that user's trail; the actor is named in the description.
func (s *AccountService) recordAdminAction(ctx context.Context, target *models.User, activity string, actor models.Actor) {
	s.audit.Record(ctx, models.ActivityEvent{
		UserID:       &target.ID,
		Username:     target.Username,
		ActivityType: activity,
		Description:  "by " + actor.Name(),
		Origin:       actor.Origin,
		Success:      true,
	})
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
