package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/reportauth/internal/metrics"
	"github.com/BradenHooton/reportauth/internal/models"
	pkgauth "github.com/BradenHooton/reportauth/pkg/auth"
)

// TimingDelay pads failed logins so their duration does not depend on the cause.
type TimingDelay interface {
	WaitFrom(start time.Time, success bool)
}

// reasonInternal marks audit rows for logins aborted by a storage failure.
const reasonInternal = "internal_error"

// AuthService handles authentication business logic
type AuthService struct {
	accounts *AccountService
	roles    RoleRepository
	hasher   *pkgauth.Hasher
	audit    Auditor
	timing   TimingDelay
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewAuthService creates a new AuthService. timing and m may be nil.
func NewAuthService(accounts *AccountService, roles RoleRepository, hasher *pkgauth.Hasher, audit Auditor, timing TimingDelay, m *metrics.Metrics, logger *slog.Logger) *AuthService {
	return &AuthService{
		accounts: accounts,
		roles:    roles,
		hasher:   hasher,
		audit:    audit,
		timing:   timing,
		metrics:  m,
		logger:   logger,
	}
}

// Authenticate checks a username and password. Every call writes exactly one
// LOGIN_SUCCESS or LOGIN_FAILED audit entry.
//
// The checks run in order: account lookup, lock, active, credential. A failure
// is a *models.AuthenticationError whose message is generic unless the account
// is locked. Storage failures are returned wrapped and are not authentication
// errors.
func (s *AuthService) Authenticate(ctx context.Context, username, password string, origin models.OriginMetadata) (*models.AuthResult, error) {
	start := time.Now()
	event := models.ActivityEvent{
		Username: username,
		Origin:   origin,
	}

	user, err := s.accounts.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.verify(password, "")
			return nil, s.reject(ctx, start, event, models.ReasonNotFound, "unknown username")
		}
		return nil, s.abort(ctx, event, fmt.Errorf("failed to look up account: %w", err))
	}
	event.UserID = &user.ID

	if user.IsLocked {
		return nil, s.reject(ctx, start, event, models.ReasonLocked, "account is locked")
	}

	if !user.IsActive {
		s.verify(password, "")
		return nil, s.reject(ctx, start, event, models.ReasonInactive, "account is inactive")
	}

	if !s.verify(password, user.PasswordHash) {
		count, locked, err := s.accounts.RecordFailedAttempt(ctx, user.ID)
		if err != nil {
			return nil, s.abort(ctx, event, fmt.Errorf("failed to record failed attempt: %w", err))
		}

		detail := fmt.Sprintf("invalid password (attempt %d)", count)
		if locked {
			s.metrics.AccountLocked()
			s.logger.Warn("account locked after failed attempts",
				slog.Int64("user_id", user.ID),
				slog.Int("failed_attempts", count))
			detail = fmt.Sprintf("invalid password (attempt %d); account locked", count)
		}
		return nil, s.reject(ctx, start, event, models.ReasonBadCredential, detail)
	}

	roles, err := s.roles.ListForUser(ctx, user.ID, true)
	if err != nil {
		return nil, s.abort(ctx, event, fmt.Errorf("failed to load roles: %w", err))
	}

	lastLogin, err := s.accounts.ResetFailedAttempts(ctx, user.ID)
	if err != nil {
		return nil, s.abort(ctx, event, fmt.Errorf("failed to record successful login: %w", err))
	}
	user.FailedLoginAttempts = 0
	user.LastLoginDate = &lastLogin

	s.metrics.LoginOutcome("success")
	s.logger.Info("user logged in", slog.Int64("user_id", user.ID))
	event.ActivityType = models.ActivityLoginSuccess
	event.Success = true
	s.audit.Record(ctx, event)

	return &models.AuthResult{
		User:               models.NewUserInfo(user, roles),
		Roles:              roles,
		MustChangePassword: user.MustChangePassword,
		AuthenticatedAt:    lastLogin,
	}, nil
}

// verify compares password with digest, or burns an equivalent comparison
// when there is no digest to check.
func (s *AuthService) verify(password, digest string) bool {
	start := time.Now()
	defer func() { s.metrics.ObserveVerify(time.Since(start)) }()

	if digest == "" {
		s.hasher.DummyVerify(password)
		return false
	}
	return s.hasher.Verify(password, digest)
}

func (s *AuthService) reject(ctx context.Context, start time.Time, event models.ActivityEvent, reason models.AuthFailureReason, detail string) error {
	s.metrics.LoginOutcome(string(reason))
	s.logger.Info("login failed", slog.String("reason", string(reason)))

	event.ActivityType = models.ActivityLoginFailed
	event.Success = false
	event.ErrorMessage = fmt.Sprintf("%s: %s", reason, detail)
	s.audit.Record(ctx, event)

	if s.timing != nil {
		s.timing.WaitFrom(start, false)
	}
	return &models.AuthenticationError{Reason: reason}
}

func (s *AuthService) abort(ctx context.Context, event models.ActivityEvent, err error) error {
	s.metrics.LoginOutcome(reasonInternal)
	s.logger.Error("login aborted", slog.Any("error", err))

	event.ActivityType = models.ActivityLoginFailed
	event.Success = false
	event.ErrorMessage = reasonInternal
	s.audit.Record(ctx, event)
	return err
}
