package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/BradenHooton/reportauth/internal/models"
	pkgauth "github.com/BradenHooton/reportauth/pkg/auth"
)

const alicePassword = "Sup3r$ecret!"

var testOrigin = models.OriginMetadata{IPAddress: "10.1.2.3", UserAgent: "scheduler/1.0"}

type authFixture struct {
	store    *MemoryStore
	users    *MockUserRepository
	audit    *MockAuditor
	hasher   *pkgauth.Hasher
	accounts *AccountService
	roles    *RoleService
	auth     *AuthService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	store := NewMemoryStore()
	users := store.Users()
	roleRepo := store.Roles()
	audit := &MockAuditor{}
	hasher := pkgauth.NewHasher(bcrypt.MinCost)
	logger := discardLogger()

	accounts := NewAccountService(users, roleRepo, hasher, audit, AccountConfig{
		LockoutThreshold: 5,
		Policy:           pkgauth.DefaultPasswordPolicy(),
	}, logger)

	return &authFixture{
		store:    store,
		users:    users,
		audit:    audit,
		hasher:   hasher,
		accounts: accounts,
		roles:    NewRoleService(roleRepo, users, audit, logger),
		auth:     NewAuthService(accounts, roleRepo, hasher, audit, nil, nil, logger),
	}
}

// createUser provisions an account and clears the audit events it produced.
func (f *authFixture) createUser(t *testing.T, username, password string, roles ...string) int64 {
	t.Helper()
	id, err := f.accounts.CreateUser(context.Background(), models.CreateUserInput{
		Username: username,
		Email:    username + "@example.com",
		Password: password,
		Roles:    roles,
	}, models.SystemActor())
	require.NoError(t, err)
	f.audit.Events = nil
	return id
}

func requireAuthReason(t *testing.T, err error, want models.AuthFailureReason) {
	t.Helper()
	reason, ok := models.AuthReason(err)
	require.True(t, ok, "want *models.AuthenticationError, got %v", err)
	assert.Equal(t, want, reason)
}

func TestAuthService_Authenticate_Success(t *testing.T) {
	f := newAuthFixture(t)
	id := f.createUser(t, "alice", alicePassword, models.RoleReportViewer)

	result, err := f.auth.Authenticate(context.Background(), "alice", alicePassword, testOrigin)

	require.NoError(t, err)
	assert.Equal(t, id, result.User.ID)
	assert.Equal(t, []string{models.RoleReportViewer}, models.RoleIDs(result.Roles))
	assert.False(t, result.MustChangePassword)
	assert.NotNil(t, result.User.LastLoginDate)
	assert.False(t, result.AuthenticatedAt.IsZero())

	require.Len(t, f.audit.Events, 1)
	event := f.audit.Last()
	assert.Equal(t, models.ActivityLoginSuccess, event.ActivityType)
	assert.True(t, event.Success)
	require.NotNil(t, event.UserID)
	assert.Equal(t, id, *event.UserID)
	assert.Equal(t, testOrigin, event.Origin)
}

func TestAuthService_Authenticate_UnknownUser(t *testing.T) {
	f := newAuthFixture(t)

	result, err := f.auth.Authenticate(context.Background(), "nobody", "whatever", testOrigin)

	assert.Nil(t, result)
	requireAuthReason(t, err, models.ReasonNotFound)
	assert.Equal(t, models.GenericAuthMessage, err.Error())
	assert.True(t, errors.Is(err, models.ErrUnauthorized))

	require.Len(t, f.audit.Events, 1)
	event := f.audit.Last()
	assert.Equal(t, models.ActivityLoginFailed, event.ActivityType)
	assert.Nil(t, event.UserID)
	assert.Equal(t, "nobody", event.Username)
	assert.Contains(t, event.ErrorMessage, string(models.ReasonNotFound))
}

func TestAuthService_Authenticate_WrongPasswordMessageMatchesUnknownUser(t *testing.T) {
	f := newAuthFixture(t)
	f.createUser(t, "alice", alicePassword)

	_, wrongPassword := f.auth.Authenticate(context.Background(), "alice", "Wr0ng$pass", testOrigin)
	_, unknownUser := f.auth.Authenticate(context.Background(), "mallory", "Wr0ng$pass", testOrigin)

	requireAuthReason(t, wrongPassword, models.ReasonBadCredential)
	assert.Equal(t, unknownUser.Error(), wrongPassword.Error())
}

func TestAuthService_Authenticate_FiveFailuresLock(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	id := f.createUser(t, "bob", alicePassword)

	for i := 1; i <= 5; i++ {
		_, err := f.auth.Authenticate(ctx, "bob", "Wr0ng$pass", testOrigin)
		requireAuthReason(t, err, models.ReasonBadCredential)
		assert.Equal(t, i, f.store.User(id).FailedLoginAttempts)
	}
	assert.True(t, f.store.User(id).IsLocked)

	_, err := f.auth.Authenticate(ctx, "bob", alicePassword, testOrigin)
	requireAuthReason(t, err, models.ReasonLocked)
	assert.Equal(t, "account is locked", err.Error())
	assert.True(t, errors.Is(err, models.ErrAccountLocked))
	assert.Equal(t, 5, f.store.User(id).FailedLoginAttempts, "locked attempts are not counted")

	assert.Equal(t, 6, f.audit.Count(models.ActivityLoginFailed))
	assert.Len(t, f.audit.Events, 6)
}

func TestAuthService_Authenticate_ThresholdIsConfigurable(t *testing.T) {
	f := newAuthFixture(t)
	f.accounts.cfg.LockoutThreshold = 2
	id := f.createUser(t, "carol", alicePassword)

	for i := 0; i < 2; i++ {
		_, _ = f.auth.Authenticate(context.Background(), "carol", "nope", testOrigin)
	}

	assert.True(t, f.store.User(id).IsLocked)
}

func TestAuthService_Authenticate_Inactive(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	id := f.createUser(t, "dave", alicePassword)
	_, err := f.accounts.SetActive(ctx, id, false, models.SystemActor())
	require.NoError(t, err)
	f.audit.Events = nil

	_, err = f.auth.Authenticate(ctx, "dave", alicePassword, testOrigin)

	requireAuthReason(t, err, models.ReasonInactive)
	assert.Equal(t, models.GenericAuthMessage, err.Error())
	assert.True(t, errors.Is(err, models.ErrAccountDisabled))
	assert.Zero(t, f.store.User(id).FailedLoginAttempts)
	assert.Len(t, f.audit.Events, 1)
}

func TestAuthService_Authenticate_LockCheckedBeforeActive(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	id := f.createUser(t, "erin", alicePassword)
	_, err := f.accounts.SetActive(ctx, id, false, models.SystemActor())
	require.NoError(t, err)
	_, err = f.accounts.SetLocked(ctx, id, true, models.SystemActor())
	require.NoError(t, err)

	_, err = f.auth.Authenticate(ctx, "erin", alicePassword, testOrigin)

	requireAuthReason(t, err, models.ReasonLocked)
}

func TestAuthService_Authenticate_SuccessResetsCounterButNeverUnlocks(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	id := f.createUser(t, "frank", alicePassword)

	for i := 0; i < 3; i++ {
		_, _ = f.auth.Authenticate(ctx, "frank", "nope", testOrigin)
	}
	require.Equal(t, 3, f.store.User(id).FailedLoginAttempts)

	_, err := f.auth.Authenticate(ctx, "frank", alicePassword, testOrigin)
	require.NoError(t, err)
	assert.Zero(t, f.store.User(id).FailedLoginAttempts)

	// The success path zeroes the counter only; the lock flag is untouched.
	_, err = f.accounts.ResetFailedAttempts(ctx, id)
	require.NoError(t, err)
	_, err = f.accounts.SetLocked(ctx, id, true, models.SystemActor())
	require.NoError(t, err)
	_, err = f.accounts.ResetFailedAttempts(ctx, id)
	require.NoError(t, err)
	assert.True(t, f.store.User(id).IsLocked)
}

func TestAuthService_Authenticate_ConcurrentFailuresAllCounted(t *testing.T) {
	f := newAuthFixture(t)
	f.accounts.cfg.LockoutThreshold = 1000
	id := f.createUser(t, "grace", alicePassword)

	const attempts = 25
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.auth.Authenticate(context.Background(), "grace", "nope", testOrigin)
		}()
	}
	wg.Wait()

	assert.Equal(t, attempts, f.store.User(id).FailedLoginAttempts)
	assert.Equal(t, attempts, f.audit.Count(models.ActivityLoginFailed))
}

func TestAuthService_Authenticate_StorageFailureIsNotAnAuthError(t *testing.T) {
	f := newAuthFixture(t)
	f.users.GetByUsernameFunc = func(ctx context.Context, username string) (*models.User, error) {
		return nil, errors.New("connection refused")
	}

	_, err := f.auth.Authenticate(context.Background(), "alice", alicePassword, testOrigin)

	require.Error(t, err)
	_, isAuth := models.AuthReason(err)
	assert.False(t, isAuth)
	assert.Contains(t, err.Error(), "connection refused")

	require.Len(t, f.audit.Events, 1)
	assert.Equal(t, reasonInternal, f.audit.Last().ErrorMessage)
}

func TestAuthService_Authenticate_CounterFailureAuditedOnce(t *testing.T) {
	f := newAuthFixture(t)
	f.createUser(t, "heidi", alicePassword)
	f.users.IncrementFailedAttemptsFunc = func(ctx context.Context, id int64, threshold int) (models.LockoutUpdate, error) {
		return models.LockoutUpdate{}, errors.New("deadlock detected")
	}

	_, err := f.auth.Authenticate(context.Background(), "heidi", "nope", testOrigin)

	require.Error(t, err)
	assert.Len(t, f.audit.Events, 1)
}

func TestAuthService_Authenticate_TimingDelayOnFailureOnly(t *testing.T) {
	f := newAuthFixture(t)
	f.createUser(t, "ivan", alicePassword)

	var calls int
	f.auth.timing = &MockTimingDelay{WaitFromFunc: func(start time.Time, succeeded bool) {
		calls++
		assert.False(t, succeeded)
	}}

	_, _ = f.auth.Authenticate(context.Background(), "ivan", "nope", testOrigin)
	_, _ = f.auth.Authenticate(context.Background(), "nobody", "nope", testOrigin)
	_, err := f.auth.Authenticate(context.Background(), "ivan", alicePassword, testOrigin)
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
}

func TestAuthService_Authenticate_ExactlyOneAuditPerCall(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	id := f.createUser(t, "judy", alicePassword)

	calls := []struct {
		username string
		password string
		prepare  func()
	}{
		{"judy", alicePassword, nil},
		{"judy", "nope", nil},
		{"nobody", "nope", nil},
		{"judy", alicePassword, func() { _, _ = f.accounts.SetActive(ctx, id, false, models.SystemActor()) }},
		{"judy", alicePassword, func() { _, _ = f.accounts.SetLocked(ctx, id, true, models.SystemActor()) }},
	}

	for _, c := range calls {
		if c.prepare != nil {
			c.prepare()
		}
		before := len(f.audit.Events)
		_, _ = f.auth.Authenticate(ctx, c.username, c.password, testOrigin)

		logins := 0
		for _, e := range f.audit.Events[before:] {
			if e.ActivityType == models.ActivityLoginSuccess || e.ActivityType == models.ActivityLoginFailed {
				logins++
			}
		}
		assert.Equal(t, 1, logins, "call for %s", c.username)
	}
}

func TestScenario_AliceWrongTwiceThenSucceeds(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	id := f.createUser(t, "alice", alicePassword)
	require.NoError(t, f.roles.AssignRole(ctx, id, models.RoleReportViewer, models.SystemActor()))

	for i := 0; i < 2; i++ {
		_, err := f.auth.Authenticate(ctx, "alice", "Wr0ng$pass", testOrigin)
		requireAuthReason(t, err, models.ReasonBadCredential)
	}
	alice := f.store.User(id)
	assert.Equal(t, 2, alice.FailedLoginAttempts)
	assert.False(t, alice.IsLocked)

	result, err := f.auth.Authenticate(ctx, "alice", alicePassword, testOrigin)
	require.NoError(t, err)

	alice = f.store.User(id)
	assert.Zero(t, alice.FailedLoginAttempts)
	assert.NotNil(t, alice.LastLoginDate)
	assert.True(t, models.HasRole(result.Roles, models.RoleReportViewer))
}

func TestScenario_ResetPasswordForcesChange(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	admin := models.Actor{Username: "admin"}

	id := f.createUser(t, "kate", alicePassword)
	require.NoError(t, f.accounts.ResetPassword(ctx, id, "Temp123!@", admin))
	assert.True(t, f.store.User(id).MustChangePassword)

	result, err := f.auth.Authenticate(ctx, "kate", "Temp123!@", testOrigin)
	require.NoError(t, err)
	assert.True(t, result.MustChangePassword)

	_, err = f.auth.Authenticate(ctx, "kate", alicePassword, testOrigin)
	requireAuthReason(t, err, models.ReasonBadCredential)
}
