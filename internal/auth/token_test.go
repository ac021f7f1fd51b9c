package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/reportauth/internal/models"
)

const testSecret = "a-test-secret-of-sufficient-length"

func testAuthResult(mustChange bool) *models.AuthResult {
	user := &models.User{ID: 7, Username: "alice", IsActive: true, MustChangePassword: mustChange}
	roles := []models.Role{{ID: models.RoleReportViewer}, {ID: models.RoleReportExecutor}}
	return &models.AuthResult{
		User:               models.NewUserInfo(user, roles),
		Roles:              roles,
		MustChangePassword: mustChange,
	}
}

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute)

	token, expiresAt, err := tm.GenerateAccessToken(testAuthResult(false))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)

	claims, err := tm.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, []string{models.RoleReportViewer, models.RoleReportExecutor}, claims.Roles)
	assert.True(t, claims.HasRole(models.RoleReportExecutor))
	assert.False(t, claims.MustChangePassword)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenManager_UniqueTokenIDs(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Minute)

	a, _, err := tm.GenerateAccessToken(testAuthResult(false))
	require.NoError(t, err)
	b, _, err := tm.GenerateAccessToken(testAuthResult(false))
	require.NoError(t, err)

	ca, _ := tm.ValidateToken(a)
	cb, _ := tm.ValidateToken(b)
	assert.NotEqual(t, ca.ID, cb.ID)
}

func TestTokenManager_CarriesMustChangePassword(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Minute)

	token, _, err := tm.GenerateAccessToken(testAuthResult(true))
	require.NoError(t, err)

	claims, err := tm.ValidateToken(token)
	require.NoError(t, err)
	assert.True(t, claims.MustChangePassword)
}

func TestTokenManager_Rejections(t *testing.T) {
	tm := NewTokenManager(testSecret, time.Minute)
	valid, _, err := tm.GenerateAccessToken(testAuthResult(false))
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		other := NewTokenManager("another-secret-entirely-different", time.Minute)
		_, err := other.ValidateToken(valid)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		later := NewTokenManager(testSecret, time.Minute)
		later.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
		_, err := later.ValidateToken(valid)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := tm.ValidateToken("not.a.token")
		assert.Error(t, err)
	})

	t.Run("none algorithm", func(t *testing.T) {
		claims := &models.TokenClaims{Type: tokenTypeAccess, UserID: 1, RegisteredClaims: jwt.RegisteredClaims{Issuer: tokenIssuer}}
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = tm.ValidateToken(unsigned)
		assert.Error(t, err)
	})

	t.Run("wrong type", func(t *testing.T) {
		claims := &models.TokenClaims{Type: "refresh", UserID: 1, RegisteredClaims: jwt.RegisteredClaims{Issuer: tokenIssuer}}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = tm.ValidateToken(signed)
		assert.Error(t, err)
	})
}
