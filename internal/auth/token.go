package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/BradenHooton/reportauth/internal/models"
)

const (
	tokenTypeAccess = "access"
	tokenIssuer     = "reportauth"
)

// TokenManager issues and validates the HS256 access tokens handed out by
// POST /auth/login. Tokens are a transport convenience; account state is
// still checked against the database where it matters.
type TokenManager struct {
	secret       []byte
	accessExpiry time.Duration
	now          func() time.Time
}

// NewTokenManager creates a new TokenManager
func NewTokenManager(secret string, accessExpiry time.Duration) *TokenManager {
	return &TokenManager{
		secret:       []byte(secret),
		accessExpiry: accessExpiry,
		now:          time.Now,
	}
}

// AccessExpiry is the lifetime of tokens issued by GenerateAccessToken.
func (tm *TokenManager) AccessExpiry() time.Duration {
	return tm.accessExpiry
}

// GenerateAccessToken creates a short-lived access token for an authenticated
// user. A token for an account that must change its password only opens the
// password-change endpoint.
func (tm *TokenManager) GenerateAccessToken(result *models.AuthResult) (string, time.Time, error) {
	now := tm.now()
	expiresAt := now.Add(tm.accessExpiry)

	claims := &models.TokenClaims{
		Type:               tokenTypeAccess,
		UserID:             result.User.ID,
		Username:           result.User.Username,
		Roles:              models.RoleIDs(result.Roles),
		MustChangePassword: result.MustChangePassword,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tokenIssuer,
			Subject:   result.User.Username,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken verifies a token and returns its claims
func (tm *TokenManager) ValidateToken(tokenString string) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(tm.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, models.ErrUnauthorized
	}

	if claims.Type != tokenTypeAccess {
		return nil, fmt.Errorf("invalid token: unexpected type %q", claims.Type)
	}
	if claims.UserID <= 0 {
		return nil, fmt.Errorf("invalid token: missing user id")
	}

	return claims, nil
}
