package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthResult is a successful login. MustChangePassword is a signal only; the
// caller decides how to force the password-change flow.
type AuthResult struct {
	User               *UserInfo `json:"user"`
	Roles              []Role    `json:"roles"`
	MustChangePassword bool      `json:"must_change_password"`
	AuthenticatedAt    time.Time `json:"authenticated_at"`
}

// TokenClaims are carried in the access token issued at the HTTP boundary.
type TokenClaims struct {
	Type     string   `json:"type"`
	UserID   int64    `json:"user_id"`
	Username string   `json:"username"`
	Roles    []string `json:"roles,omitempty"`
	// MustChangePassword restricts the token to the password-change endpoint.
	MustChangePassword bool `json:"mcp,omitempty"`
	jwt.RegisteredClaims
}

// HasRole reports whether the token was issued with roleID.
func (c *TokenClaims) HasRole(roleID string) bool {
	for _, r := range c.Roles {
		if r == roleID {
			return true
		}
	}
	return false
}
