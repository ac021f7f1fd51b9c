package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	pkghttp "github.com/BradenHooton/reportauth/pkg/http"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	// IPConfig decides which forwarding headers are trusted when keying by client.
	IPConfig *pkghttp.IPConfig
}

// DefaultLoginRateLimit returns the login limit used when nothing is configured (10 per minute)
func DefaultLoginRateLimit() RateLimitConfig {
	return RateLimitConfig{
		Requests: 10,
		Window:   time.Minute,
	}
}

// RateLimitByIP creates a middleware that rate limits requests by client IP.
// This bounds online guessing; the per-account lockout still applies beneath it.
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.Requests,
		config.Window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return pkghttp.ExtractClientIP(r, config.IPConfig), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, "too many requests, try again later")
		}),
	)
}
