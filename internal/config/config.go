package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Auth      AuthConfig
	Policy    PasswordPolicyConfig
	Bootstrap BootstrapConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	MigrateOnStart    bool
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	TrustedProxies []string
}

type AuthConfig struct {
	JWTSecret         string
	AccessTokenExpiry time.Duration
	// LockoutThreshold is the failed-attempt count at which an account locks.
	LockoutThreshold int
	BcryptCost       int
	LoginRateLimit   int
	LoginRateWindow  time.Duration
	// FailureDelay is the floor every failed login is padded to; FailureJitter
	// adds a random amount on top.
	FailureDelay  time.Duration
	FailureJitter time.Duration
}

type PasswordPolicyConfig struct {
	MinLength int
	MaxLength int
	Symbols   string
}

// BootstrapConfig seeds the first administrator on startup when all three
// credentials are set.
type BootstrapConfig struct {
	AdminUsername string
	AdminEmail    string
	AdminPassword string
}

func (b BootstrapConfig) Enabled() bool {
	return b.AdminUsername != "" && b.AdminEmail != "" && b.AdminPassword != ""
}

// Load reads configuration for the API server. JWT_SECRET is required.
func Load() (*Config, error) {
	cfg, err := LoadDatabaseOnly()
	if err != nil {
		return nil, err
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if err := validateJWTSecret(cfg.Auth.JWTSecret, cfg.Server.Env); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadDatabaseOnly reads configuration for tools that never issue tokens, such
// as the operator CLI.
func LoadDatabaseOnly() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "reportauth"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
			MigrateOnStart:    getEnvAsBool("DB_MIGRATE_ON_START", false),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			TrustedProxies: getEnvAsList("TRUSTED_PROXIES"),
		},
		Auth: AuthConfig{
			JWTSecret:         getEnv("JWT_SECRET", ""),
			AccessTokenExpiry: getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute),
			LockoutThreshold:  getEnvAsInt("LOCKOUT_THRESHOLD", 5),
			BcryptCost:        getEnvAsInt("BCRYPT_COST", 12),
			LoginRateLimit:    getEnvAsInt("LOGIN_RATE_LIMIT", 10),
			LoginRateWindow:   getEnvAsDuration("LOGIN_RATE_WINDOW", 1*time.Minute),
			FailureDelay:      getEnvAsDuration("LOGIN_FAILURE_DELAY", 250*time.Millisecond),
			FailureJitter:     getEnvAsDuration("LOGIN_FAILURE_JITTER", 100*time.Millisecond),
		},
		Policy: PasswordPolicyConfig{
			MinLength: getEnvAsInt("PASSWORD_MIN_LENGTH", 8),
			MaxLength: getEnvAsInt("PASSWORD_MAX_LENGTH", 72),
			Symbols:   getEnv("PASSWORD_SYMBOLS", "!@#$%^&*()_+-=[]{};:'\",.<>?/\\|`~"),
		},
		Bootstrap: BootstrapConfig{
			AdminUsername: getEnv("ADMIN_USERNAME", ""),
			AdminEmail:    getEnv("ADMIN_EMAIL", ""),
			AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}
	if err := cfg.validateAuth(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validateAuth() error {
	if c.Auth.LockoutThreshold < 1 {
		return fmt.Errorf("LOCKOUT_THRESHOLD must be at least 1 (got %d)", c.Auth.LockoutThreshold)
	}
	if c.Auth.BcryptCost < 10 || c.Auth.BcryptCost > 15 {
		return fmt.Errorf("BCRYPT_COST must be between 10 and 15 (got %d)", c.Auth.BcryptCost)
	}
	if c.Auth.LoginRateLimit < 1 || c.Auth.LoginRateWindow <= 0 {
		return fmt.Errorf("LOGIN_RATE_LIMIT and LOGIN_RATE_WINDOW must be positive")
	}
	if c.Auth.FailureDelay < 0 || c.Auth.FailureJitter < 0 {
		return fmt.Errorf("LOGIN_FAILURE_DELAY and LOGIN_FAILURE_JITTER cannot be negative")
	}
	if c.Policy.MinLength < 1 {
		return fmt.Errorf("PASSWORD_MIN_LENGTH must be positive (got %d)", c.Policy.MinLength)
	}
	// bcrypt rejects inputs over 72 bytes
	if c.Policy.MaxLength < c.Policy.MinLength || c.Policy.MaxLength > 72 {
		return fmt.Errorf("PASSWORD_MAX_LENGTH must be between PASSWORD_MIN_LENGTH and 72 (got %d)", c.Policy.MaxLength)
	}
	if c.Policy.Symbols == "" {
		return fmt.Errorf("PASSWORD_SYMBOLS cannot be empty")
	}
	return nil
}

// validateJWTSecret enforces minimum security standards for JWT secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
