package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	UserID        string
	Username      string
	IPAddress     string
	UserAgent     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

// AuditLogger writes audit events as structured log lines. It is the log half
// of the activity dual-write and the only record left when the database write fails.
type AuditLogger struct {
	logger *slog.Logger
	env    string
}

// NewAuditLogger creates a new audit logger. In production, usernames are redacted.
func NewAuditLogger(logger *slog.Logger, env string) *AuditLogger {
	return &AuditLogger{
		logger: logger,
		env:    env,
	}
}

// Log emits one audit line; failures are logged at warn level.
func (al *AuditLogger) Log(ctx context.Context, auditType string, event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", auditType),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.Username != "" {
		attrs = append(attrs, RedactedAttr("username", event.Username, al.env))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(ctx, level, "audit", attrs...)
}

// LogAuthAttempt logs authentication attempts
func (al *AuditLogger) LogAuthAttempt(ctx context.Context, event AuditEvent) {
	al.Log(ctx, "auth", event)
}

// LogAccountAction logs account and authorization changes
func (al *AuditLogger) LogAccountAction(ctx context.Context, event AuditEvent) {
	al.Log(ctx, "account", event)
}

// LogPersistFailure records an audit event that could not be stored.
func (al *AuditLogger) LogPersistFailure(ctx context.Context, event AuditEvent, err error) {
	attrs := []slog.Attr{
		slog.String("audit_type", "persist_failure"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.Any("error", err),
	}
	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.Username != "" {
		attrs = append(attrs, RedactedAttr("username", event.Username, al.env))
	}
	al.logger.LogAttrs(ctx, slog.LevelError, "failed to persist audit event", attrs...)
}
