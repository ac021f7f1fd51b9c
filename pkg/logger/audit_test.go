package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCapture(env string) (*AuditLogger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return NewAuditLogger(slog.New(slog.NewJSONHandler(buf, nil)), env), buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	return line
}

func TestAuditLogger_FailureIsWarn(t *testing.T) {
	al, buf := newCapture("development")

	al.LogAuthAttempt(context.Background(), AuditEvent{
		EventType:     "LOGIN_FAILED",
		Username:      "alice",
		IPAddress:     "10.0.0.1",
		FailureReason: "BadCredential",
	})

	line := decodeLine(t, buf)
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "auth", line["audit_type"])
	assert.Equal(t, "alice", line["username"])
	assert.Equal(t, "BadCredential", line["failure_reason"])
}

func TestAuditLogger_RedactsUsernameInProduction(t *testing.T) {
	al, buf := newCapture("production")

	al.LogAccountAction(context.Background(), AuditEvent{EventType: "USER_CREATED", Username: "alice", Success: true})

	line := decodeLine(t, buf)
	assert.Equal(t, "INFO", line["level"])
	assert.Equal(t, "[REDACTED]", line["username"])
}

func TestAuditLogger_PersistFailure(t *testing.T) {
	al, buf := newCapture("development")

	al.LogPersistFailure(context.Background(), AuditEvent{EventType: "LOGIN_SUCCESS", UserID: "7"}, errors.New("db down"))

	line := decodeLine(t, buf)
	assert.Equal(t, "ERROR", line["level"])
	assert.Equal(t, "db down", line["error"])
	assert.Equal(t, "7", line["user_id"])
}
