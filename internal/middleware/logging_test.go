package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLog(t *testing.T, handler http.Handler, req *http.Request) map[string]interface{} {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	SecureLogger(logger, nil)(handler).ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestSecureLogger_RedactsSensitiveQuery(t *testing.T) {
	req := httptest.NewRequest("GET", "/users?token=abc123", nil)
	entry := captureLog(t, okHandler(), req)

	assert.Equal(t, "http_request", entry["msg"])
	assert.Equal(t, "/users?[REDACTED]", entry["path"])
	assert.NotContains(t, entry["path"], "abc123")
}

func TestSecureLogger_KeepsPlainQuery(t *testing.T) {
	req := httptest.NewRequest("GET", "/users?limit=10", nil)
	entry := captureLog(t, okHandler(), req)

	assert.Equal(t, "/users?limit=10", entry["path"])
	assert.Equal(t, float64(http.StatusOK), entry["status"])
	assert.Equal(t, "192.0.2.1", entry["client_ip"])
	assert.Equal(t, "INFO", entry["level"])
}

func TestSecureLogger_ServerErrorsLogAtError(t *testing.T) {
	failing := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	entry := captureLog(t, failing, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, "ERROR", entry["level"])
}
