package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilReceiverIsNoop(t *testing.T) {
	var m *Metrics
	m.LoginOutcome("success")
	m.AccountLocked()
	m.AuditPersistFailed()
	m.ObserveVerify(time.Millisecond)
}

func TestMetrics_LoginOutcomes(t *testing.T) {
	m := New()
	m.LoginOutcome("success")
	m.LoginOutcome("BadCredential")
	m.LoginOutcome("BadCredential")
	m.AccountLocked()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.loginOutcomes.WithLabelValues("success")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.loginOutcomes.WithLabelValues("BadCredential")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.lockouts))
}

func TestMetrics_InstrumentUsesRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Instrument)
	r.Get("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Handle("/metrics", m.Handler())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/42", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/users/{id}", "204")))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}
