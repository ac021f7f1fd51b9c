package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the process-local counters. They are observability only and
// never consulted for lockout decisions.
type Metrics struct {
	registry *prometheus.Registry

	loginOutcomes       *prometheus.CounterVec
	lockouts            prometheus.Counter
	auditPersistFailure prometheus.Counter
	hashDuration        prometheus.Histogram

	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		loginOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reportauth_login_attempts_total",
			Help: "Authentication attempts by outcome.",
		}, []string{"outcome"}),
		lockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reportauth_account_lockouts_total",
			Help: "Accounts locked by reaching the failed-attempt threshold.",
		}),
		auditPersistFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reportauth_audit_persist_failures_total",
			Help: "Activity log rows that could not be written.",
		}),
		hashDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reportauth_password_verify_duration_seconds",
			Help:    "Time spent in bcrypt verification.",
			Buckets: []float64{.01, .025, .05, .1, .2, .4, .8, 1.6},
		}),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	m.registry.MustRegister(
		m.loginOutcomes, m.lockouts, m.auditPersistFailure, m.hashDuration,
		m.httpInFlight, m.httpRequestsTotal, m.httpRequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// All recorders are safe on a nil *Metrics so tests can omit them.

func (m *Metrics) LoginOutcome(outcome string) {
	if m == nil {
		return
	}
	m.loginOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AccountLocked() {
	if m == nil {
		return
	}
	m.lockouts.Inc()
}

func (m *Metrics) AuditPersistFailed() {
	if m == nil {
		return
	}
	m.auditPersistFailure.Inc()
}

func (m *Metrics) ObserveVerify(d time.Duration) {
	if m == nil {
		return
	}
	m.hashDuration.Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Instrument records request counts and latency labelled by chi route pattern,
// which keeps user ids out of label values.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.httpInFlight.Inc()
		defer m.httpInFlight.Dec()

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		labels := []string{r.Method, route, strconv.Itoa(status)}

		m.httpRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
		m.httpRequestsTotal.WithLabelValues(labels...).Inc()
	})
}
