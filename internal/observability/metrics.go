package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the application. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	loginsTotal     *prometheus.CounterVec
	authnRejected   prometheus.Counter
	authzDenied     prometheus.Counter
	auditFailures   prometheus.Counter
	sessionsSwept   prometheus.Counter
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "staffdir_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "staffdir_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	logins := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "staffdir_logins_total",
		Help: "Login attempts by outcome.",
	}, []string{"outcome"})
	authn := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "staffdir_authn_rejected_total",
		Help: "Requests rejected as unauthenticated.",
	})
	authz := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "staffdir_authz_denied_total",
		Help: "Requests rejected for missing capabilities.",
	})
	audit := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "staffdir_audit_write_failures_total",
		Help: "Access log writes that failed and were dropped.",
	})
	swept := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "staffdir_sessions_swept_total",
		Help: "Expired sessions removed by the sweeper.",
	})
	registry.MustRegister(requests, duration, logins, authn, authz, audit, swept)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		loginsTotal:     logins,
		authnRejected:   authn,
		authzDenied:     authz,
		auditFailures:   audit,
		sessionsSwept:   swept,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// LoginAttempt counts a login by outcome ("success" or "failure").
func (m *Metrics) LoginAttempt(outcome string) {
	if m == nil {
		return
	}
	m.loginsTotal.WithLabelValues(outcome).Inc()
}

// AuthnRejected counts a request rejected by the authenticator.
func (m *Metrics) AuthnRejected() {
	if m == nil {
		return
	}
	m.authnRejected.Inc()
}

// AuthzDenied counts a request rejected by the enforcer.
func (m *Metrics) AuthzDenied() {
	if m == nil {
		return
	}
	m.authzDenied.Inc()
}

// AuditWriteFailed counts a dropped access log write.
func (m *Metrics) AuditWriteFailed() {
	if m == nil {
		return
	}
	m.auditFailures.Inc()
}

// SessionsSwept adds n removed sessions.
func (m *Metrics) SessionsSwept(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.sessionsSwept.Add(float64(n))
}

// Registerer exposes the registry for custom metrics.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
