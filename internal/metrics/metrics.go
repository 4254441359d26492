// Package metrics provides Prometheus instrumentation for the gatehouse
// session service. It exposes counters for session lifecycle transitions,
// a counter for failures labeled by reason, and HTTP-level collectors used
// by the request middleware.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SessionsCreatedTotal counts successful logins. The "replaced" label
	// distinguishes fresh logins from re-logins that displaced a live
	// session ("false" / "true").
	SessionsCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gatehouse_sessions_created_total",
		Help: "Total number of sessions created",
	}, []string{"replaced"})

	// SessionsRefreshedTotal counts successful refreshes.
	SessionsRefreshedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gatehouse_sessions_refreshed_total",
		Help: "Total number of session refreshes",
	})

	// SessionsDeletedTotal counts explicit logouts.
	SessionsDeletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gatehouse_sessions_deleted_total",
		Help: "Total number of sessions deleted",
	})

	// SessionsSweptTotal counts expired sessions reaped by the janitor.
	SessionsSweptTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "gatehouse_sessions_swept_total",
		Help: "Total number of expired sessions reaped",
	})

	// SessionFailuresTotal counts failed session operations, labeled by
	// operation ("create", "find", "refresh", "delete") and reason
	// ("invalid_credentials", "csrf_mismatch", "not_found", "rate_limited",
	// "error").
	SessionFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gatehouse_session_failures_total",
		Help: "Total number of failed session operations",
	}, []string{"op", "reason"})

	// HTTPRequestsInFlight tracks requests currently being served.
	HTTPRequestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gatehouse_http_requests_in_flight",
		Help: "Current number of HTTP requests being served",
	})

	// HTTPRequestDuration records request latency in seconds by route
	// pattern, method, and status code.
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gatehouse_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"method", "route", "status"})
)

func init() {
	prometheus.MustRegister(
		SessionsCreatedTotal,
		SessionsRefreshedTotal,
		SessionsDeletedTotal,
		SessionsSweptTotal,
		SessionFailuresTotal,
		HTTPRequestsInFlight,
		HTTPRequestDuration,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
