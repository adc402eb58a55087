// Package obs registers the Prometheus metrics exposed on /metrics.
package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	LoginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Login attempts by result.",
		},
		[]string{"result"}, // active, pending_two_factor, invalid_credentials, error
	)

	TwoFactorTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_two_factor_attempts_total",
			Help: "Two-factor code submissions by result.",
		},
		[]string{"result"}, // success, mismatch, exhausted, expired, not_found
	)

	AccessChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_access_checks_total",
			Help: "Module access checks by outcome.",
		},
		[]string{"outcome"}, // allowed, denied
	)

	SessionsPurgedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "auth_sessions_purged_total",
			Help: "Expired sessions removed by housekeeping.",
		},
	)
)

// Init registers the metrics with the default registry.
func Init() {
	prometheus.MustRegister(LoginsTotal, TwoFactorTotal, AccessChecksTotal, SessionsPurgedTotal)
}

// Handler serves the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
