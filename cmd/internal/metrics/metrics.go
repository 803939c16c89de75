// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Hana-Open-Banking/one-car/cmd/internal/apperr"
)

const namespace = "onecar"

var (
	// AuthOperations counts authentication service calls by operation and outcome.
	AuthOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_operations_total",
		Help:      "Authentication operations by operation and outcome.",
	}, []string{"operation", "outcome"})

	// OAuthOperations counts linking service calls by operation and outcome.
	OAuthOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "oauth_operations_total",
		Help:      "OAuth linking operations by operation and outcome.",
	}, []string{"operation", "outcome"})

	// ProviderExchangeDuration observes remote code exchanges.
	ProviderExchangeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "provider_exchange_duration_seconds",
		Help:      "Latency of authorization code exchanges with the provider.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})

	// SweptCorrelationSessions counts expired correlation sessions closed by the sweeper.
	SweptCorrelationSessions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "oauth_sessions_swept_total",
		Help:      "Expired OAuth correlation sessions completed by the sweeper.",
	})

	// PurgedTokenPairs counts session token pairs deleted after expiry.
	PurgedTokenPairs = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_pairs_purged_total",
		Help:      "Expired session token pairs deleted by the sweeper.",
	})

	// HTTPRequests counts served requests by route pattern and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route pattern, method and status code.",
	}, []string{"route", "method", "status"})

	// HTTPRequestDuration observes request latency by route pattern.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route pattern.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})
)

// Outcome returns "ok" for nil and the error kind name otherwise.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return apperr.KindOf(err).Name
}

// ObserveAuth records one authentication operation.
func ObserveAuth(op string, err error) {
	AuthOperations.WithLabelValues(op, Outcome(err)).Inc()
}

// ObserveOAuth records one linking operation.
func ObserveOAuth(op string, err error) {
	OAuthOperations.WithLabelValues(op, Outcome(err)).Inc()
}
