// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests handled",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "Duration of HTTP request handling in seconds",
		},
		[]string{"method", "path"},
	)

	RateLimitDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_decisions_total",
			Help: "Rate limiter decisions by identifier and outcome",
		},
		[]string{"identifier", "outcome"},
	)

	RateLimitFailOpen = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_fail_open_total",
			Help: "Rate limiter checks that failed open due to store errors",
		},
		[]string{"identifier"},
	)

	ConfirmationEmailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confirmation_emails_sent_total",
			Help: "Confirmation emails sent by outcome",
		},
		[]string{"outcome"},
	)
)
