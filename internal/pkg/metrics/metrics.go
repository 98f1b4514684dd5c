package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	RLRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limiter_requests_total",
			Help: "Total requests seen by the rate limiter",
		},
		[]string{"endpoint"},
	)
	RLBlocked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limiter_blocked_total",
			Help: "Total requests blocked by the rate limiter",
		},
		[]string{"endpoint"},
	)

	// CreditsMoved counts credits by direction (credit|debit) and ledger reason.
	CreditsMoved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credits_moved_total",
			Help: "Credits added or deducted, by reason",
		},
		[]string{"direction", "reason"},
	)
	InsufficientCredits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "credits_insufficient_total",
			Help: "Deductions rejected for insufficient balance",
		},
	)

	PurchasesCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchases_completed_total",
			Help: "Purchases confirmed by the payment provider, by package",
		},
		[]string{"package"},
	)
	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhook_events_total",
			Help: "Payment webhook events by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	ReferralsAttached = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "referrals_attached_total",
			Help: "Referral attachments that granted a bonus",
		},
	)

	Generations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generations_total",
			Help: "Generation jobs by feature, provider and final status",
		},
		[]string{"feature", "provider", "status"},
	)

	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Open notification websocket connections on this instance",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequests,
		HTTPDuration,
		RLRequests,
		RLBlocked,
		CreditsMoved,
		InsufficientCredits,
		PurchasesCompleted,
		WebhookEvents,
		ReferralsAttached,
		Generations,
		WSConnections,
	)
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
