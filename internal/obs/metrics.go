// Package obs is the process-wide observability surface: Prometheus
// collectors plus the Reporter that webhook dispatch and OAuth failures
// feed.
package obs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	webhookRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "linkbio_webhook_requests_total",
		Help: "Webhook deliveries by topic and outcome.",
	}, []string{"topic", "outcome"})

	// No shop label here: the shop header on a rejected delivery is
	// attacker-controlled, and labels must stay bounded. Shops go to logs.
	webhookSignatureFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "linkbio_webhook_signature_failures_total",
		Help: "Webhook deliveries rejected for a bad or missing HMAC.",
	})

	webhookHandlerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "linkbio_webhook_handler_duration_seconds",
		Help:    "Latency of topic handlers for accepted deliveries.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"topic"})

	rateLimitDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "linkbio_rate_limit_denials_total",
		Help: "Requests denied by a fixed-window limiter, by scope.",
	}, []string{"scope"})

	oauthExchanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "linkbio_oauth_exchanges_total",
		Help: "OAuth code exchanges by outcome.",
	}, []string{"outcome"})
)

// Webhook outcomes. Topic must come from the registry (or "unknown") so the
// label set stays bounded.
const (
	OutcomeHandled      = "handled"
	OutcomeAcknowledged = "acknowledged"
	OutcomeDuplicate    = "duplicate"
	OutcomeRejected     = "rejected"
	OutcomeFailed       = "failed"
)

func ObserveWebhook(topic, outcome string) {
	webhookRequests.WithLabelValues(topic, outcome).Inc()
}

func MarkSignatureFailure() {
	webhookSignatureFailures.Inc()
}

func ObserveHandlerDuration(topic string, d time.Duration) {
	webhookHandlerDuration.WithLabelValues(topic).Observe(d.Seconds())
}

func MarkRateLimited(scope string) {
	rateLimitDenials.WithLabelValues(scope).Inc()
}

func MarkOAuthExchange(outcome string) {
	oauthExchanges.WithLabelValues(outcome).Inc()
}
