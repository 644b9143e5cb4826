package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebhookMetrics counts payment webhook deliveries by event type and outcome.
type WebhookMetrics struct {
	outcomes *prometheus.CounterVec
	rejected prometheus.Counter
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stripe_webhook_events_total",
		Help:      "Stripe webhook events handled, by event type and outcome.",
	}, []string{"event_type", "outcome"})
	rejected := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stripe_webhook_signature_rejected_total",
		Help:      "Stripe webhook deliveries rejected for an invalid signature.",
	})
	reg.MustRegister(outcomes, rejected)
	return &WebhookMetrics{outcomes: outcomes, rejected: rejected}
}

// IncOutcome records one handled event.
func (w *WebhookMetrics) IncOutcome(eventType, outcome string) {
	if w == nil || w.outcomes == nil {
		return
	}
	w.outcomes.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// IncSignatureRejected records a delivery that failed verification.
func (w *WebhookMetrics) IncSignatureRejected() {
	if w == nil || w.rejected == nil {
		return
	}
	w.rejected.Inc()
}
