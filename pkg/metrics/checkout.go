package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records checkout attempts and webhook reconciliation
// outcomes.
type CheckoutMetrics struct {
	attempts      *prometheus.CounterVec
	failures      *prometheus.CounterVec
	webhookEvents *prometheus.CounterVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_attempts_total",
		Help: "Checkout attempts by order source.",
	}, []string{"source"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_failures_total",
		Help: "Failed checkout attempts by order source and step.",
	}, []string{"source", "step"})
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Gateway webhook events by type and outcome.",
	}, []string{"type", "outcome"})
	reg.MustRegister(attempts, failures, webhookEvents)
	return &CheckoutMetrics{
		attempts:      attempts,
		failures:      failures,
		webhookEvents: webhookEvents,
	}
}

// IncAttempt increments the attempt counter for the given order source.
func (c *CheckoutMetrics) IncAttempt(source string) {
	if c == nil || c.attempts == nil {
		return
	}
	c.attempts.WithLabelValues(normalizeLabel(source)).Inc()
}

// IncFailure increments the failure counter for the given source and step.
func (c *CheckoutMetrics) IncFailure(source, step string) {
	if c == nil || c.failures == nil {
		return
	}
	c.failures.WithLabelValues(normalizeLabel(source), normalizeLabel(step)).Inc()
}

// IncWebhookEvent increments the webhook counter for the event type/outcome.
func (c *CheckoutMetrics) IncWebhookEvent(eventType, outcome string) {
	if c == nil || c.webhookEvents == nil {
		return
	}
	c.webhookEvents.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return strings.ReplaceAll(value, ".", "_")
}
