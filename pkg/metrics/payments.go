package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics records counters for the payment and webhook surfaces.
// Webhook handler failures are acknowledged with 200, so the failure counter
// is the only signal that events are being dropped.
type PaymentMetrics struct {
	webhookEvents       *prometheus.CounterVec
	webhookFailures     *prometheus.CounterVec
	paymentsVerified    *prometheus.CounterVec
	signatureRejections *prometheus.CounterVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Webhook events received after signature verification.",
	}, []string{"provider", "event"})
	webhookFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_handler_failures_total",
		Help: "Webhook events acknowledged 200 whose handler failed.",
	}, []string{"provider", "event"})
	paymentsVerified := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_verified_total",
		Help: "Client payment confirmations that passed signature verification.",
	}, []string{"provider"})
	signatureRejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "signature_rejections_total",
		Help: "Signature verification failures by surface.",
	}, []string{"provider", "surface"})
	reg.MustRegister(webhookEvents, webhookFailures, paymentsVerified, signatureRejections)
	return &PaymentMetrics{
		webhookEvents:       webhookEvents,
		webhookFailures:     webhookFailures,
		paymentsVerified:    paymentsVerified,
		signatureRejections: signatureRejections,
	}
}

// IncWebhookEvent counts a signature-verified webhook delivery.
func (m *PaymentMetrics) IncWebhookEvent(provider, event string) {
	if m == nil || m.webhookEvents == nil {
		return
	}
	m.webhookEvents.WithLabelValues(normalizeLabel(provider), normalizeLabel(event)).Inc()
}

// IncWebhookFailure counts a handler failure behind a 200 acknowledgement.
func (m *PaymentMetrics) IncWebhookFailure(provider, event string) {
	if m == nil || m.webhookFailures == nil {
		return
	}
	m.webhookFailures.WithLabelValues(normalizeLabel(provider), normalizeLabel(event)).Inc()
}

// IncPaymentVerified counts a successful synchronous verification.
func (m *PaymentMetrics) IncPaymentVerified(provider string) {
	if m == nil || m.paymentsVerified == nil {
		return
	}
	m.paymentsVerified.WithLabelValues(normalizeLabel(provider)).Inc()
}

// IncSignatureRejection counts a rejected signature on the named surface.
func (m *PaymentMetrics) IncSignatureRejection(provider, surface string) {
	if m == nil || m.signatureRejections == nil {
		return
	}
	m.signatureRejections.WithLabelValues(normalizeLabel(provider), normalizeLabel(surface)).Inc()
}

func normalizeLabel(value string) string {
	label := strings.TrimSpace(strings.ToLower(value))
	if label == "" {
		return "unknown"
	}
	return label
}
