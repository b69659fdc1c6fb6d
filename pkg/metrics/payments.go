package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics counts payment activity by provider so dashboards can split
// traffic when the active provider changes.
type PaymentMetrics struct {
	checkouts *prometheus.CounterVec
	payouts   *prometheus.CounterVec
	webhooks  *prometheus.CounterVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_checkouts_total",
		Help: "Checkout sessions created by provider and outcome.",
	}, []string{"provider", "outcome"})
	payouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_payouts_total",
		Help: "Payouts initiated by provider and outcome.",
	}, []string{"provider", "outcome"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhook_events_total",
		Help: "Webhook events received by provider and result.",
	}, []string{"provider", "result"})
	reg.MustRegister(checkouts, payouts, webhooks)
	return &PaymentMetrics{
		checkouts: checkouts,
		payouts:   payouts,
		webhooks:  webhooks,
	}
}

func (p *PaymentMetrics) IncCheckout(provider, outcome string) {
	if p == nil || p.checkouts == nil {
		return
	}
	p.checkouts.WithLabelValues(normalizeLabel(provider), normalizeLabel(outcome)).Inc()
}

func (p *PaymentMetrics) IncPayout(provider, outcome string) {
	if p == nil || p.payouts == nil {
		return
	}
	p.payouts.WithLabelValues(normalizeLabel(provider), normalizeLabel(outcome)).Inc()
}

func (p *PaymentMetrics) IncWebhookEvent(provider, result string) {
	if p == nil || p.webhooks == nil {
		return
	}
	p.webhooks.WithLabelValues(normalizeLabel(provider), normalizeLabel(result)).Inc()
}
