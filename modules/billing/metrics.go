package billing

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/subsync/pkg/subscription"
)

// Webhook outcomes besides subscription.OutcomeApplied and OutcomeIgnored.
const (
	OutcomeRejected = "rejected"
	OutcomeInvalid  = "invalid"
	OutcomeFailed   = "failed"
)

const unknownKind = "unknown"

// Metrics holds the billing collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	WebhookEvents   *prometheus.CounterVec
	WebhookDuration *prometheus.HistogramVec
	SessionsCreated *prometheus.CounterVec
	Notifications   *prometheus.CounterVec
}

// NewMetrics creates the collectors under namespace (default "subsync").
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "subsync"
	}
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Webhook deliveries by event kind and outcome.",
		}, []string{"kind", "outcome"}),
		WebhookDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "duration_seconds",
			Help:      "Time spent handling a webhook delivery.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"outcome"}),
		SessionsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "sessions_total",
			Help:      "Checkout and portal session requests by result.",
		}, []string{"type", "result"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscription",
			Name:      "notifications_total",
			Help:      "Domain notifications emitted by the reconciliation engine.",
		}, []string{"name"}),
	}

	reg.MustRegister(m.WebhookEvents, m.WebhookDuration, m.SessionsCreated, m.Notifications)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Publish counts engine notifications; it satisfies subscription.Publisher.
func (m *Metrics) Publish(_ context.Context, n subscription.Notification) error {
	if m != nil {
		m.Notifications.WithLabelValues(n.Name).Inc()
	}
	return nil
}

func (m *Metrics) observeWebhook(kind, outcome string, started time.Time) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = unknownKind
	}
	m.WebhookEvents.WithLabelValues(kind, outcome).Inc()
	m.WebhookDuration.WithLabelValues(outcome).Observe(time.Since(started).Seconds())
}

func (m *Metrics) observeSession(kind string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.SessionsCreated.WithLabelValues(kind, result).Inc()
}
