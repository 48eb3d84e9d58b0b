// Package metrics holds the tracker's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "email_tracker"

// Metrics holds all tracker metrics.
type Metrics struct {
	Webhooks        *prometheus.CounterVec
	WebhookDuration *prometheus.HistogramVec
	TrackingHits    *prometheus.CounterVec
	Sends           *prometheus.CounterVec
	Notifications   *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New creates and registers all metrics on reg. A nil reg uses a fresh
// registry, which keeps tests independent of the global one.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		Webhooks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_total",
			Help:      "Webhook requests by provider and outcome",
		}, []string{"provider", "outcome"}),
		WebhookDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "webhook_duration_seconds",
			Help:      "Time spent handling a webhook request",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"provider"}),
		TrackingHits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracking_hits_total",
			Help:      "Beacon, link and unsubscribe requests by result",
		}, []string{"kind", "result"}),
		Sends: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sends_total",
			Help:      "Tracked sends by provider and status",
		}, []string{"provider", "status"}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_published_total",
			Help:      "Notifications published by sink and type",
		}, []string{"sink", "type"}),
		gatherer: reg,
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveWebhook records one webhook outcome.
func (m *Metrics) ObserveWebhook(provider, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.Webhooks.WithLabelValues(provider, outcome).Inc()
	m.WebhookDuration.WithLabelValues(provider).Observe(seconds)
}

// TrackingHit records a beacon, link or unsubscribe request.
func (m *Metrics) TrackingHit(kind, result string) {
	if m == nil {
		return
	}
	m.TrackingHits.WithLabelValues(kind, result).Inc()
}

// Send records a tracked send attempt.
func (m *Metrics) Send(provider, status string) {
	if m == nil {
		return
	}
	m.Sends.WithLabelValues(provider, status).Inc()
}

// Notification records a published notification.
func (m *Metrics) Notification(sink, typ string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(sink, typ).Inc()
}
