// Package metrics declares the Prometheus collectors shared by the three binaries.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	creationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventos_creations_total",
		Help: "Creation requests by entity and outcome",
	}, []string{"entity", "outcome"})

	busPublishTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventos_bus_publish_total",
		Help: "Internal events published on the bus",
	}, []string{"event", "outcome"})

	webhookDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventos_webhook_deliveries_total",
		Help: "Outbound webhook attempts by event and outcome",
	}, []string{"event", "outcome"})

	webhookLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "eventos_webhook_delivery_duration_seconds",
		Help:    "Outbound webhook latency",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"event"})

	validationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "eventos_reference_validation_duration_seconds",
		Help:    "Reference validation round trip over the bus",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"outcome"})

	receivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventos_webhooks_received_total",
		Help: "Inbound webhooks by outcome",
	}, []string{"outcome"})

	notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventos_notifications_total",
		Help: "Forwarded notifications by event and outcome",
	}, []string{"event", "outcome"})
)

func Creation(entity, outcome string) {
	creationsTotal.WithLabelValues(entity, outcome).Inc()
}

func BusPublish(event, outcome string) {
	busPublishTotal.WithLabelValues(event, outcome).Inc()
}

func WebhookDelivery(event, outcome string, elapsed time.Duration) {
	webhookDeliveriesTotal.WithLabelValues(event, outcome).Inc()
	webhookLatency.WithLabelValues(event).Observe(elapsed.Seconds())
}

// ReferenceValidation matches the refvalidator observer signature.
func ReferenceValidation(outcome string, elapsed time.Duration) {
	validationLatency.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

func WebhookReceived(outcome string) {
	receivedTotal.WithLabelValues(outcome).Inc()
}

func Notification(event, outcome string) {
	notificationsTotal.WithLabelValues(event, outcome).Inc()
}
