// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_created_total",
			Help: "Total number of notifications accepted by the ingestion API",
		},
		[]string{"type"},
	)

	DeliveriesCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_deliveries_completed_total",
			Help: "Total number of deliveries that ended SENT",
		},
		[]string{"type"},
	)

	DeliveriesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_deliveries_failed_total",
			Help: "Total number of delivery attempts that failed",
		},
		[]string{"type", "error_code"},
	)

	DeliveryRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_delivery_retries_total",
			Help: "Total number of failed attempts requeued for redelivery",
		},
		[]string{"type"},
	)

	DeliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "notification_delivery_duration_seconds",
			Help: "Duration of a single delivery attempt in seconds",
		},
		[]string{"type"},
	)

	QueueDepthConsumers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_queue_consumers",
			Help: "Number of running consumer workers",
		},
	)
)
