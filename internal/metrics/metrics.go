// Package metrics provides Prometheus metrics for Vigil.
// It tracks ingestion, alert outcomes, escalation and notification delivery
// to help identify performance bottlenecks and measure SLOs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "vigil"
)

// Event metrics track the ingestion pipeline.
var (
	// EventsReceivedTotal counts events received by the API.
	EventsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_received_total",
			Help:      "Total number of events received by the ingest API",
		},
		[]string{"kind"}, // kind: metric, alert
	)

	// EventsPublishedTotal counts events successfully published to the queue.
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of events published to the message queue",
		},
		[]string{"kind"},
	)

	// EventsProcessedTotal counts events processed by the processor.
	EventsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_processed_total",
			Help:      "Total number of events processed",
		},
		[]string{"kind", "result"},
	)

	// EventIngestLatency measures time from API receipt to queue publish.
	EventIngestLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_ingest_latency_seconds",
			Help:      "Time from event receipt to queue publish in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// EventQueueLatency measures time spent in the queue.
	EventQueueLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_queue_latency_seconds",
			Help:      "Time event spent in the message queue in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	// EventProcessingLatency measures time to process a single event.
	EventProcessingLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_processing_latency_seconds",
			Help:      "Time to process a single event in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)
)

// Alert metrics track alert lifecycle.
var (
	// AlertsProcessedTotal counts alert candidates by correlation outcome.
	AlertsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_processed_total",
			Help:      "Total number of alert candidates processed",
		},
		[]string{"outcome", "severity"}, // outcome: new, deduplicated, correlated, suppressed
	)

	// AlertsResolvedTotal counts alerts resolved.
	AlertsResolvedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_resolved_total",
			Help:      "Total number of alerts resolved",
		},
		[]string{"severity"},
	)

	// AlertsExpiredTotal counts alerts retired by the expiry policy.
	AlertsExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_expired_total",
			Help:      "Total number of unresolved alerts expired by age",
		},
	)

	// AnomaliesDetectedTotal counts samples the detector flagged.
	AnomaliesDetectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anomalies_detected_total",
			Help:      "Total number of anomalous metric samples",
		},
		[]string{"algorithm"},
	)

	// EscalationsTotal counts escalation level advances.
	EscalationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalations_total",
			Help:      "Total number of escalation level advances",
		},
		[]string{"policy"},
	)

	// ActiveAlerts tracks the current number of alerts held in memory.
	ActiveAlerts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alerts_in_memory",
			Help:      "Current number of alerts held by the engine",
		},
	)

	// CorrelationGroups tracks the current number of correlation groups.
	CorrelationGroups = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "correlation_groups",
			Help:      "Current number of correlation groups",
		},
	)

	// MetricsTracked tracks the number of metric series with samples.
	MetricsTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "metrics_tracked",
			Help:      "Current number of metric series in the statistics tracker",
		},
	)

	// AlertGroupSize tracks the number of siblings in a correlation group.
	AlertGroupSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "alert_group_size",
			Help:      "Number of alerts per correlation group when a sibling joins",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	// CleanupRemovedTotal counts entries reclaimed by the cleanup sweeper.
	CleanupRemovedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanup_removed_total",
			Help:      "Total number of entries removed by retention cleanup",
		},
		[]string{"kind"}, // kind: alert, group, metric
	)
)

// Notification metrics track the notification pipeline.
var (
	// NotificationsSentTotal counts notification attempts by outcome.
	NotificationsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Total number of notification attempts",
		},
		[]string{"channel", "status"}, // status: sent, retrying, failed
	)

	// NotificationLatency measures time from alert creation to notification delivery.
	// This is the key SLO metric for notification time.
	NotificationLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "notification_latency_seconds",
			Help:      "Time from alert creation to successful notification in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	// NotificationsInFlight tracks dispatches that have not completed.
	NotificationsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "notifications_in_flight",
			Help:      "Current number of notification dispatches in progress",
		},
	)
)

// Queue metrics track message queue health.
var (
	// QueueDepth tracks the current number of messages in the queue.
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Current number of messages in the queue",
		},
	)

	// QueuePublishLatency measures time to publish a message to the queue.
	QueuePublishLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "queue_publish_latency_seconds",
			Help:      "Time to publish a message to the queue in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1},
		},
	)
)

// Storage metrics track rule store and archive operations.
var (
	// StorageOperationLatency measures latency of storage operations.
	StorageOperationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "storage_operation_latency_seconds",
			Help:      "Latency of storage operations in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5},
		},
		[]string{"store", "operation"}, // store: rules, archive; operation: read, write
	)

	// StorageOperationsTotal counts storage operations.
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_operations_total",
			Help:      "Total number of storage operations",
		},
		[]string{"store", "operation", "status"}, // status: success, failure
	)
)
