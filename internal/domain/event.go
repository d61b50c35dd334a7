package domain

import (
	"math"
	"time"
)

// EventKind tells the processor how to route an ingested event.
type EventKind string

const (
	// EventKindMetric carries a raw metric sample for anomaly detection.
	EventKindMetric EventKind = "metric"
	// EventKindAlert carries a fully-formed alert raised by another system.
	EventKindAlert EventKind = "alert"
)

// IsValid returns true if the kind is a known value.
func (k EventKind) IsValid() bool {
	return k == EventKindMetric || k == EventKindAlert
}

// MetricSample is a single observation submitted for anomaly detection.
type MetricSample struct {
	// MetricName identifies the series, e.g. "api.latency_ms".
	MetricName string `json:"metric_name"`

	// Value is the observed value.
	Value float64 `json:"value"`

	// Timestamp is when the value was observed. Defaults to receipt time.
	Timestamp time.Time `json:"timestamp"`
}

// Validate checks the sample has a name and a finite value.
func (m *MetricSample) Validate() error {
	if m.MetricName == "" {
		return ErrEmptyMetricName
	}
	if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
		return ErrInvalidMetric
	}
	return nil
}

// AlertEvent is an alert raised directly by an external system such as a
// circuit breaker or health monitor. It bypasses anomaly detection.
type AlertEvent struct {
	CorrelationKey  CorrelationKey    `json:"correlation_key"`
	Severity        Severity          `json:"severity"`
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	Tags            map[string]string `json:"tags,omitempty"`
	Context         map[string]any    `json:"context,omitempty"`
	RunbookURL      string            `json:"runbook_url,omitempty"`
	DashboardURL    string            `json:"dashboard_url,omitempty"`
	MetricValue     float64           `json:"metric_value"`
	Threshold       float64           `json:"threshold"`
	SuppressedUntil *time.Time        `json:"suppressed_until,omitempty"`
	Timestamp       time.Time         `json:"timestamp"`
}

// Validate checks if the event has all required fields with valid values.
// Severity may be left unset and defaults to medium.
func (e *AlertEvent) Validate() error {
	if e.Title == "" {
		return ErrEmptyTitle
	}
	if e.CorrelationKey.Fingerprint == "" {
		return ErrEmptyFingerprint
	}
	if e.Severity != 0 && !e.Severity.IsValid() {
		return ErrInvalidSeverity
	}
	return nil
}

// ToAlert converts the event into an alert candidate.
func (e *AlertEvent) ToAlert() *Alert {
	severity := e.Severity
	if severity == 0 {
		severity = SeverityMedium
	}
	return &Alert{
		CorrelationKey:  e.CorrelationKey,
		Severity:        severity,
		State:           StateTriggered,
		Title:           e.Title,
		Description:     e.Description,
		CreatedAt:       e.Timestamp,
		UpdatedAt:       e.Timestamp,
		Tags:            e.Tags,
		Context:         e.Context,
		RunbookURL:      e.RunbookURL,
		DashboardURL:    e.DashboardURL,
		MetricValue:     e.MetricValue,
		Threshold:       e.Threshold,
		FireCount:       1,
		SuppressedUntil: e.SuppressedUntil,
	}
}

// InternalEvent is the envelope carried on the ingestion queue.
type InternalEvent struct {
	Kind   EventKind     `json:"kind"`
	Metric *MetricSample `json:"metric,omitempty"`
	Alert  *AlertEvent   `json:"alert,omitempty"`

	// ReceivedAt is the timestamp when the event was received by the ingest service.
	ReceivedAt time.Time `json:"received_at"`
}

// Validate checks the envelope carries the payload its kind names.
func (e *InternalEvent) Validate() error {
	switch e.Kind {
	case EventKindMetric:
		if e.Metric == nil {
			return ErrEmptyMetricName
		}
		return e.Metric.Validate()
	case EventKindAlert:
		if e.Alert == nil {
			return ErrEmptyTitle
		}
		return e.Alert.Validate()
	default:
		return ErrInvalidEventKind
	}
}
