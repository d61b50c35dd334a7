// Package ingest provides the event ingestion service.
// It validates metric samples and raised alerts, computes routing keys,
// and publishes them to the message queue for asynchronous processing.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"vigil/internal/domain"
	"vigil/internal/metrics"
	"vigil/internal/queue"
)

// ErrPublishFailed is returned when the queue rejects an event.
var ErrPublishFailed = errors.New("failed to publish event to queue")

// Service handles event ingestion. It never touches alert state; the
// processor applies queued events to the engine.
type Service struct {
	producer queue.Producer
	clock    func() time.Time
	logger   *slog.Logger
}

// NewService creates a new ingest service.
func NewService(producer queue.Producer, logger *slog.Logger) *Service {
	return &Service{
		producer: producer,
		clock:    time.Now,
		logger:   logger.With("component", "ingest"),
	}
}

// IngestMetric validates a sample and publishes it keyed by metric name.
// A missing timestamp is set to the receipt time.
func (s *Service) IngestMetric(ctx context.Context, sample *domain.MetricSample) error {
	metrics.EventsReceivedTotal.WithLabelValues(string(domain.EventKindMetric)).Inc()

	if err := sample.Validate(); err != nil {
		return err
	}

	now := s.clock().UTC()
	if sample.Timestamp.IsZero() {
		sample.Timestamp = now
	}

	return s.publish(ctx, sample.MetricName, &domain.InternalEvent{
		Kind:       domain.EventKindMetric,
		Metric:     sample,
		ReceivedAt: now,
	})
}

// IngestAlert validates a raised alert and publishes it keyed by its
// correlation fingerprint.
func (s *Service) IngestAlert(ctx context.Context, event *domain.AlertEvent) error {
	metrics.EventsReceivedTotal.WithLabelValues(string(domain.EventKindAlert)).Inc()

	if err := event.Validate(); err != nil {
		return err
	}

	now := s.clock().UTC()
	if event.Timestamp.IsZero() {
		event.Timestamp = now
	}

	return s.publish(ctx, event.CorrelationKey.Fingerprint, &domain.InternalEvent{
		Kind:       domain.EventKindAlert,
		Alert:      event,
		ReceivedAt: now,
	})
}

// publish serializes the envelope and sends it to the queue. Events with
// the same key go to the same partition and are processed in order.
func (s *Service) publish(ctx context.Context, key string, event *domain.InternalEvent) error {
	ingestStart := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("failed to serialize event", "error", err, "kind", event.Kind)
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	msg := &queue.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: map[string]string{
			queue.HeaderKind: string(event.Kind),
		},
	}

	if err := s.producer.Publish(ctx, msg); err != nil {
		s.logger.Error("failed to publish event", "error", err, "kind", event.Kind, "key", key)
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	metrics.EventsPublishedTotal.WithLabelValues(string(event.Kind)).Inc()
	metrics.EventIngestLatency.Observe(time.Since(ingestStart).Seconds())

	s.logger.Debug("event published to queue", "kind", event.Kind, "key", key)
	return nil
}
