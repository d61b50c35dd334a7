// Package processor consumes ingested events from the message queue and
// applies them to the alerting engine.
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"vigil/internal/domain"
	"vigil/internal/engine"
	"vigil/internal/metrics"
	"vigil/internal/queue"
)

// Engine is the subset of the alerting engine the processor drives.
type Engine interface {
	ProcessMetric(ctx context.Context, name string, value float64, ts time.Time) (*engine.Result, error)
	ProcessAlert(ctx context.Context, candidate *domain.Alert) (*engine.Result, error)
}

// Service routes queued metric samples to anomaly detection and queued
// alerts straight to correlation.
type Service struct {
	consumer queue.Consumer
	engine   Engine
	logger   *slog.Logger
}

// NewService creates a new processor service.
func NewService(consumer queue.Consumer, eng Engine, logger *slog.Logger) *Service {
	return &Service{
		consumer: consumer,
		engine:   eng,
		logger:   logger.With("component", "processor"),
	}
}

// Start begins consuming events from the queue and processing them.
// This is a blocking call that runs until the context is canceled.
func (s *Service) Start(ctx context.Context) error {
	s.logger.Info("starting processor service")
	return s.consumer.Start(ctx, s.handleMessage)
}

// handleMessage is the callback for processing each message from the queue.
// Malformed and invalid events are logged and dropped. Only a stopped
// engine is reported back to the consumer.
func (s *Service) handleMessage(ctx context.Context, msg *queue.Message) error {
	start := time.Now()

	var event domain.InternalEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		s.logger.Error("failed to deserialize event", "error", err, "key", string(msg.Key))
		metrics.EventsProcessedTotal.WithLabelValues("unknown", "malformed").Inc()
		return nil
	}
	if err := event.Validate(); err != nil {
		s.logger.Warn("dropping invalid event", "error", err, "kind", event.Kind, "key", string(msg.Key))
		metrics.EventsProcessedTotal.WithLabelValues(string(event.Kind), "invalid").Inc()
		return nil
	}
	if !event.ReceivedAt.IsZero() {
		metrics.EventQueueLatency.Observe(time.Since(event.ReceivedAt).Seconds())
	}

	var (
		res *engine.Result
		err error
	)
	switch event.Kind {
	case domain.EventKindMetric:
		m := event.Metric
		res, err = s.engine.ProcessMetric(ctx, m.MetricName, m.Value, m.Timestamp)
	case domain.EventKindAlert:
		res, err = s.engine.ProcessAlert(ctx, event.Alert.ToAlert())
	}
	metrics.EventProcessingLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.EventsProcessedTotal.WithLabelValues(string(event.Kind), "error").Inc()
		if errors.Is(err, engine.ErrEngineStopped) {
			return err
		}
		s.logger.Warn("engine rejected event", "error", err, "kind", event.Kind, "key", string(msg.Key))
		return nil
	}

	if res == nil {
		metrics.EventsProcessedTotal.WithLabelValues(string(event.Kind), "normal").Inc()
		return nil
	}
	metrics.EventsProcessedTotal.WithLabelValues(string(event.Kind), string(res.Outcome)).Inc()

	s.logger.Debug("event processed",
		"kind", event.Kind,
		"alertID", res.Alert.ID,
		"outcome", res.Outcome,
		"fireCount", res.Alert.FireCount,
	)
	return nil
}

// Stop gracefully stops the processor service.
func (s *Service) Stop() error {
	s.logger.Info("stopping processor service")
	return s.consumer.Close()
}
