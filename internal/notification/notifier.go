// Package notification resolves escalation levels into per-target
// notification attempts and delivers them through pluggable senders with
// bounded, retried attempts.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"vigil/internal/config"
	"vigil/internal/domain"
	"vigil/internal/metrics"
	"vigil/internal/store"
)

// ErrDispatcherClosed is returned for dispatches requested after Close.
var ErrDispatcherClosed = errors.New("notification dispatcher is closed")

// Dispatcher turns an alert and an escalation level into deliveries on every
// (channel, target) pair of the level. Sends happen outside any store lock.
type Dispatcher struct {
	cfg      config.NotificationConfig
	senders  map[domain.NotificationChannel]Sender
	renderer *Renderer
	archive  store.Archive
	logger   *slog.Logger

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// NewDispatcher creates a dispatcher. Channels missing from senders fail
// every attempt.
func NewDispatcher(cfg config.NotificationConfig, senders map[domain.NotificationChannel]Sender, archive store.Archive, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		cfg:      cfg,
		senders:  senders,
		renderer: NewRenderer(cfg.Templates),
		archive:  archive,
		logger:   logger.With("component", "notification-dispatcher"),
	}
}

// begin registers an in-flight dispatch unless the dispatcher is closed.
func (d *Dispatcher) begin() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	d.inflight.Add(1)
	metrics.NotificationsInFlight.Inc()
	return nil
}

func (d *Dispatcher) done() {
	metrics.NotificationsInFlight.Dec()
	d.inflight.Done()
}

// Notify delivers the level to every (channel, target) pair and returns the
// final status of each pair. It blocks until every pair has been sent or
// has exhausted its retries.
func (d *Dispatcher) Notify(ctx context.Context, alert *domain.Alert, level domain.EscalationLevel) ([]domain.NotificationStatus, error) {
	if err := d.begin(); err != nil {
		return nil, err
	}
	defer d.done()

	return d.deliverLevel(ctx, alert, level), nil
}

// Dispatch runs Notify in the background so the caller never waits on a
// sender. The alert is copied before the call returns.
func (d *Dispatcher) Dispatch(alert *domain.Alert, level domain.EscalationLevel) error {
	if err := d.begin(); err != nil {
		return err
	}

	snapshot := alert.Clone()
	go func() {
		defer d.done()
		d.deliverLevel(context.Background(), snapshot, level)
	}()
	return nil
}

// Drain waits for every in-flight dispatch to finish.
func (d *Dispatcher) Drain() {
	d.inflight.Wait()
}

// Close refuses new dispatches and waits for in-flight ones, or until ctx
// is done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for in-flight notifications: %w", ctx.Err())
	}
}

func (d *Dispatcher) deliverLevel(ctx context.Context, alert *domain.Alert, level domain.EscalationLevel) []domain.NotificationStatus {
	results := make([]domain.NotificationStatus, 0, len(level.Channels)*len(level.Targets))
	for _, channel := range level.Channels {
		for _, target := range level.Targets {
			results = append(results, d.deliver(ctx, alert, level.Level, channel, target))
		}
	}
	return results
}

// deliver makes up to MaxRetries+1 attempts for one (channel, target) pair.
// Every attempt is recorded; the last one is returned.
func (d *Dispatcher) deliver(ctx context.Context, alert *domain.Alert, levelIdx int, channel domain.NotificationChannel, target string) domain.NotificationStatus {
	subject, body, format := d.renderer.Render(channel, alert)
	msg := &Message{
		NotificationID:  uuid.New().String(),
		AlertID:         alert.ID,
		Channel:         channel,
		Target:          target,
		Subject:         subject,
		Body:            body,
		Format:          format,
		Severity:        alert.Severity,
		State:           alert.State,
		EscalationLevel: levelIdx,
		CorrelationKey:  alert.CorrelationKey,
		RunbookURL:      alert.RunbookURL,
		DashboardURL:    alert.DashboardURL,
		CreatedAt:       time.Now().UTC(),
	}

	sender, ok := d.senders[channel]
	if !ok {
		status := d.status(msg, 1, domain.DeliveryFailed, fmt.Errorf("no sender registered for channel %s", channel))
		d.record(ctx, status)
		return status
	}

	maxAttempts := d.cfg.MaxRetries + 1
	var status domain.NotificationStatus
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		msg.Attempt = attempt
		err := d.attempt(ctx, sender, msg)
		if err == nil {
			status = d.status(msg, attempt, domain.DeliverySent, nil)
			d.record(ctx, status)
			if !alert.CreatedAt.IsZero() {
				metrics.NotificationLatency.Observe(time.Since(alert.CreatedAt).Seconds())
			}
			return status
		}

		if attempt == maxAttempts || ctx.Err() != nil {
			status = d.status(msg, attempt, domain.DeliveryFailed, err)
			d.record(ctx, status)
			break
		}

		status = d.status(msg, attempt, domain.DeliveryRetrying, err)
		d.record(ctx, status)
		if !d.backoff(ctx) {
			status = d.status(msg, attempt, domain.DeliveryFailed, ctx.Err())
			d.record(ctx, status)
			break
		}
	}

	d.logger.Error("notification delivery failed",
		"alertID", alert.ID,
		"channel", channel,
		"target", target,
		"attempts", status.Attempt,
		"error", status.Error,
	)
	return status
}

// attempt bounds a single send by the configured timeout.
func (d *Dispatcher) attempt(ctx context.Context, sender Sender, msg *Message) error {
	if d.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()
	}
	return sender.Send(ctx, msg)
}

func (d *Dispatcher) backoff(ctx context.Context) bool {
	if d.cfg.RetryBackoff <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d.cfg.RetryBackoff)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (d *Dispatcher) status(msg *Message, attempt int, outcome domain.DeliveryStatus, err error) domain.NotificationStatus {
	now := time.Now().UTC()
	s := domain.NotificationStatus{
		NotificationID: msg.NotificationID,
		AlertID:        msg.AlertID,
		Channel:        msg.Channel,
		Target:         msg.Target,
		Status:         outcome,
		Attempt:        attempt,
		EscalationLvl:  msg.EscalationLevel,
		RecordedAt:     now,
	}
	if outcome == domain.DeliverySent {
		s.SentAt = &now
	}
	if err != nil {
		s.Error = err.Error()
	}
	return s
}

// record stores the attempt and counts it. Archive failures are logged
// and never affect delivery.
func (d *Dispatcher) record(ctx context.Context, s domain.NotificationStatus) {
	metrics.NotificationsSentTotal.WithLabelValues(string(s.Channel), string(s.Status)).Inc()

	if s.Status == domain.DeliveryRetrying {
		d.logger.Warn("notification attempt failed, retrying",
			"alertID", s.AlertID,
			"channel", s.Channel,
			"target", s.Target,
			"attempt", s.Attempt,
			"error", s.Error,
		)
	}

	if d.archive == nil {
		return
	}
	// Recording uses its own context so a canceled dispatch is still audited.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := d.archive.RecordNotification(recordCtx, &s); err != nil {
		d.logger.Error("failed to record notification attempt",
			"alertID", s.AlertID,
			"notificationID", s.NotificationID,
			"error", err,
		)
	}
}
