// Package escalation advances unacknowledged alerts through the levels of
// their escalation policy as level timeouts elapse.
package escalation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"vigil/internal/domain"
	"vigil/internal/metrics"
	"vigil/internal/store"
)

// Dispatcher hands a level's notifications off for delivery.
type Dispatcher interface {
	Dispatch(alert *domain.Alert, level domain.EscalationLevel) error
}

// TickResult summarizes one escalation scan.
type TickResult struct {
	Scanned   int
	Escalated int
	Repeated  int
}

// Escalator scans escalatable alerts on every tick.
type Escalator struct {
	alerts     store.AlertStore
	policies   *Policies
	dispatcher Dispatcher
	logger     *slog.Logger
}

// NewEscalator creates an escalator.
func NewEscalator(alerts store.AlertStore, policies *Policies, dispatcher Dispatcher, logger *slog.Logger) *Escalator {
	return &Escalator{
		alerts:     alerts,
		policies:   policies,
		dispatcher: dispatcher,
		logger:     logger.With("component", "escalation"),
	}
}

// Tick evaluates every Triggered or Escalated alert at now. An alert
// advances one level per tick at most. A failed dispatch does not undo the
// advance, and the next tick evaluates the new level.
func (e *Escalator) Tick(ctx context.Context, now time.Time) TickResult {
	var result TickResult

	candidates := e.alerts.List(domain.AlertFilter{
		States: []domain.State{domain.StateTriggered, domain.StateEscalated},
	})

	for _, alert := range candidates {
		if ctx.Err() != nil {
			break
		}
		result.Scanned++

		if alert.IsSuppressedAt(now) {
			continue
		}

		policy, err := e.policies.For(alert)
		if err != nil {
			e.logger.Warn("skipping alert with unknown escalation policy",
				"alertID", alert.ID,
				"policy", alert.PolicyName(e.policies.defaultID),
			)
			continue
		}

		level, ok := policy.Level(alert.EscalationLevel)
		if !ok {
			continue
		}

		switch {
		case policy.CanAdvance(alert.EscalationLevel):
			if now.Sub(referenceTime(alert)) >= level.Timeout && e.advance(alert, policy, now) {
				result.Escalated++
			}
		case policy.RepeatFinalLevel && policy.RepeatInterval > 0:
			if now.Sub(lastNotified(alert)) >= policy.RepeatInterval && e.repeat(alert, level, now) {
				result.Repeated++
			}
		}
	}

	if result.Escalated > 0 || result.Repeated > 0 {
		e.logger.Info("escalation tick",
			"scanned", result.Scanned,
			"escalated", result.Escalated,
			"repeated", result.Repeated,
		)
	}
	return result
}

// advance moves the alert to the next level if it is still at the level
// that was read, so a concurrent acknowledge or escalation wins.
func (e *Escalator) advance(alert *domain.Alert, policy *domain.EscalationPolicy, now time.Time) bool {
	from := alert.EscalationLevel
	next := from + 1

	updated, err := e.alerts.Update(alert.ID, func(cur *domain.Alert) error {
		if !cur.State.IsEscalatable() || cur.EscalationLevel != from {
			return store.ErrConflict
		}
		if err := cur.Escalate(next, now); err != nil {
			return err
		}
		cur.MarkNotified(now)
		return nil
	})
	if err != nil {
		e.logSkipped(alert.ID, "escalate", err)
		return false
	}

	e.logger.Info("escalated alert",
		"alertID", updated.ID,
		"policy", policy.ID,
		"fromLevel", from,
		"toLevel", next,
	)
	metrics.EscalationsTotal.WithLabelValues(policy.ID).Inc()

	level, _ := policy.Level(next)
	e.dispatch(updated, level)
	return true
}

// repeat re-notifies the final reachable level.
func (e *Escalator) repeat(alert *domain.Alert, level domain.EscalationLevel, now time.Time) bool {
	updated, err := e.alerts.Update(alert.ID, func(cur *domain.Alert) error {
		if !cur.State.IsEscalatable() || cur.EscalationLevel != alert.EscalationLevel {
			return store.ErrConflict
		}
		cur.MarkNotified(now)
		return nil
	})
	if err != nil {
		e.logSkipped(alert.ID, "repeat", err)
		return false
	}

	e.logger.Info("repeating final escalation level",
		"alertID", updated.ID,
		"level", level.Level,
	)
	e.dispatch(updated, level)
	return true
}

func (e *Escalator) dispatch(alert *domain.Alert, level domain.EscalationLevel) {
	if err := e.dispatcher.Dispatch(alert, level); err != nil {
		e.logger.Warn("escalation notification not dispatched",
			"alertID", alert.ID,
			"level", level.Level,
			"error", err,
		)
	}
}

func (e *Escalator) logSkipped(alertID, action string, err error) {
	switch {
	case errors.Is(err, store.ErrConflict), errors.Is(err, domain.ErrAlertNotFound):
		e.logger.Debug("alert changed during escalation", "alertID", alertID, "action", action)
	default:
		e.logger.Error("failed to update alert during escalation",
			"alertID", alertID,
			"action", action,
			"error", err,
		)
	}
}

// referenceTime is when the current level started.
func referenceTime(a *domain.Alert) time.Time {
	if a.EscalatedAt != nil {
		return *a.EscalatedAt
	}
	return a.CreatedAt
}

func lastNotified(a *domain.Alert) time.Time {
	if a.LastNotifiedAt != nil {
		return *a.LastNotifiedAt
	}
	return referenceTime(a)
}
