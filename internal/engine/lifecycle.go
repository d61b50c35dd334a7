package engine

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"vigil/internal/domain"
	"vigil/internal/escalation"
	"vigil/internal/metrics"
)

// CleanupResult summarizes one cleanup pass.
type CleanupResult struct {
	Expired int
	// SuppressedRetired counts rule-suppressed alerts retired as Expired.
	// They are included in AlertsRemoved.
	SuppressedRetired int
	AlertsRemoved     int
	GroupsRemoved  int
	MetricsRemoved int
}

// Run drives the escalation scanner and cleanup sweeper until ctx is
// canceled or Shutdown is called.
func (e *Engine) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.mu.Lock()
	if e.stopped.Load() {
		e.mu.Unlock()
		return ErrEngineStopped
	}
	e.cancelRun = cancel
	e.loops.Add(1)
	e.mu.Unlock()
	defer e.loops.Done()

	e.logger.Info("engine started",
		"escalationCheckInterval", e.cfg.EscalationCheckInterval,
		"cleanupInterval", e.cfg.CleanupInterval,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		e.every(ctx, e.cfg.EscalationCheckInterval, func(now time.Time) {
			e.Escalate(ctx, now)
		})
		return nil
	})
	g.Go(func() error {
		e.every(ctx, e.cfg.CleanupInterval, func(now time.Time) {
			e.Cleanup(ctx, now)
		})
		return nil
	})

	err := g.Wait()
	e.logger.Info("engine loops stopped")
	return err
}

func (e *Engine) every(ctx context.Context, interval time.Duration, fn func(now time.Time)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(e.clock())
		}
	}
}

// Escalate runs one escalation scan at now.
func (e *Engine) Escalate(ctx context.Context, now time.Time) escalation.TickResult {
	return e.escalator.Tick(ctx, now)
}

// Cleanup expires ancient unresolved alerts when an expiry is configured,
// then removes terminal alerts, correlation groups and metric samples older
// than the retention window. Rule-suppressed alerts that have not fired
// within the retention window are retired as Expired in the same pass.
// Removed alerts are archived after the store lock is released. Triggered,
// acknowledged and escalated alerts are never removed.
func (e *Engine) Cleanup(ctx context.Context, now time.Time) CleanupResult {
	var result CleanupResult

	if e.cfg.AlertExpiry > 0 {
		result.Expired = e.expire(now.Add(-e.cfg.AlertExpiry), now)
	}

	cutoff := now.Add(-e.cfg.MetricsRetention)
	removed := e.alerts.RemoveWhere(func(a *domain.Alert) bool {
		switch a.State {
		case domain.StateResolved:
			return a.ResolvedAt != nil && a.ResolvedAt.Before(cutoff)
		case domain.StateExpired, domain.StateSuppressed:
			return a.UpdatedAt.Before(cutoff)
		default:
			return false
		}
	})
	for _, a := range removed {
		if a.State != domain.StateSuppressed {
			continue
		}
		if err := a.Expire(now); err == nil {
			result.SuppressedRetired++
			metrics.AlertsExpiredTotal.Inc()
		}
	}
	result.AlertsRemoved = len(removed)
	result.GroupsRemoved = e.groups.RemoveStale(cutoff)
	result.MetricsRemoved = e.tracker.Prune(cutoff)

	if len(removed) > 0 {
		if err := e.archive.ArchiveAlerts(ctx, removed); err != nil {
			e.logger.Error("failed to archive removed alerts", "count", len(removed), "error", err)
		}
	}

	metrics.CleanupRemovedTotal.WithLabelValues("alert").Add(float64(result.AlertsRemoved))
	metrics.CleanupRemovedTotal.WithLabelValues("group").Add(float64(result.GroupsRemoved))
	metrics.CleanupRemovedTotal.WithLabelValues("metric").Add(float64(result.MetricsRemoved))
	metrics.MetricsTracked.Set(float64(e.tracker.Len()))
	e.updateGauges()

	e.logger.Info("cleanup completed",
		"expired", result.Expired,
		"suppressedRetired", result.SuppressedRetired,
		"alertsRemoved", result.AlertsRemoved,
		"groupsRemoved", result.GroupsRemoved,
		"metricsRemoved", result.MetricsRemoved,
	)
	return result
}

// expire moves non-terminal alerts created before olderThan to Expired.
func (e *Engine) expire(olderThan, now time.Time) int {
	stale := e.alerts.List(domain.AlertFilter{States: activeStates})

	expired := 0
	for _, a := range stale {
		if !a.CreatedAt.Before(olderThan) {
			continue
		}
		if _, err := e.alerts.Update(a.ID, func(cur *domain.Alert) error {
			return cur.Expire(now)
		}); err != nil {
			continue
		}
		expired++
		metrics.AlertsExpiredTotal.Inc()
		e.logger.Info("alert expired", "alertID", a.ID, "createdAt", a.CreatedAt)
	}
	return expired
}

// Drain waits for in-flight notifications to finish.
func (e *Engine) Drain() {
	e.dispatcher.Drain()
}

// Shutdown stops the background loops and refuses new submissions and
// dispatches. In-flight notifications are allowed to finish until ctx is done.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	alreadyStopped := e.stopped.Swap(true)
	cancel := e.cancelRun
	e.mu.Unlock()

	if alreadyStopped {
		return nil
	}
	if cancel != nil {
		cancel()
	}
	e.loops.Wait()

	e.logger.Info("engine shutting down, waiting for in-flight notifications")
	return e.dispatcher.Close(ctx)
}
