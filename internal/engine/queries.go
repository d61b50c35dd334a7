package engine

import (
	"context"
	"time"

	"vigil/internal/domain"
)

// activeStates are the states GetActiveAlerts reports.
var activeStates = []domain.State{
	domain.StateTriggered,
	domain.StateAcknowledged,
	domain.StateEscalated,
	domain.StateSuppressed,
}

// Health is the engine's self-reported status.
type Health struct {
	Healthy           bool          `json:"healthy"`
	AlertsInMemory    int           `json:"alerts_in_memory"`
	CorrelationGroups int           `json:"correlation_groups"`
	MetricsTracked    int           `json:"metrics_tracked"`
	MaxAlertsInMemory int           `json:"max_alerts_in_memory"`
	Uptime            time.Duration `json:"uptime"`
}

// CorrelatedAlerts is a correlation group with its member alerts.
type CorrelatedAlerts struct {
	Group  *domain.CorrelationGroup `json:"group"`
	Alerts []*domain.Alert          `json:"alerts"`
}

// GetAlertStatus returns a live alert by id.
func (e *Engine) GetAlertStatus(id string) (*domain.Alert, bool) {
	return e.alerts.Get(id)
}

// GetArchivedAlert returns an alert that cleanup has moved to the archive.
func (e *Engine) GetArchivedAlert(ctx context.Context, id string) (*domain.Alert, error) {
	return e.archive.GetAlert(ctx, id)
}

// GetActiveAlerts returns every alert that is neither resolved nor expired,
// oldest first.
func (e *Engine) GetActiveAlerts() []*domain.Alert {
	return e.alerts.List(domain.AlertFilter{States: activeStates})
}

// ListAlerts returns live alerts matching the filter. An empty state list
// selects the active states.
func (e *Engine) ListAlerts(filter domain.AlertFilter) []*domain.Alert {
	if len(filter.States) == 0 {
		filter.States = activeStates
	}
	return e.alerts.List(filter)
}

// GetCorrelatedAlerts returns the current group for key and the members
// still held in memory.
func (e *Engine) GetCorrelatedAlerts(key domain.CorrelationKey) (*CorrelatedAlerts, bool) {
	group, ok := e.groups.Get(key)
	if !ok {
		return nil, false
	}

	members := make([]*domain.Alert, 0, len(group.AlertIDs))
	for _, id := range group.AlertIDs {
		if a, ok := e.alerts.Get(id); ok {
			members = append(members, a)
		}
	}
	return &CorrelatedAlerts{Group: group, Alerts: members}, true
}

// NotificationHistory returns every recorded delivery attempt for an alert.
func (e *Engine) NotificationHistory(ctx context.Context, alertID string) ([]*domain.NotificationStatus, error) {
	return e.archive.ListNotifications(ctx, alertID)
}

// HealthCheck reports store sizes. The engine is healthy while it is
// running and holds fewer alerts than the configured ceiling.
func (e *Engine) HealthCheck() Health {
	alerts := e.alerts.Len()
	return Health{
		Healthy:           !e.stopped.Load() && alerts < e.cfg.MaxAlertsInMemory,
		AlertsInMemory:    alerts,
		CorrelationGroups: e.groups.Len(),
		MetricsTracked:    e.tracker.Len(),
		MaxAlertsInMemory: e.cfg.MaxAlertsInMemory,
		Uptime:            e.clock().Sub(e.startedAt),
	}
}
