package memory

import (
	"context"
	"sync"

	"vigil/internal/domain"
)

// Default capacities for the in-memory archive.
const (
	DefaultMaxArchivedAlerts = 10000
	DefaultMaxNotifications  = 10000
)

// Archive is a bounded in-memory implementation of store.Archive. The
// oldest entries are evicted once a capacity is reached.
type Archive struct {
	mu sync.RWMutex

	maxAlerts        int
	maxNotifications int

	alerts     map[string]*domain.Alert
	alertOrder []string

	notifications []*domain.NotificationStatus
}

// NewArchive creates an archive holding at most maxAlerts alerts and
// maxNotifications notification records. Zero selects the defaults.
func NewArchive(maxAlerts, maxNotifications int) *Archive {
	if maxAlerts <= 0 {
		maxAlerts = DefaultMaxArchivedAlerts
	}
	if maxNotifications <= 0 {
		maxNotifications = DefaultMaxNotifications
	}
	return &Archive{
		maxAlerts:        maxAlerts,
		maxNotifications: maxNotifications,
		alerts:           make(map[string]*domain.Alert),
	}
}

// ArchiveAlerts stores copies of the alerts.
func (a *Archive) ArchiveAlerts(ctx context.Context, alerts []*domain.Alert) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, alert := range alerts {
		if _, exists := a.alerts[alert.ID]; !exists {
			a.alertOrder = append(a.alertOrder, alert.ID)
		}
		a.alerts[alert.ID] = alert.Clone()
	}
	for len(a.alertOrder) > a.maxAlerts {
		delete(a.alerts, a.alertOrder[0])
		a.alertOrder = a.alertOrder[1:]
	}
	return nil
}

// GetAlert retrieves an archived alert.
func (a *Archive) GetAlert(ctx context.Context, id string) (*domain.Alert, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	alert, exists := a.alerts[id]
	if !exists {
		return nil, domain.ErrAlertNotFound
	}
	return alert.Clone(), nil
}

// RecordNotification appends a notification record.
func (a *Archive) RecordNotification(ctx context.Context, status *domain.NotificationStatus) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	statusCopy := *status
	a.notifications = append(a.notifications, &statusCopy)
	if over := len(a.notifications) - a.maxNotifications; over > 0 {
		a.notifications = a.notifications[over:]
	}
	return nil
}

// ListNotifications returns the records for an alert, oldest first.
func (a *Archive) ListNotifications(ctx context.Context, alertID string) ([]*domain.NotificationStatus, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	results := []*domain.NotificationStatus{}
	for _, n := range a.notifications {
		if n.AlertID == alertID {
			statusCopy := *n
			results = append(results, &statusCopy)
		}
	}
	return results, nil
}

// Close releases any resources (no-op for in-memory archive).
func (a *Archive) Close() error {
	return nil
}
