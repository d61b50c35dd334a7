// Package store defines the storage interfaces used by the engine.
// The live alert set and correlation index are in-memory authorities;
// runtime rules and the historical archive can be backed by Redis and
// PostgreSQL without changing business logic.
package store

import (
	"context"
	"errors"
	"time"

	"vigil/internal/domain"
)

// ErrConflict is returned by an update function to abandon a mutation
// because the alert changed since it was read.
var ErrConflict = errors.New("alert changed concurrently")

// AlertStore is the authoritative map of live alerts with a correlation-key
// index. All methods must be safe for concurrent use and return copies.
type AlertStore interface {
	// InsertOrDeduplicate atomically either folds the candidate into an
	// earlier alert with the same key, or stores the candidate as a new
	// alert. Live candidates fold into an open alert created less than
	// window before them; suppressed candidates fold into a suppressed
	// alert that last fired less than window before them. It returns the
	// stored alert and whether it was a duplicate.
	InsertOrDeduplicate(candidate *domain.Alert, window time.Duration) (*domain.Alert, bool)

	// Insert stores an alert unconditionally.
	Insert(alert *domain.Alert)

	// Get retrieves an alert by id.
	Get(id string) (*domain.Alert, bool)

	// Update applies fn to a copy of the alert under exclusive access and
	// commits the copy only when fn returns nil.
	Update(id string, fn func(*domain.Alert) error) (*domain.Alert, error)

	// List returns alerts matching the filter, oldest first.
	List(filter domain.AlertFilter) []*domain.Alert

	// RemoveWhere deletes every alert for which pred is true and returns them.
	RemoveWhere(pred func(*domain.Alert) bool) []*domain.Alert

	// Len returns the number of stored alerts.
	Len() int
}

// GroupStore is the correlation-group index, one group per key.
type GroupStore interface {
	// Attach atomically adds the alert to its key's group if that group was
	// created less than window before at, or starts a new group with the
	// alert as primary. It returns the group and whether the alert joined
	// an existing one.
	Attach(alert *domain.Alert, window time.Duration, at time.Time) (*domain.CorrelationGroup, bool)

	// Get returns the current group for a key.
	Get(key domain.CorrelationKey) (*domain.CorrelationGroup, bool)

	// RemoveStale deletes groups last updated before cutoff.
	RemoveStale(cutoff time.Time) int

	// Len returns the number of groups.
	Len() int
}

// RuleStore persists runtime-managed suppression rules and escalation
// policies so they survive restarts.
type RuleStore interface {
	SaveSuppressionRule(ctx context.Context, rule *domain.SuppressionRule) error

	// DeleteSuppressionRule returns domain.ErrRuleNotFound for unknown ids.
	DeleteSuppressionRule(ctx context.Context, id string) error

	ListSuppressionRules(ctx context.Context) ([]*domain.SuppressionRule, error)

	SaveEscalationPolicy(ctx context.Context, policy *domain.EscalationPolicy) error

	ListEscalationPolicies(ctx context.Context) ([]*domain.EscalationPolicy, error)

	// Close releases any resources held by the store.
	Close() error
}

// Archive keeps history beyond the engine's in-memory retention: alerts
// removed by cleanup and every notification attempt.
type Archive interface {
	ArchiveAlerts(ctx context.Context, alerts []*domain.Alert) error

	// GetAlert returns domain.ErrAlertNotFound for unknown ids.
	GetAlert(ctx context.Context, id string) (*domain.Alert, error)

	RecordNotification(ctx context.Context, status *domain.NotificationStatus) error

	// ListNotifications returns attempts for an alert, oldest first.
	ListNotifications(ctx context.Context, alertID string) ([]*domain.NotificationStatus, error)

	// Close releases any resources held by the archive.
	Close() error
}
