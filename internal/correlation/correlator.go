// Package correlation decides whether an incoming alert is new, a duplicate
// of an open alert, or a sibling in an existing correlation group.
package correlation

import (
	"log/slog"
	"time"

	"vigil/internal/domain"
	"vigil/internal/metrics"
	"vigil/internal/store"
)

// Outcome is the result of processing one alert candidate.
type Outcome string

const (
	OutcomeNew          Outcome = "new"
	OutcomeDeduplicated Outcome = "deduplicated"
	OutcomeCorrelated   Outcome = "correlated"
	OutcomeSuppressed   Outcome = "suppressed"
)

// Config holds the correlation windows.
type Config struct {
	// DeduplicationWindow folds repeats of an open alert into it.
	DeduplicationWindow time.Duration

	// CorrelationWindow groups new alerts with siblings of the same key.
	CorrelationWindow time.Duration

	// RenotifyEvery re-notifies a deduplicated alert on every Nth fire.
	// Zero disables re-notification.
	RenotifyEvery int
}

// Decision describes what the correlator did with a candidate.
type Decision struct {
	// Alert is the stored alert: the candidate itself, or the existing
	// alert the candidate was folded into.
	Alert *domain.Alert

	Outcome Outcome

	// Group is the candidate's correlation group. Nil for duplicates.
	Group *domain.CorrelationGroup

	// Notify is true when the caller should dispatch level-0 notifications.
	Notify bool
}

// Correlator applies deduplication and correlation against the alert and
// group stores. Each store decision is a single exclusive operation, so
// two racing submissions for one key yield one create and one duplicate.
type Correlator struct {
	alerts store.AlertStore
	groups store.GroupStore
	cfg    Config
	logger *slog.Logger
}

// NewCorrelator creates a correlator over the given stores.
func NewCorrelator(alerts store.AlertStore, groups store.GroupStore, cfg Config, logger *slog.Logger) *Correlator {
	return &Correlator{
		alerts: alerts,
		groups: groups,
		cfg:    cfg,
		logger: logger.With("component", "correlator"),
	}
}

// Correlate stores or folds a non-suppressed candidate. The candidate's
// CreatedAt is the reference time for both windows.
func (c *Correlator) Correlate(candidate *domain.Alert) Decision {
	stored, duplicate := c.alerts.InsertOrDeduplicate(candidate, c.cfg.DeduplicationWindow)
	if duplicate {
		notify := c.cfg.RenotifyEvery > 0 && stored.FireCount%c.cfg.RenotifyEvery == 0

		c.logger.Debug("deduplicated alert",
			"alertID", stored.ID,
			"correlationKey", stored.CorrelationKey.String(),
			"fireCount", stored.FireCount,
			"renotify", notify,
		)
		metrics.AlertsProcessedTotal.WithLabelValues(string(OutcomeDeduplicated), stored.Severity.String()).Inc()

		return Decision{Alert: stored, Outcome: OutcomeDeduplicated, Notify: notify}
	}

	group, joined := c.groups.Attach(stored, c.cfg.CorrelationWindow, stored.CreatedAt)

	outcome := OutcomeNew
	if joined {
		outcome = OutcomeCorrelated
		metrics.AlertGroupSize.Observe(float64(group.CorrelationCount))
	}

	c.logger.Info("stored alert",
		"alertID", stored.ID,
		"outcome", outcome,
		"correlationKey", stored.CorrelationKey.String(),
		"primaryAlertID", group.PrimaryAlertID,
		"correlationCount", group.CorrelationCount,
	)
	metrics.AlertsProcessedTotal.WithLabelValues(string(outcome), stored.Severity.String()).Inc()

	return Decision{Alert: stored, Outcome: outcome, Group: group, Notify: true}
}
