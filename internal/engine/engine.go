// Package engine wires the alerting pipeline together: statistics and
// anomaly detection, suppression, correlation, escalation and notification
// over the live alert and correlation-group stores. It is the single
// logical authority over active alert state.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"vigil/internal/anomaly"
	"vigil/internal/config"
	"vigil/internal/correlation"
	"vigil/internal/domain"
	"vigil/internal/escalation"
	"vigil/internal/metrics"
	"vigil/internal/notification"
	"vigil/internal/stats"
	"vigil/internal/store"
	"vigil/internal/suppression"
)

// ErrEngineStopped is returned for submissions after Shutdown.
var ErrEngineStopped = errors.New("engine is stopped")

// Result reports what happened to a submitted alert candidate.
type Result struct {
	Alert   *domain.Alert       `json:"alert"`
	Outcome correlation.Outcome `json:"outcome"`
}

// Dependencies are the collaborators an Engine is built from.
type Dependencies struct {
	Config  *config.Config
	Alerts  store.AlertStore
	Groups  store.GroupStore
	Rules   store.RuleStore
	Archive store.Archive
	Senders map[domain.NotificationChannel]notification.Sender
	Logger  *slog.Logger

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// Engine is the alerting engine facade.
type Engine struct {
	cfg     config.EngineConfig
	alerts  store.AlertStore
	groups  store.GroupStore
	rules   store.RuleStore
	archive store.Archive

	tracker     *stats.Tracker
	detector    *anomaly.Detector
	suppression *suppression.Manager
	correlator  *correlation.Correlator
	policies    *escalation.Policies
	escalator   *escalation.Escalator
	dispatcher  *notification.Dispatcher

	clock     func() time.Time
	logger    *slog.Logger
	startedAt time.Time

	stopped   atomic.Bool
	mu        sync.Mutex
	cancelRun context.CancelFunc
	loops     sync.WaitGroup
}

// New builds an engine, loading escalation policies and suppression rules
// from configuration and then overlaying those persisted in the rule store.
func New(ctx context.Context, deps Dependencies) (*Engine, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("%w: engine requires a configuration", domain.ErrInvalidConfig)
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	tracker := stats.NewTracker(cfg.Anomaly.WindowSize)
	policies := escalation.NewPolicies(cfg.Engine.DefaultEscalationPolicy)
	dispatcher := notification.NewDispatcher(cfg.Notification, deps.Senders, deps.Archive, logger)

	e := &Engine{
		cfg:         cfg.Engine,
		alerts:      deps.Alerts,
		groups:      deps.Groups,
		rules:       deps.Rules,
		archive:     deps.Archive,
		tracker:     tracker,
		detector:    anomaly.NewDetector(cfg.Anomaly, tracker, logger),
		suppression: suppression.NewManager(logger),
		correlator: correlation.NewCorrelator(deps.Alerts, deps.Groups, correlation.Config{
			DeduplicationWindow: cfg.Engine.DeduplicationWindow,
			CorrelationWindow:   cfg.Engine.CorrelationWindow,
			RenotifyEvery:       cfg.Engine.RenotifyEvery,
		}, logger),
		policies:   policies,
		escalator:  escalation.NewEscalator(deps.Alerts, policies, dispatcher, logger),
		dispatcher: dispatcher,
		clock:      clock,
		logger:     logger.With("component", "engine"),
		startedAt:  clock(),
	}

	if err := e.loadPolicies(ctx, cfg.EscalationPolicies); err != nil {
		return nil, err
	}
	if err := e.loadRules(ctx, cfg.SuppressionRules); err != nil {
		return nil, err
	}

	return e, nil
}

func (e *Engine) loadPolicies(ctx context.Context, configured []domain.EscalationPolicy) error {
	for _, p := range configured {
		if err := e.policies.Put(p); err != nil {
			return err
		}
	}

	persisted, err := e.rules.ListEscalationPolicies(ctx)
	if err != nil {
		return fmt.Errorf("failed to load escalation policies: %w", err)
	}
	for _, p := range persisted {
		if err := e.policies.Put(*p); err != nil {
			e.logger.Warn("ignoring invalid persisted escalation policy", "policyID", p.ID, "error", err)
		}
	}

	e.logger.Info("escalation policies loaded",
		"configured", len(configured),
		"persisted", len(persisted),
	)
	return nil
}

func (e *Engine) loadRules(ctx context.Context, configured []domain.SuppressionRule) error {
	for _, r := range configured {
		if err := e.suppression.Add(r); err != nil {
			return err
		}
	}

	persisted, err := e.rules.ListSuppressionRules(ctx)
	if err != nil {
		return fmt.Errorf("failed to load suppression rules: %w", err)
	}
	for _, r := range persisted {
		if err := e.suppression.Add(*r); err != nil {
			e.logger.Warn("ignoring invalid persisted suppression rule", "ruleID", r.ID, "error", err)
		}
	}
	return nil
}

// ProcessMetric records a sample and, when the detector flags it, runs the
// resulting alert through suppression and correlation. A nil result with a
// nil error means the sample was not anomalous or the baseline is still
// too small to judge.
func (e *Engine) ProcessMetric(ctx context.Context, name string, value float64, ts time.Time) (*Result, error) {
	if e.stopped.Load() {
		return nil, ErrEngineStopped
	}

	sample := domain.MetricSample{MetricName: name, Value: value, Timestamp: ts}
	if err := sample.Validate(); err != nil {
		return nil, err
	}
	if ts.IsZero() {
		ts = e.clock()
	}

	candidate, anomalous := e.detector.Evaluate(name, value, ts)
	metrics.MetricsTracked.Set(float64(e.tracker.Len()))
	if !anomalous {
		return nil, nil
	}

	algorithm, _ := candidate.Context["algorithm"].(string)
	metrics.AnomaliesDetectedTotal.WithLabelValues(algorithm).Inc()

	return e.process(ctx, candidate)
}

// ProcessAlert runs an externally raised alert through suppression and
// correlation. Missing id, state, timestamps, fire count and severity
// are filled in.
func (e *Engine) ProcessAlert(ctx context.Context, candidate *domain.Alert) (*Result, error) {
	if e.stopped.Load() {
		return nil, ErrEngineStopped
	}
	if candidate.Title == "" {
		return nil, domain.ErrEmptyTitle
	}
	if candidate.CorrelationKey.Fingerprint == "" {
		return nil, domain.ErrEmptyFingerprint
	}
	if candidate.Severity != 0 && !candidate.Severity.IsValid() {
		return nil, domain.ErrInvalidSeverity
	}

	return e.process(ctx, candidate.Clone())
}

func (e *Engine) prepare(candidate *domain.Alert) {
	if candidate.ID == "" {
		candidate.ID = uuid.New().String()
	}
	if candidate.Severity == 0 {
		candidate.Severity = domain.SeverityMedium
	}
	if candidate.CreatedAt.IsZero() {
		candidate.CreatedAt = e.clock()
	}
	candidate.UpdatedAt = candidate.CreatedAt
	candidate.State = domain.StateTriggered
	if candidate.FireCount < 1 {
		candidate.FireCount = 1
	}
	candidate.EscalationLevel = 0
	candidate.AcknowledgedAt, candidate.ResolvedAt, candidate.EscalatedAt = nil, nil, nil
}

// process is the shared tail of both ingestion paths. The candidate's
// CreatedAt is "now" for suppression, deduplication and correlation.
func (e *Engine) process(ctx context.Context, candidate *domain.Alert) (*Result, error) {
	e.prepare(candidate)
	at := candidate.CreatedAt

	if suppressed, ruleID := e.suppression.IsSuppressed(candidate, at); suppressed {
		candidate.State = domain.StateSuppressed
		if ruleID != "" {
			if candidate.Context == nil {
				candidate.Context = make(map[string]any)
			}
			candidate.Context["suppression_rule"] = ruleID
		}
		stored, folded := e.alerts.InsertOrDeduplicate(candidate, e.cfg.DeduplicationWindow)
		e.updateGauges()

		if folded {
			e.logger.Debug("suppressed repeat folded",
				"alertID", stored.ID,
				"correlationKey", stored.CorrelationKey.String(),
				"fireCount", stored.FireCount,
			)
		} else {
			e.logger.Info("alert suppressed",
				"alertID", stored.ID,
				"correlationKey", stored.CorrelationKey.String(),
				"ruleID", ruleID,
			)
		}
		metrics.AlertsProcessedTotal.WithLabelValues(string(correlation.OutcomeSuppressed), stored.Severity.String()).Inc()
		return &Result{Alert: stored, Outcome: correlation.OutcomeSuppressed}, nil
	}

	decision := e.correlator.Correlate(candidate)
	alert := decision.Alert
	if decision.Notify {
		alert = e.notifyCurrentLevel(alert, at)
	}

	e.updateGauges()
	return &Result{Alert: alert, Outcome: decision.Outcome}, nil
}

// notifyCurrentLevel dispatches the alert's current escalation level and
// stamps LastNotifiedAt. The send itself runs in the background. An alert
// whose own suppression timer is running is left alone.
func (e *Engine) notifyCurrentLevel(alert *domain.Alert, at time.Time) *domain.Alert {
	if alert.IsSuppressedAt(at) {
		e.logger.Debug("alert suppressed by operator, not notifying",
			"alertID", alert.ID,
			"suppressedUntil", *alert.SuppressedUntil,
		)
		return alert
	}

	policy, err := e.policies.For(alert)
	if err != nil {
		e.logger.Warn("alert has no escalation policy, not notifying",
			"alertID", alert.ID,
			"policy", alert.PolicyName(e.cfg.DefaultEscalationPolicy),
		)
		return alert
	}
	level, ok := policy.Level(alert.EscalationLevel)
	if !ok {
		return alert
	}

	updated, err := e.alerts.Update(alert.ID, func(a *domain.Alert) error {
		a.MarkNotified(at)
		return nil
	})
	if err != nil {
		return alert
	}

	if err := e.dispatcher.Dispatch(updated, level); err != nil {
		e.logger.Warn("notification not dispatched", "alertID", alert.ID, "error", err)
	}
	return updated
}

func (e *Engine) updateGauges() {
	metrics.ActiveAlerts.Set(float64(e.alerts.Len()))
	metrics.CorrelationGroups.Set(float64(e.groups.Len()))
}
