package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"vigil/internal/domain"
	"vigil/internal/metrics"
)

// Acknowledge records that an operator has taken the alert.
func (e *Engine) Acknowledge(ctx context.Context, id, actor string) (*domain.Alert, error) {
	now := e.clock()
	alert, err := e.alerts.Update(id, func(a *domain.Alert) error {
		return a.Acknowledge(actor, now)
	})
	if err != nil {
		return nil, e.commandError("acknowledge", id, err)
	}

	e.logger.Info("alert acknowledged", "alertID", id, "actor", actor)
	return alert, nil
}

// Resolve closes the alert. Resolved alerts are reclaimed by cleanup once
// they age past the retention window.
func (e *Engine) Resolve(ctx context.Context, id, actor string) (*domain.Alert, error) {
	now := e.clock()
	alert, err := e.alerts.Update(id, func(a *domain.Alert) error {
		return a.Resolve(actor, now)
	})
	if err != nil {
		return nil, e.commandError("resolve", id, err)
	}

	e.logger.Info("alert resolved", "alertID", id, "actor", actor)
	metrics.AlertsResolvedTotal.WithLabelValues(alert.Severity.String()).Inc()
	return alert, nil
}

// Suppress silences an existing alert for d. While suppressed it is skipped
// by escalation and repeat notification.
func (e *Engine) Suppress(ctx context.Context, id string, d time.Duration, reason string) (*domain.Alert, error) {
	if d <= 0 {
		return nil, fmt.Errorf("%w: suppression duration must be positive", domain.ErrInvalidConfig)
	}

	now := e.clock()
	alert, err := e.alerts.Update(id, func(a *domain.Alert) error {
		if a.State.IsTerminal() {
			return fmt.Errorf("%w: cannot suppress a %s alert", domain.ErrInvalidTransition, a.State)
		}
		a.SuppressFor(d, reason, now)
		return nil
	})
	if err != nil {
		return nil, e.commandError("suppress", id, err)
	}

	e.logger.Info("alert suppressed by operator",
		"alertID", id,
		"until", alert.SuppressedUntil,
		"reason", reason,
	)
	return alert, nil
}

func (e *Engine) commandError(command, id string, err error) error {
	if errors.Is(err, domain.ErrAlertNotFound) {
		e.logger.Warn("command for unknown alert", "command", command, "alertID", id)
		return fmt.Errorf("%w: %s", domain.ErrAlertNotFound, id)
	}
	e.logger.Warn("command rejected", "command", command, "alertID", id, "error", err)
	return err
}

// AddSuppressionRule persists and activates a rule. An empty id is assigned.
// The rule applies from the next evaluation on; existing alerts are not
// touched.
func (e *Engine) AddSuppressionRule(ctx context.Context, rule domain.SuppressionRule) (*domain.SuppressionRule, error) {
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	if err := e.rules.SaveSuppressionRule(ctx, &rule); err != nil {
		return nil, fmt.Errorf("failed to persist suppression rule: %w", err)
	}
	if err := e.suppression.Add(rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

// RemoveSuppressionRule deactivates and deletes a rule.
func (e *Engine) RemoveSuppressionRule(ctx context.Context, id string) error {
	if err := e.suppression.Remove(id); err != nil {
		return err
	}

	// Rules loaded from the config file were never persisted.
	if err := e.rules.DeleteSuppressionRule(ctx, id); err != nil && !errors.Is(err, domain.ErrRuleNotFound) {
		return fmt.Errorf("failed to delete persisted suppression rule: %w", err)
	}
	return nil
}

// ListSuppressionRules returns the active rule set.
func (e *Engine) ListSuppressionRules() []*domain.SuppressionRule {
	return e.suppression.List()
}

// UpdateEscalationPolicy validates, persists and installs a policy,
// replacing any policy with the same id. Alerts pick it up on the next
// escalation tick.
func (e *Engine) UpdateEscalationPolicy(ctx context.Context, policy domain.EscalationPolicy) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	if err := e.rules.SaveEscalationPolicy(ctx, &policy); err != nil {
		return fmt.Errorf("failed to persist escalation policy: %w", err)
	}
	if err := e.policies.Put(policy); err != nil {
		return err
	}

	e.logger.Info("escalation policy updated", "policyID", policy.ID, "levels", len(policy.Levels))
	return nil
}

// ListEscalationPolicies returns every installed policy ordered by id.
func (e *Engine) ListEscalationPolicies() []*domain.EscalationPolicy {
	return e.policies.List()
}

// GetEscalationPolicy returns one policy.
func (e *Engine) GetEscalationPolicy(id string) (*domain.EscalationPolicy, error) {
	return e.policies.Get(id)
}
