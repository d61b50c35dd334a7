// Package suppression decides whether an alert should be silenced by a
// maintenance-window rule or by its own suppression timer.
package suppression

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"vigil/internal/domain"
)

// Manager holds the runtime set of suppression rules.
type Manager struct {
	mu     sync.RWMutex
	rules  map[string]*domain.SuppressionRule
	logger *slog.Logger
}

// NewManager creates an empty manager.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		rules:  make(map[string]*domain.SuppressionRule),
		logger: logger.With("component", "suppression"),
	}
}

// IsSuppressed reports whether the alert should be silenced at now, and
// the id of the matching rule when one applies. An alert whose own timer
// runs past now is suppressed with an empty rule id.
func (m *Manager) IsSuppressed(alert *domain.Alert, now time.Time) (bool, string) {
	if alert.IsSuppressedAt(now) {
		return true, ""
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, rule := range m.rules {
		if rule.ActiveAt(now) && rule.Matches(alert) {
			return true, rule.ID
		}
	}
	return false, ""
}

// Add validates and stores a rule, replacing any rule with the same id.
func (m *Manager) Add(rule domain.SuppressionRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	m.rules[rule.ID] = &rule
	m.mu.Unlock()

	m.logger.Info("suppression rule added",
		"ruleID", rule.ID,
		"pattern", rule.Pattern,
		"startTime", rule.StartTime,
		"endTime", rule.EndTime,
	)
	return nil
}

// Remove deletes a rule.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	_, ok := m.rules[id]
	delete(m.rules, id)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrRuleNotFound, id)
	}
	m.logger.Info("suppression rule removed", "ruleID", id)
	return nil
}

// Get returns a copy of a rule.
func (m *Manager) Get(id string) (*domain.SuppressionRule, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rule, ok := m.rules[id]
	if !ok {
		return nil, false
	}
	c := *rule
	return &c, true
}

// List returns copies of all rules ordered by start time.
func (m *Manager) List() []*domain.SuppressionRule {
	m.mu.RLock()
	out := make([]*domain.SuppressionRule, 0, len(m.rules))
	for _, rule := range m.rules {
		c := *rule
		out = append(out, &c)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

// Len returns the number of rules.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rules)
}
