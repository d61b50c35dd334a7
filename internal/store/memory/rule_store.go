package memory

import (
	"context"
	"sort"
	"sync"

	"vigil/internal/domain"
)

// RuleStore is an in-memory implementation of store.RuleStore.
type RuleStore struct {
	mu sync.RWMutex

	rules    map[string]*domain.SuppressionRule
	policies map[string]*domain.EscalationPolicy
}

// NewRuleStore creates a new in-memory rule store.
func NewRuleStore() *RuleStore {
	return &RuleStore{
		rules:    make(map[string]*domain.SuppressionRule),
		policies: make(map[string]*domain.EscalationPolicy),
	}
}

// SaveSuppressionRule stores or replaces a rule.
func (r *RuleStore) SaveSuppressionRule(ctx context.Context, rule *domain.SuppressionRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ruleCopy := *rule
	r.rules[rule.ID] = &ruleCopy
	return nil
}

// DeleteSuppressionRule removes a rule by id.
func (r *RuleStore) DeleteSuppressionRule(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rules[id]; !exists {
		return domain.ErrRuleNotFound
	}
	delete(r.rules, id)
	return nil
}

// ListSuppressionRules returns all rules ordered by id.
func (r *RuleStore) ListSuppressionRules(ctx context.Context) ([]*domain.SuppressionRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make([]*domain.SuppressionRule, 0, len(r.rules))
	for _, rule := range r.rules {
		ruleCopy := *rule
		results = append(results, &ruleCopy)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	return results, nil
}

// SaveEscalationPolicy stores or replaces a policy.
func (r *RuleStore) SaveEscalationPolicy(ctx context.Context, policy *domain.EscalationPolicy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.policies[policy.ID] = policy.Clone()
	return nil
}

// ListEscalationPolicies returns all policies ordered by id.
func (r *RuleStore) ListEscalationPolicies(ctx context.Context) ([]*domain.EscalationPolicy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make([]*domain.EscalationPolicy, 0, len(r.policies))
	for _, p := range r.policies {
		results = append(results, p.Clone())
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	return results, nil
}

// Close releases any resources (no-op for in-memory store).
func (r *RuleStore) Close() error {
	return nil
}
