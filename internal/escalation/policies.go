package escalation

import (
	"fmt"
	"sort"
	"sync"

	"vigil/internal/domain"
)

// Policies is the registry of escalation policies, replaceable at runtime.
type Policies struct {
	mu        sync.RWMutex
	policies  map[string]*domain.EscalationPolicy
	defaultID string
}

// NewPolicies creates a registry. defaultID names the policy used for
// alerts without an escalation_policy tag.
func NewPolicies(defaultID string) *Policies {
	return &Policies{
		policies:  make(map[string]*domain.EscalationPolicy),
		defaultID: defaultID,
	}
}

// Put validates and stores a copy of the policy, replacing any policy
// with the same id.
func (p *Policies) Put(policy domain.EscalationPolicy) error {
	if err := policy.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.policies[policy.ID] = policy.Clone()
	return nil
}

// Get returns a copy of the policy with the given id.
func (p *Policies) Get(id string) (*domain.EscalationPolicy, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	policy, ok := p.policies[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrPolicyNotFound, id)
	}
	return policy.Clone(), nil
}

// For resolves the policy an alert escalates under.
func (p *Policies) For(alert *domain.Alert) (*domain.EscalationPolicy, error) {
	return p.Get(alert.PolicyName(p.defaultID))
}

// List returns copies of all policies ordered by id.
func (p *Policies) List() []*domain.EscalationPolicy {
	p.mu.RLock()
	defer p.mu.RUnlock()

	results := make([]*domain.EscalationPolicy, 0, len(p.policies))
	for _, policy := range p.policies {
		results = append(results, policy.Clone())
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	return results
}

// Len returns the number of registered policies.
func (p *Policies) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.policies)
}
