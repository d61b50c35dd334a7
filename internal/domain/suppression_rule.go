package domain

import (
	"fmt"
	"strings"
	"time"
)

// SuppressionRule silences alerts matching a pattern during a maintenance window.
type SuppressionRule struct {
	// ID is the unique identifier for this rule.
	ID string `json:"id" yaml:"id"`

	// Name is a human-readable name for the rule.
	Name string `json:"name" yaml:"name"`

	// Pattern is matched as a substring of the alert title or description.
	Pattern string `json:"pattern" yaml:"pattern"`

	// StartTime and EndTime bound the window in which the rule is active.
	StartTime time.Time `json:"start_time" yaml:"start_time"`
	EndTime   time.Time `json:"end_time" yaml:"end_time"`

	Reason    string `json:"reason" yaml:"reason"`
	CreatedBy string `json:"created_by" yaml:"created_by"`
}

// Validate checks if the rule has all required fields with valid values.
func (r *SuppressionRule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: suppression rule id is required", ErrInvalidConfig)
	}
	if r.Pattern == "" {
		return fmt.Errorf("%w: suppression rule %q needs a pattern", ErrInvalidConfig, r.ID)
	}
	if r.StartTime.IsZero() || r.EndTime.IsZero() {
		return fmt.Errorf("%w: suppression rule %q needs start_time and end_time", ErrInvalidConfig, r.ID)
	}
	if !r.EndTime.After(r.StartTime) {
		return fmt.Errorf("%w: suppression rule %q ends before it starts", ErrInvalidConfig, r.ID)
	}
	return nil
}

// ActiveAt returns true if now falls inside the rule's window (inclusive).
func (r *SuppressionRule) ActiveAt(now time.Time) bool {
	return !now.Before(r.StartTime) && !now.After(r.EndTime)
}

// Matches returns true if the pattern occurs in the alert title or description.
func (r *SuppressionRule) Matches(a *Alert) bool {
	return strings.Contains(a.Title, r.Pattern) || strings.Contains(a.Description, r.Pattern)
}

// CreateSuppressionRuleRequest represents the input for creating a new rule.
type CreateSuppressionRuleRequest struct {
	Name      string    `json:"name"`
	Pattern   string    `json:"pattern"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Reason    string    `json:"reason"`
	CreatedBy string    `json:"created_by"`
}

// ToSuppressionRule converts the request to a SuppressionRule entity.
func (r *CreateSuppressionRuleRequest) ToSuppressionRule(id string) *SuppressionRule {
	return &SuppressionRule{
		ID:        id,
		Name:      r.Name,
		Pattern:   r.Pattern,
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
		Reason:    r.Reason,
		CreatedBy: r.CreatedBy,
	}
}
