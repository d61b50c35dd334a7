package domain

import (
	"fmt"
	"strings"
	"time"
)

// Severity ranks how urgent an alert is. Lower values are more urgent,
// so severities compare with the usual integer operators.
type Severity int

const (
	SeverityCritical Severity = iota + 1 // P1
	SeverityHigh                         // P2
	SeverityMedium                       // P3
	SeverityLow                          // P4
	SeverityInfo                         // P5
)

var severityNames = map[Severity]string{
	SeverityCritical: "critical",
	SeverityHigh:     "high",
	SeverityMedium:   "medium",
	SeverityLow:      "low",
	SeverityInfo:     "info",
}

// IsValid returns true if the severity is one of P1..P5.
func (s Severity) IsValid() bool {
	_, ok := severityNames[s]
	return ok
}

// String returns the lower-case severity name.
func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// Priority returns the P-number label, e.g. "P1".
func (s Severity) Priority() string {
	return fmt.Sprintf("P%d", int(s))
}

// MoreUrgentThan reports whether s should be handled before other.
func (s Severity) MoreUrgentThan(other Severity) bool {
	return s < other
}

// ParseSeverity accepts a severity name ("critical") or priority ("P1").
func ParseSeverity(v string) (Severity, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	for sev, name := range severityNames {
		if v == name || v == strings.ToLower(sev.Priority()) {
			return sev, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidSeverity, v)
}

// MarshalText encodes the severity by name for JSON and YAML.
func (s Severity) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSeverity, int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name or priority label.
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// CorrelationKey identifies the underlying condition an alert is about.
// Alerts with equal keys are candidates for deduplication and correlation.
type CorrelationKey struct {
	Service     string `json:"service" yaml:"service"`
	Component   string `json:"component" yaml:"component"`
	MetricType  string `json:"metric_type" yaml:"metric_type"`
	Fingerprint string `json:"fingerprint" yaml:"fingerprint"`
}

// IsZero returns true if no part of the key is set.
func (k CorrelationKey) IsZero() bool {
	return k == CorrelationKey{}
}

// String renders the key as service/component/metric_type/fingerprint.
func (k CorrelationKey) String() string {
	return k.Service + "/" + k.Component + "/" + k.MetricType + "/" + k.Fingerprint
}

// Alert is the central entity of the engine.
type Alert struct {
	// ID is the unique identifier for this alert.
	ID string `json:"id"`

	// CorrelationKey groups this alert with others about the same condition.
	CorrelationKey CorrelationKey `json:"correlation_key"`

	Severity    Severity `json:"severity"`
	State       State    `json:"state"`
	Title       string   `json:"title"`
	Description string   `json:"description"`

	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
	ResolvedBy     string     `json:"resolved_by,omitempty"`

	Tags         map[string]string `json:"tags,omitempty"`
	Context      map[string]any    `json:"context,omitempty"`
	RunbookURL   string            `json:"runbook_url,omitempty"`
	DashboardURL string            `json:"dashboard_url,omitempty"`

	// MetricValue and Threshold describe the sample that triggered the alert.
	MetricValue float64 `json:"metric_value"`
	Threshold   float64 `json:"threshold"`

	// EscalationLevel indexes into the alert's escalation policy levels.
	EscalationLevel int        `json:"escalation_level"`
	EscalatedAt     *time.Time `json:"escalated_at,omitempty"`
	LastNotifiedAt  *time.Time `json:"last_notified_at,omitempty"`

	// FireCount is incremented each time a duplicate is folded into this alert.
	FireCount int `json:"fire_count"`

	SuppressedUntil *time.Time `json:"suppressed_until,omitempty"`
}

// TagEscalationPolicy is the tag naming the escalation policy for an alert.
const TagEscalationPolicy = "escalation_policy"

// PolicyName returns the escalation policy referenced by the alert's tags,
// or fallback if none is set.
func (a *Alert) PolicyName(fallback string) string {
	if name := a.Tags[TagEscalationPolicy]; name != "" {
		return name
	}
	return fallback
}

// IsOpen returns true for alerts that still demand attention and can
// absorb duplicates: Triggered, Acknowledged or Escalated.
func (a *Alert) IsOpen() bool {
	return a.State.IsOpen()
}

// IsActive returns true for every alert that is neither resolved nor expired.
func (a *Alert) IsActive() bool {
	return !a.State.IsTerminal()
}

// IsSuppressedAt returns true while the alert's own suppression timer runs.
func (a *Alert) IsSuppressedAt(now time.Time) bool {
	return a.SuppressedUntil != nil && now.Before(*a.SuppressedUntil)
}

// Acknowledge records an operator acknowledgement.
func (a *Alert) Acknowledge(actor string, now time.Time) error {
	if err := a.transition(StateAcknowledged); err != nil {
		return err
	}
	a.AcknowledgedAt = &now
	a.AcknowledgedBy = actor
	a.UpdatedAt = now
	return nil
}

// Resolve marks the alert as resolved.
func (a *Alert) Resolve(actor string, now time.Time) error {
	if err := a.transition(StateResolved); err != nil {
		return err
	}
	a.ResolvedAt = &now
	a.ResolvedBy = actor
	a.UpdatedAt = now
	return nil
}

// Escalate moves the alert to the given level.
func (a *Alert) Escalate(level int, now time.Time) error {
	if err := a.transition(StateEscalated); err != nil {
		return err
	}
	a.EscalationLevel = level
	a.EscalatedAt = &now
	a.UpdatedAt = now
	return nil
}

// Expire retires an alert that was never resolved.
func (a *Alert) Expire(now time.Time) error {
	if err := a.transition(StateExpired); err != nil {
		return err
	}
	a.UpdatedAt = now
	return nil
}

// SuppressFor silences the alert until now+d.
func (a *Alert) SuppressFor(d time.Duration, reason string, now time.Time) {
	until := now.Add(d)
	a.SuppressedUntil = &until
	if a.Context == nil {
		a.Context = make(map[string]any)
	}
	a.Context["suppression_reason"] = reason
	a.UpdatedAt = now
}

// IncrementFireCount folds a duplicate into this alert.
func (a *Alert) IncrementFireCount(now time.Time) {
	a.FireCount++
	a.UpdatedAt = now
}

// MarkNotified records a notification dispatch.
func (a *Alert) MarkNotified(now time.Time) {
	a.LastNotifiedAt = &now
}

func (a *Alert) transition(to State) error {
	if !a.State.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.State, to)
	}
	a.State = to
	return nil
}

// Clone returns a deep copy so callers never share maps with the store.
func (a *Alert) Clone() *Alert {
	if a == nil {
		return nil
	}
	c := *a
	if a.Tags != nil {
		c.Tags = make(map[string]string, len(a.Tags))
		for k, v := range a.Tags {
			c.Tags[k] = v
		}
	}
	if a.Context != nil {
		c.Context = make(map[string]any, len(a.Context))
		for k, v := range a.Context {
			c.Context[k] = v
		}
	}
	c.AcknowledgedAt = cloneTime(a.AcknowledgedAt)
	c.ResolvedAt = cloneTime(a.ResolvedAt)
	c.EscalatedAt = cloneTime(a.EscalatedAt)
	c.LastNotifiedAt = cloneTime(a.LastNotifiedAt)
	c.SuppressedUntil = cloneTime(a.SuppressedUntil)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// AlertFilter provides filtering options for querying alerts.
type AlertFilter struct {
	States   []State
	Severity Severity
	Service  string
	Limit    int
	Offset   int
}

// Matches reports whether the alert passes the filter.
func (f AlertFilter) Matches(a *Alert) bool {
	if len(f.States) > 0 {
		found := false
		for _, s := range f.States {
			if a.State == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Severity != 0 && a.Severity != f.Severity {
		return false
	}
	if f.Service != "" && a.CorrelationKey.Service != f.Service {
		return false
	}
	return true
}
