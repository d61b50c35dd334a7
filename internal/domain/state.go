// Package domain contains the core business entities and value objects for Vigil.
// These models represent the ubiquitous language of the alerting engine.
package domain

// State is the lifecycle state of an alert.
type State string

const (
	StateTriggered    State = "triggered"
	StateAcknowledged State = "acknowledged"
	StateEscalated    State = "escalated"
	StateResolved     State = "resolved"
	StateSuppressed   State = "suppressed"
	StateExpired      State = "expired"
)

// transitions lists the allowed moves out of each non-terminal state.
// Resolved and Expired are reachable from every non-terminal state.
var transitions = map[State][]State{
	StateTriggered:    {StateAcknowledged, StateEscalated, StateSuppressed},
	StateAcknowledged: {StateEscalated},
	StateEscalated:    {StateAcknowledged, StateEscalated},
	StateSuppressed:   {},
}

// IsValid returns true if the state is a known value.
func (s State) IsValid() bool {
	switch s {
	case StateTriggered, StateAcknowledged, StateEscalated,
		StateResolved, StateSuppressed, StateExpired:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for Resolved and Expired.
func (s State) IsTerminal() bool {
	return s == StateResolved || s == StateExpired
}

// IsOpen returns true for states that absorb duplicates and can escalate.
func (s State) IsOpen() bool {
	return s == StateTriggered || s == StateAcknowledged || s == StateEscalated
}

// IsEscalatable returns true for states the escalation scan considers.
func (s State) IsEscalatable() bool {
	return s == StateTriggered || s == StateEscalated
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s State) CanTransitionTo(next State) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StateResolved || next == StateExpired {
		return true
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
