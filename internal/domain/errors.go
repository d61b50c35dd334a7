package domain

import "errors"

// Lookup errors.
var (
	ErrAlertNotFound  = errors.New("alert not found")
	ErrRuleNotFound   = errors.New("suppression rule not found")
	ErrPolicyNotFound = errors.New("escalation policy not found")
)

// Validation and configuration errors.
var (
	// ErrInvalidConfig marks configuration that cannot be loaded: bad
	// escalation policies, bad suppression rules, inconsistent windows.
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrInvalidSeverity   = errors.New("severity must be one of critical, high, medium, low, info")
	ErrInvalidTransition = errors.New("invalid alert state transition")
	ErrEmptyTitle        = errors.New("title is required")
	ErrEmptyFingerprint  = errors.New("correlation_key.fingerprint is required")
	ErrEmptyMetricName   = errors.New("metric_name is required")
	ErrInvalidMetric     = errors.New("value must be a finite number")
	ErrInvalidEventKind  = errors.New("kind must be 'metric' or 'alert'")
)
