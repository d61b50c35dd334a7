package domain

import (
	"fmt"
	"time"
)

// NotificationChannel is a delivery medium for notifications.
type NotificationChannel string

const (
	ChannelEmail     NotificationChannel = "email"
	ChannelSlack     NotificationChannel = "slack"
	ChannelWebhook   NotificationChannel = "webhook"
	ChannelSMS       NotificationChannel = "sms"
	ChannelPagerDuty NotificationChannel = "pagerduty"
	ChannelTeams     NotificationChannel = "teams"
)

// AllChannels lists every supported channel.
var AllChannels = []NotificationChannel{
	ChannelEmail, ChannelSlack, ChannelWebhook, ChannelSMS, ChannelPagerDuty, ChannelTeams,
}

// IsValid returns true if the channel is a known value.
func (c NotificationChannel) IsValid() bool {
	for _, known := range AllChannels {
		if c == known {
			return true
		}
	}
	return false
}

// EscalationLevel is one step of an escalation policy.
type EscalationLevel struct {
	Level    int                   `json:"level" yaml:"level"`
	Timeout  time.Duration         `json:"timeout" yaml:"timeout"`
	Channels []NotificationChannel `json:"channels" yaml:"channels"`
	Targets  []string              `json:"targets" yaml:"targets"`
}

// EscalationPolicy defines how unacknowledged alerts escalate over time.
type EscalationPolicy struct {
	ID     string            `json:"id" yaml:"id"`
	Name   string            `json:"name" yaml:"name"`
	Levels []EscalationLevel `json:"levels" yaml:"levels"`

	// RepeatFinalLevel re-notifies the last reachable level every
	// RepeatInterval once escalation can go no further.
	RepeatFinalLevel bool          `json:"repeat_final_level" yaml:"repeat_final_level"`
	RepeatInterval   time.Duration `json:"repeat_interval" yaml:"repeat_interval"`

	// MaxEscalations caps how many times an alert may escalate.
	MaxEscalations int `json:"max_escalations" yaml:"max_escalations"`
}

// Validate checks that the policy can drive escalation.
func (p *EscalationPolicy) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: escalation policy id is required", ErrInvalidConfig)
	}
	if len(p.Levels) == 0 {
		return fmt.Errorf("%w: escalation policy %q has no levels", ErrInvalidConfig, p.ID)
	}
	if p.MaxEscalations < 0 {
		return fmt.Errorf("%w: escalation policy %q has negative max_escalations", ErrInvalidConfig, p.ID)
	}
	if p.RepeatFinalLevel && p.RepeatInterval <= 0 {
		return fmt.Errorf("%w: escalation policy %q repeats without a repeat_interval", ErrInvalidConfig, p.ID)
	}
	for i, lvl := range p.Levels {
		if lvl.Timeout <= 0 {
			return fmt.Errorf("%w: escalation policy %q level %d needs a positive timeout", ErrInvalidConfig, p.ID, i)
		}
		for _, ch := range lvl.Channels {
			if !ch.IsValid() {
				return fmt.Errorf("%w: escalation policy %q level %d has unknown channel %q", ErrInvalidConfig, p.ID, i, ch)
			}
		}
	}
	return nil
}

// Level returns the level at index i.
func (p *EscalationPolicy) Level(i int) (EscalationLevel, bool) {
	if i < 0 || i >= len(p.Levels) {
		return EscalationLevel{}, false
	}
	return p.Levels[i], true
}

// MaxLevel is the highest level index an alert may reach: the smaller of the
// last level index and MaxEscalations.
func (p *EscalationPolicy) MaxLevel() int {
	last := len(p.Levels) - 1
	if p.MaxEscalations < last {
		return p.MaxEscalations
	}
	return last
}

// CanAdvance reports whether an alert at the given level may escalate further.
func (p *EscalationPolicy) CanAdvance(level int) bool {
	return level+1 <= p.MaxLevel()
}

// Clone returns a deep copy that shares no slices with p.
func (p *EscalationPolicy) Clone() *EscalationPolicy {
	c := *p
	c.Levels = make([]EscalationLevel, len(p.Levels))
	for i, lvl := range p.Levels {
		lvl.Channels = append([]NotificationChannel(nil), lvl.Channels...)
		lvl.Targets = append([]string(nil), lvl.Targets...)
		c.Levels[i] = lvl
	}
	return &c
}

// DefaultEscalationPolicy is installed when configuration defines none.
func DefaultEscalationPolicy() EscalationPolicy {
	return EscalationPolicy{
		ID:   "default",
		Name: "Default Escalation Policy",
		Levels: []EscalationLevel{
			{
				Level:    0,
				Timeout:  5 * time.Minute,
				Channels: []NotificationChannel{ChannelEmail},
				Targets:  []string{"oncall@example.com"},
			},
			{
				Level:    1,
				Timeout:  15 * time.Minute,
				Channels: []NotificationChannel{ChannelSlack},
				Targets:  []string{"#alerts"},
			},
		},
		RepeatInterval: 30 * time.Minute,
		MaxEscalations: 3,
	}
}
