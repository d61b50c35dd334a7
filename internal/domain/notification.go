package domain

import "time"

// DeliveryStatus is the outcome of one notification attempt.
type DeliveryStatus string

const (
	DeliverySent     DeliveryStatus = "sent"
	DeliveryRetrying DeliveryStatus = "retrying"
	DeliveryFailed   DeliveryStatus = "failed"
)

// NotificationStatus records one delivery attempt for an (alert, channel, target).
type NotificationStatus struct {
	NotificationID string              `json:"notification_id"`
	AlertID        string              `json:"alert_id"`
	Channel        NotificationChannel `json:"channel"`
	Target         string              `json:"target"`
	Status         DeliveryStatus      `json:"status"`
	Attempt        int                 `json:"attempt"`
	EscalationLvl  int                 `json:"escalation_level"`
	SentAt         *time.Time          `json:"sent_at,omitempty"`
	Error          string              `json:"error,omitempty"`
	RecordedAt     time.Time           `json:"recorded_at"`
}

// NotificationTemplate renders subject and body for a channel.
type NotificationTemplate struct {
	Channel         NotificationChannel `json:"channel" yaml:"channel"`
	SubjectTemplate string              `json:"subject_template" yaml:"subject_template"`
	BodyTemplate    string              `json:"body_template" yaml:"body_template"`
	Format          string              `json:"format" yaml:"format"` // json, markdown, html, plain
}

// DefaultNotificationTemplate is used for channels without their own template.
func DefaultNotificationTemplate() NotificationTemplate {
	return NotificationTemplate{
		Channel:         ChannelEmail,
		SubjectTemplate: "Alert: {{title}}",
		BodyTemplate:    "{{description}}\n\nSeverity: {{severity}}\nValue: {{metric_value}}\nThreshold: {{threshold}}",
		Format:          "plain",
	}
}
