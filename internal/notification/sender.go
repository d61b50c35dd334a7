package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"vigil/internal/config"
	"vigil/internal/domain"
	"vigil/internal/queue"
)

// Message is one rendered notification for a single channel and target.
type Message struct {
	NotificationID  string                     `json:"notification_id"`
	AlertID         string                     `json:"alert_id"`
	Channel         domain.NotificationChannel `json:"channel"`
	Target          string                     `json:"target"`
	Subject         string                     `json:"subject"`
	Body            string                     `json:"body"`
	Format          string                     `json:"format"`
	Severity        domain.Severity            `json:"severity"`
	State           domain.State               `json:"state"`
	EscalationLevel int                        `json:"escalation_level"`
	CorrelationKey  domain.CorrelationKey      `json:"correlation_key"`
	RunbookURL      string                     `json:"runbook_url,omitempty"`
	DashboardURL    string                     `json:"dashboard_url,omitempty"`
	Attempt         int                        `json:"attempt"`
	CreatedAt       time.Time                  `json:"created_at"`
}

// Sender delivers messages over one transport. Implementations must honor
// context cancellation and be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, msg *Message) error

// Send calls f(ctx, msg).
func (f SenderFunc) Send(ctx context.Context, msg *Message) error {
	return f(ctx, msg)
}

// NewSenders builds one sender per channel from configuration. The producer
// is only required when a channel routes to the queue.
func NewSenders(cfg config.NotificationConfig, producer queue.Producer, logger *slog.Logger) (map[domain.NotificationChannel]Sender, error) {
	logSender := NewLogSender(logger)
	var webhook *WebhookSender

	senders := make(map[domain.NotificationChannel]Sender, len(domain.AllChannels))
	for _, ch := range domain.AllChannels {
		switch kind := cfg.SenderFor(ch); kind {
		case config.SenderLog:
			senders[ch] = logSender
		case config.SenderWebhook:
			if webhook == nil {
				webhook = NewWebhookSender(cfg.Webhook)
			}
			senders[ch] = webhook
		case config.SenderQueue:
			if producer == nil {
				return nil, fmt.Errorf("channel %s routes to the queue but no producer is configured", ch)
			}
			senders[ch] = NewQueueSender(producer)
		default:
			return nil, fmt.Errorf("channel %s has unknown sender %q", ch, kind)
		}
	}
	return senders, nil
}
