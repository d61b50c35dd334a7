package notification

import (
	"context"
	"log/slog"
)

// LogSender writes each notification as a structured log line. It stands in
// for real transports in development and memory mode.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a new log sender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{
		logger: logger.With("component", "log-sender"),
	}
}

// Send logs the message. It fails only when ctx is already done.
func (s *LogSender) Send(ctx context.Context, msg *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.logger.Info("notification",
		"notificationID", msg.NotificationID,
		"alertID", msg.AlertID,
		"channel", msg.Channel,
		"target", msg.Target,
		"subject", msg.Subject,
		"severity", msg.Severity.String(),
		"escalationLevel", msg.EscalationLevel,
		"attempt", msg.Attempt,
	)
	return nil
}
