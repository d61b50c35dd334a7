package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"vigil/internal/queue"
)

// QueueSender publishes notification intents for external transports to
// deliver, keyed by alert id so one alert's notifications stay ordered.
type QueueSender struct {
	producer queue.Producer
}

// NewQueueSender creates a sender over the given producer.
func NewQueueSender(producer queue.Producer) *QueueSender {
	return &QueueSender{producer: producer}
}

// Send publishes the message as JSON.
func (s *QueueSender) Send(ctx context.Context, msg *Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	err = s.producer.Publish(ctx, &queue.Message{
		Key:   []byte(msg.AlertID),
		Value: payload,
		Headers: map[string]string{
			queue.HeaderKind: "notification",
			"channel":        string(msg.Channel),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}
