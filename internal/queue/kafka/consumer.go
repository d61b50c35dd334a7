package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"vigil/internal/config"
	"vigil/internal/metrics"
	"vigil/internal/queue"
)

// fetchRetryDelay is the pause after a failed fetch before trying again.
const fetchRetryDelay = time.Second

// messageReader is the part of *kafka.Reader the consumer drives.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer implements queue.Consumer on a Kafka consumer group. Offsets are
// committed only after the handler accepts a message.
type Consumer struct {
	reader messageReader
	topic  string
	group  string
	logger *slog.Logger
}

// NewConsumer creates a consumer for the ingestion topic.
func NewConsumer(cfg *config.KafkaConfig, logger *slog.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.ConsumerGroup,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})

	return newConsumer(reader, cfg.Topic, cfg.ConsumerGroup, logger)
}

func newConsumer(reader messageReader, topic, group string, logger *slog.Logger) *Consumer {
	return &Consumer{
		reader: reader,
		topic:  topic,
		group:  group,
		logger: logger.With("component", "kafka-consumer", "topic", topic),
	}
}

// Start fetches messages and hands each to the handler until the context
// is canceled or the reader is closed. A handler error stops the consumer
// with the message uncommitted, so the group redelivers it to the next
// member that joins.
func (c *Consumer) Start(ctx context.Context, handler queue.MessageHandler) error {
	c.logger.Info("starting kafka consumer", "group", c.group)

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return ctx.Err()
			case errors.Is(err, io.EOF):
				c.logger.Info("kafka reader closed")
				return nil
			}

			c.logger.Error("failed to fetch message", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(fetchRetryDelay):
			}
			continue
		}

		if msg.HighWaterMark > 0 {
			metrics.QueueDepth.Set(float64(msg.HighWaterMark - msg.Offset - 1))
		}

		if err := handler(ctx, toQueueMessage(msg)); err != nil {
			c.logger.Error("handler rejected message, stopping without commit",
				"error", err,
				"key", string(msg.Key),
				"partition", msg.Partition,
				"offset", msg.Offset,
			)
			return fmt.Errorf("message at partition %d offset %d: %w", msg.Partition, msg.Offset, err)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("failed to commit message",
				"error", err,
				"partition", msg.Partition,
				"offset", msg.Offset,
			)
			return fmt.Errorf("failed to commit message: %w", err)
		}
	}
}

func toQueueMessage(msg kafka.Message) *queue.Message {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return &queue.Message{
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	}
}

// Close closes the Kafka reader.
func (c *Consumer) Close() error {
	if c.reader != nil {
		return c.reader.Close()
	}
	return nil
}
