// Package kafka provides Kafka-based implementations of the queue interfaces.
package kafka

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/segmentio/kafka-go"

	"vigil/internal/config"
	"vigil/internal/metrics"
	"vigil/internal/queue"
)

// messageWriter is the part of *kafka.Writer the producer drives.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer implements queue.Producer for one Kafka topic.
type Producer struct {
	writer messageWriter
	topic  string
}

// NewProducer creates a producer for the ingestion topic.
func NewProducer(cfg *config.KafkaConfig) *Producer {
	return NewTopicProducer(cfg.Brokers, cfg.Topic)
}

// NewNotificationProducer creates a producer for the notification intent topic.
func NewNotificationProducer(cfg *config.KafkaConfig) *Producer {
	return NewTopicProducer(cfg.Brokers, cfg.NotificationTopic)
}

// NewTopicProducer creates a producer writing to the given topic. Messages
// are hashed by key so events for one metric or fingerprint share a partition.
func NewTopicProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}

	return &Producer{writer: writer, topic: topic}
}

// Publish writes one message and records the write latency.
func (p *Producer) Publish(ctx context.Context, msg *queue.Message) error {
	start := time.Now()

	if err := p.writer.WriteMessages(ctx, toKafkaMessage(msg)); err != nil {
		return fmt.Errorf("failed to write message to kafka topic %s: %w", p.topic, err)
	}

	metrics.QueuePublishLatency.Observe(time.Since(start).Seconds())
	return nil
}

// toKafkaMessage copies key, value and headers. Headers are sorted by name
// so the record layout does not depend on map order.
func toKafkaMessage(msg *queue.Message) kafka.Message {
	out := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
	}
	if len(msg.Headers) == 0 {
		return out
	}

	names := make([]string, 0, len(msg.Headers))
	for k := range msg.Headers {
		names = append(names, k)
	}
	sort.Strings(names)

	out.Headers = make([]kafka.Header, 0, len(names))
	for _, k := range names {
		out.Headers = append(out.Headers, kafka.Header{Key: k, Value: []byte(msg.Headers[k])})
	}
	return out
}

// Close flushes pending writes and closes the writer.
func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}
