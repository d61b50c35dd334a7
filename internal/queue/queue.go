// Package queue defines the transport between ingestion and processing.
// Metric samples and raised alerts are published by the ingest service and
// consumed by the processor; notification intents can be published to a
// second topic for external transports. Implementations are swappable
// (in-memory channel, Kafka) without changing business logic.
package queue

import (
	"context"
)

// Header names set on published messages.
const (
	// HeaderKind carries the event kind ("metric", "alert" or "notification").
	HeaderKind = "kind"
)

// Message represents a message in the queue.
type Message struct {
	// Key is the partition key. Metric samples are keyed by metric name
	// and alerts by fingerprint, so events about one condition stay ordered.
	Key []byte

	// Value is the JSON payload.
	Value []byte

	// Headers contains optional metadata.
	Headers map[string]string
}

// Producer publishes messages. Implementations must be safe for concurrent use.
type Producer interface {
	// Publish sends a message to the queue.
	Publish(ctx context.Context, msg *Message) error

	// Close releases any resources held by the producer.
	Close() error
}

// MessageHandler processes one consumed message. A returned error leaves
// the message uncommitted where the implementation supports it.
type MessageHandler func(ctx context.Context, msg *Message) error

// Consumer delivers messages to a handler.
type Consumer interface {
	// Start blocks, calling handler for each message, until the context is
	// canceled or the consumer is closed.
	Start(ctx context.Context, handler MessageHandler) error

	// Close stops consuming and releases any resources.
	Close() error
}
