// Package memory provides an in-memory implementation of the queue interfaces.
// It backs the ingestion pipeline in memory storage mode and in tests.
package memory

import (
	"context"
	"log/slog"
	"sync"

	"vigil/internal/metrics"
	"vigil/internal/queue"
)

// Queue is an in-memory implementation of both Producer and Consumer.
// Messages flow through a buffered channel within one process.
type Queue struct {
	messages chan *queue.Message
	logger   *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewQueue creates a new in-memory queue with the specified buffer size.
// Publish blocks once the buffer is full until space frees up or the
// context is canceled.
func NewQueue(bufferSize int, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		messages: make(chan *queue.Message, bufferSize),
		logger:   logger.With("component", "memory-queue"),
	}
}

// Publish sends a message to the in-memory queue.
func (q *Queue) Publish(ctx context.Context, msg *queue.Message) error {
	// The read lock is held across the send so Close cannot close the
	// channel underneath a blocked publisher.
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.messages <- msg:
		metrics.QueueDepth.Set(float64(len(q.messages)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start consumes messages until the context is canceled or the queue is closed.
// Handler errors are logged and the message is dropped.
func (q *Queue) Start(ctx context.Context, handler queue.MessageHandler) error {
	q.wg.Add(1)
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-q.messages:
			if !ok {
				return nil
			}
			metrics.QueueDepth.Set(float64(len(q.messages)))
			if err := handler(ctx, msg); err != nil {
				q.logger.Warn("dropping message after handler error",
					"key", string(msg.Key),
					"error", err,
				)
			}
		}
	}
}

// Close shuts down the queue. Buffered messages are still delivered to a
// running consumer before Start returns.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.messages)
	q.mu.Unlock()

	q.wg.Wait()
	return nil
}

// Len returns the current number of buffered messages.
func (q *Queue) Len() int {
	return len(q.messages)
}
