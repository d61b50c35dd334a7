package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"vigil/internal/queue"
)

func TestQueue_PublishAndConsume(t *testing.T) {
	q := NewQueue(10, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu   sync.Mutex
		keys []string
		done = make(chan struct{})
	)
	go func() {
		_ = q.Start(ctx, func(_ context.Context, msg *queue.Message) error {
			mu.Lock()
			keys = append(keys, string(msg.Key))
			n := len(keys)
			mu.Unlock()
			if n == 3 {
				close(done)
			}
			return nil
		})
	}()

	for _, k := range []string{"a", "b", "c"} {
		if err := q.Publish(ctx, &queue.Message{Key: []byte(k)}); err != nil {
			t.Fatalf("Publish error: %v", err)
		}
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for messages")
	}

	mu.Lock()
	defer mu.Unlock()
	if keys[0] != "a" || keys[1] != "b" || keys[2] != "c" {
		t.Errorf("keys = %v, want [a b c]", keys)
	}
}

func TestQueue_HandlerErrorDoesNotStopConsumer(t *testing.T) {
	q := NewQueue(10, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = q.Start(ctx, func(_ context.Context, msg *queue.Message) error {
			if string(msg.Key) == "bad" {
				return errors.New("boom")
			}
			close(done)
			return nil
		})
	}()

	_ = q.Publish(ctx, &queue.Message{Key: []byte("bad")})
	_ = q.Publish(ctx, &queue.Message{Key: []byte("good")})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer stopped after a handler error")
	}
}

func TestQueue_Close(t *testing.T) {
	q := NewQueue(1, nil)
	ctx := context.Background()

	if err := q.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Errorf("second Close error: %v", err)
	}
	if err := q.Publish(ctx, &queue.Message{}); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Publish after Close = %v, want ErrQueueClosed", err)
	}
	if err := q.Start(ctx, func(context.Context, *queue.Message) error { return nil }); err != nil {
		t.Errorf("Start on a closed queue = %v, want nil", err)
	}
}

func TestQueue_PublishRespectsContext(t *testing.T) {
	q := NewQueue(1, nil)
	_ = q.Publish(context.Background(), &queue.Message{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := q.Publish(ctx, &queue.Message{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Publish on a full queue = %v, want DeadlineExceeded", err)
	}
	if q.Len() != 1 {
		t.Errorf("Len() = %d, want 1", q.Len())
	}
}
