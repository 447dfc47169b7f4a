// Package queue provides the bounded in-memory queues that sit in front of
// every worker pool.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/okian/cachegate/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 1024
	defaultQueueName     = "default"
)

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue[T any] interface {
	// Enqueue adds a message to the queue.
	// Returns false if the queue is full or closed and the message was dropped.
	Enqueue(ctx context.Context, m T) bool

	// Dequeue returns a channel that will receive messages as they become
	// available. The channel is closed when the queue is closed.
	Dequeue(ctx context.Context) <-chan T

	// Len returns the current number of queued messages.
	Len(ctx context.Context) int

	// Close stops accepting messages. Queued messages are still delivered.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue[T any] struct {
	messages chan T
	capacity int
	name     string
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue[T any](opts ...Option) *InMemoryQueue[T] {
	s := settings{capacity: defaultQueueCapacity, name: defaultQueueName}
	for _, opt := range opts {
		opt(&s)
	}

	q := &InMemoryQueue[T]{
		messages: make(chan T, s.capacity),
		capacity: s.capacity,
		name:     s.name,
	}

	metrics.UpdateQueueCapacity(q.name, q.capacity)
	metrics.UpdateQueueSize(q.name, 0)
	return q
}

// Name returns the label the queue reports metrics under.
func (q *InMemoryQueue[T]) Name() string { return q.name }

// Capacity returns the maximum number of queued messages.
func (q *InMemoryQueue[T]) Capacity() int { return q.capacity }

// Enqueue adds a message without blocking.
func (q *InMemoryQueue[T]) Enqueue(ctx context.Context, m T) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueRejected(q.name, "closed")
		return false
	}
	if ctx.Err() != nil {
		metrics.RecordQueueRejected(q.name, "context_cancelled")
		return false
	}

	select {
	case q.messages <- m:
		metrics.RecordQueueEnqueue(q.name)
		metrics.UpdateQueueSize(q.name, len(q.messages))
		return true
	default:
		metrics.RecordQueueRejected(q.name, "queue_full")
		metrics.RecordErrorByComponent("queue", "queue_full")
		return false
	}
}

// Dequeue returns a channel that will receive messages as they become available.
func (q *InMemoryQueue[T]) Dequeue(ctx context.Context) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for m := range q.messages {
			select {
			case out <- m:
				metrics.UpdateQueueSize(q.name, len(q.messages))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued messages.
func (q *InMemoryQueue[T]) Len(_ context.Context) int {
	size := len(q.messages)
	metrics.UpdateQueueSize(q.name, size)
	return size
}

// Close gracefully shuts down the queue.
func (q *InMemoryQueue[T]) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.messages)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue[T]) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

// WaitEmpty blocks until the queue drains or ctx is done.
func (q *InMemoryQueue[T]) WaitEmpty(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for len(q.messages) > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
