package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue implements Queue using a buffered channel
type MemoryQueue[T any] struct {
	items  chan T
	mu     sync.RWMutex
	closed bool
}

// NewMemoryQueue creates an in-memory queue buffering ten batches.
func NewMemoryQueue[T any](config *Config) *MemoryQueue[T] {
	if config == nil {
		config = DefaultConfig("memory")
	}
	return &MemoryQueue[T]{
		items: make(chan T, config.BatchSize*10),
	}
}

func (q *MemoryQueue[T]) Enqueue(ctx context.Context, item T) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.items <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue[T]) Dequeue(ctx context.Context, maxItems int) ([]T, error) {
	first, ok, err := q.first(ctx, nil)
	if err != nil || !ok {
		return nil, err
	}
	return q.drain(first, maxItems), nil
}

func (q *MemoryQueue[T]) DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]T, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	first, ok, err := q.first(ctx, timer.C)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []T{}, nil
	}
	return q.drain(first, maxItems), nil
}

// first waits for one item. ok is false when the deadline fired.
func (q *MemoryQueue[T]) first(ctx context.Context, deadline <-chan time.Time) (item T, ok bool, err error) {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return item, false, ErrQueueClosed
	}

	select {
	case v, open := <-q.items:
		if !open {
			return item, false, ErrQueueClosed
		}
		return v, true, nil
	case <-deadline:
		return item, false, nil
	case <-ctx.Done():
		return item, false, ctx.Err()
	}
}

// drain takes more items without blocking.
func (q *MemoryQueue[T]) drain(first T, maxItems int) []T {
	items := []T{first}
	for len(items) < maxItems {
		select {
		case v, open := <-q.items:
			if !open {
				return items
			}
			items = append(items, v)
		default:
			return items
		}
	}
	return items
}

func (q *MemoryQueue[T]) Length(ctx context.Context) (int, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return 0, ErrQueueClosed
	}
	return len(q.items), nil
}

func (q *MemoryQueue[T]) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.items)
	return nil
}

// MemoryDeadLetterQueue implements DeadLetterQueue in memory
type MemoryDeadLetterQueue[T any] struct {
	items  []DeadLetterItem[T]
	mu     sync.RWMutex
	closed bool
}

func NewMemoryDeadLetterQueue[T any]() *MemoryDeadLetterQueue[T] {
	return &MemoryDeadLetterQueue[T]{}
}

func (q *MemoryDeadLetterQueue[T]) Add(ctx context.Context, item T, err error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.items = append(q.items, newDeadLetterItem(item, err))
	return nil
}

// List returns the oldest maxItems entries; maxItems <= 0 returns all.
func (q *MemoryDeadLetterQueue[T]) List(ctx context.Context, maxItems int) ([]DeadLetterItem[T], error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return nil, ErrQueueClosed
	}

	if maxItems <= 0 || maxItems > len(q.items) {
		maxItems = len(q.items)
	}
	result := make([]DeadLetterItem[T], maxItems)
	copy(result, q.items[:maxItems])
	return result, nil
}

func (q *MemoryDeadLetterQueue[T]) Remove(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	for i, item := range q.items {
		if item.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return nil
		}
	}
	return ErrItemNotFound
}

func (q *MemoryDeadLetterQueue[T]) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.items = nil
	return nil
}

func newDeadLetterItem[T any](item T, err error) DeadLetterItem[T] {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return DeadLetterItem[T]{
		ID:        uuid.NewString(),
		Item:      item,
		Error:     msg,
		Timestamp: time.Now().UTC(),
	}
}
