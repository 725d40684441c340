package queue

import (
	"context"
	"time"
)

// Package queue provides the asynchronous pipeline behind usage accounting,
// with two interchangeable backends:
//
// 1. Memory Queue (channel-based):
//    - No persistence, entries are lost on restart
//    - No external dependencies, used for local runs and tests
//
// 2. Redis Queue (Redis list-based):
//    - Survives restarts
//    - Several orchestrator processes can share one queue
//
//	┌─────────────┐
//	│  Processor  │ (one entry per provider attempt)
//	└──────┬──────┘
//	       ├─────────────────────────┐
//	       ▼                         ▼
//	┌──────────────┐         ┌──────────────┐
//	│ Usage Queue  │         │ Billing Queue│
//	└──────┬───────┘         └──────┬───────┘
//	       ▼                         ▼
//	┌──────────────┐         ┌──────────────┐
//	│ Usage Worker │         │Billing Worker│
//	└──────┬───────┘         └──────┬───────┘
//	       ▼                         ▼
//	 Postgres usage_log       Redis spend counters
//	 (+ S3 archive)
//
// Workers process batches, retry with exponential backoff and move items
// that keep failing to a dead-letter queue.

// Queue is a FIFO of items of type T.
type Queue[T any] interface {
	// Enqueue adds an item to the queue
	Enqueue(ctx context.Context, item T) error

	// Dequeue blocks until at least one item is available, then returns up to maxItems.
	Dequeue(ctx context.Context, maxItems int) ([]T, error)

	// DequeueWithTimeout returns an empty slice when nothing arrives before timeout.
	DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]T, error)

	// Length returns the current queue length
	Length(ctx context.Context) (int, error)

	Close() error
}

// DeadLetterQueue keeps items that could not be processed.
type DeadLetterQueue[T any] interface {
	Add(ctx context.Context, item T, err error) error
	List(ctx context.Context, maxItems int) ([]DeadLetterItem[T], error)
	Remove(ctx context.Context, id string) error
	Close() error
}

// DeadLetterItem is one failed item with its last error.
type DeadLetterItem[T any] struct {
	ID        string    `json:"id"`
	Item      T         `json:"item"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// Config holds queue and worker configuration
type Config struct {
	// BatchSize is the maximum number of items to process in a batch
	BatchSize int

	// BatchTimeout is how long to wait for the first item of a batch
	BatchTimeout time.Duration

	// MaxRetries is the maximum number of retry attempts per item
	MaxRetries int

	// RetryBackoff is the initial backoff duration for retries
	RetryBackoff time.Duration

	// QueueName is the name/key for the queue
	QueueName string
}

// DefaultConfig returns default queue configuration
func DefaultConfig(queueName string) *Config {
	return &Config{
		BatchSize:    100,
		BatchTimeout: 5 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 1 * time.Second,
		QueueName:    queueName,
	}
}
