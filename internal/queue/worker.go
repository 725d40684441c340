package queue

import (
	"context"
	"fmt"
	"time"

	"ai_orchestrator/internal/utils"
)

// ItemFunc processes one item. It is retried with exponential backoff.
type ItemFunc[T any] func(ctx context.Context, item T) error

// BatchFunc processes a whole batch at once. When it fails the worker falls
// back to ItemFunc for every item of the batch.
type BatchFunc[T any] func(ctx context.Context, items []T) error

// Worker drains a queue in batches.
type Worker[T any] struct {
	name        string
	queue       Queue[T]
	dlq         DeadLetterQueue[T]
	config      *Config
	processItem ItemFunc[T]
	processAll  BatchFunc[T]
	logger      *utils.Logger
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewWorker creates a worker. batch may be nil, in which case every item
// goes through item directly.
func NewWorker[T any](name string, q Queue[T], dlq DeadLetterQueue[T], config *Config, item ItemFunc[T], batch BatchFunc[T]) *Worker[T] {
	if config == nil {
		config = DefaultConfig(name)
	}
	return &Worker[T]{
		name:        name,
		queue:       q,
		dlq:         dlq,
		config:      config,
		processItem: item,
		processAll:  batch,
		logger:      utils.NewLogger(name + "-worker"),
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

// Start starts the worker goroutine
func (w *Worker[T]) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop signals the worker and waits for the current batch to finish.
func (w *Worker[T]) Stop() error {
	close(w.stopChan)
	<-w.stoppedChan
	return nil
}

// Enqueue adds an item to the worker's queue
func (w *Worker[T]) Enqueue(ctx context.Context, item T) error {
	return w.queue.Enqueue(ctx, item)
}

func (w *Worker[T]) run(ctx context.Context) {
	defer close(w.stoppedChan)

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Worker stopping")
			return
		case <-ctx.Done():
			w.logger.Info("Worker context cancelled")
			return
		default:
			w.processBatch(ctx)
		}
	}
}

func (w *Worker[T]) processBatch(ctx context.Context) {
	items, err := w.queue.DequeueWithTimeout(ctx, w.config.BatchSize, w.config.BatchTimeout)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.logger.Error("Failed to dequeue", "error", err)
		w.sleep(ctx, time.Second) // Back off on error
		return
	}
	if len(items) == 0 {
		return
	}

	w.logger.Debug("Processing batch", "count", len(items))

	if w.processAll != nil {
		err := w.processAll(ctx, items)
		if err == nil {
			return
		}
		w.logger.Error("Batch failed, falling back to individual items", "error", err)
	}

	for _, item := range items {
		if err := w.retryItem(ctx, item); err != nil {
			w.logger.Error("Failed to process item", "error", err)
		}
	}
}

// retryItem processes one item with retries, then moves it to the DLQ.
func (w *Worker[T]) retryItem(ctx context.Context, item T) error {
	var lastErr error
	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := w.config.RetryBackoff * time.Duration(1<<uint(attempt-1))
			w.logger.Debug("Retrying item", "attempt", attempt, "backoff", backoff)
			if !w.sleep(ctx, backoff) {
				lastErr = ctx.Err()
				break
			}
		}

		if err := w.processItem(ctx, item); err != nil {
			lastErr = err
			w.logger.Warn("Item attempt failed", "attempt", attempt, "error", err)
			continue
		}
		return nil
	}

	if w.dlq != nil {
		// ctx may already be cancelled during shutdown
		if err := w.dlq.Add(context.WithoutCancel(ctx), item, lastErr); err != nil {
			w.logger.Error("Failed to add to dead letter queue", "error", err)
		} else {
			w.logger.Warn("Item moved to DLQ", "error", lastErr)
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// sleep waits for d and reports false when ctx or the worker stopped first.
func (w *Worker[T]) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	case <-w.stopChan:
		return false
	}
}

// QueueLength returns the number of pending items
func (w *Worker[T]) QueueLength(ctx context.Context) (int, error) {
	return w.queue.Length(ctx)
}

// DeadLetterItems lists failed items
func (w *Worker[T]) DeadLetterItems(ctx context.Context, maxItems int) ([]DeadLetterItem[T], error) {
	if w.dlq == nil {
		return nil, ErrNoDeadLetterQueue
	}
	return w.dlq.List(ctx, maxItems)
}

// RetryDeadLetterItem re-enqueues a failed item and removes it from the DLQ.
func (w *Worker[T]) RetryDeadLetterItem(ctx context.Context, id string) error {
	if w.dlq == nil {
		return ErrNoDeadLetterQueue
	}

	items, err := w.dlq.List(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to list dead letter items: %w", err)
	}

	for _, dlItem := range items {
		if dlItem.ID != id {
			continue
		}
		if err := w.queue.Enqueue(ctx, dlItem.Item); err != nil {
			return fmt.Errorf("failed to re-enqueue item: %w", err)
		}
		if err := w.dlq.Remove(ctx, id); err != nil {
			return fmt.Errorf("failed to remove from DLQ: %w", err)
		}
		return nil
	}

	return ErrItemNotFound
}
