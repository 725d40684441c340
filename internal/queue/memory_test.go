package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type testEntry struct {
	ID   int    `json:"id"`
	Note string `json:"note"`
}

func TestMemoryQueue_EnqueueDequeue(t *testing.T) {
	q := NewMemoryQueue[testEntry](DefaultConfig("test"))
	defer q.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := q.Enqueue(ctx, testEntry{ID: i}); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	length, err := q.Length(ctx)
	if err != nil {
		t.Fatalf("Length failed: %v", err)
	}
	if length != 5 {
		t.Errorf("Expected length 5, got %d", length)
	}

	items, err := q.Dequeue(ctx, 3)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("Expected 3 items, got %d", len(items))
	}
	for i, item := range items {
		if item.ID != i {
			t.Errorf("Expected item %d in FIFO order, got %d", i, item.ID)
		}
	}

	items, err = q.Dequeue(ctx, 10)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("Expected remaining 2 items, got %d", len(items))
	}
}

func TestMemoryQueue_DequeueWithTimeout(t *testing.T) {
	q := NewMemoryQueue[testEntry](DefaultConfig("test"))
	defer q.Close()

	start := time.Now()
	items, err := q.DequeueWithTimeout(context.Background(), 10, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("DequeueWithTimeout failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("Expected no items, got %d", len(items))
	}
	if time.Since(start) < 40*time.Millisecond {
		t.Errorf("DequeueWithTimeout returned before the timeout")
	}
}

func TestMemoryQueue_ContextCancellation(t *testing.T) {
	q := NewMemoryQueue[testEntry](DefaultConfig("test"))
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := q.Dequeue(ctx, 1); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestMemoryQueue_Closed(t *testing.T) {
	q := NewMemoryQueue[testEntry](DefaultConfig("test"))
	q.Close()

	if err := q.Enqueue(context.Background(), testEntry{}); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Expected ErrQueueClosed, got %v", err)
	}
	if _, err := q.Length(context.Background()); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Expected ErrQueueClosed, got %v", err)
	}
	if err := q.Close(); err != nil {
		t.Errorf("Second Close should be a no-op, got %v", err)
	}
}

func TestMemoryQueue_ConcurrentProducers(t *testing.T) {
	config := DefaultConfig("test")
	q := NewMemoryQueue[testEntry](config)
	defer q.Close()

	ctx := context.Background()
	var wg sync.WaitGroup
	for p := 0; p < 10; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				if err := q.Enqueue(ctx, testEntry{ID: p*100 + i}); err != nil {
					t.Errorf("Enqueue failed: %v", err)
				}
			}
		}(p)
	}
	wg.Wait()

	seen := map[int]bool{}
	for len(seen) < 200 {
		items, err := q.DequeueWithTimeout(ctx, 50, 100*time.Millisecond)
		if err != nil {
			t.Fatalf("Dequeue failed: %v", err)
		}
		if len(items) == 0 {
			break
		}
		for _, item := range items {
			if seen[item.ID] {
				t.Errorf("Item %d delivered twice", item.ID)
			}
			seen[item.ID] = true
		}
	}
	if len(seen) != 200 {
		t.Errorf("Expected 200 items, got %d", len(seen))
	}
}

func TestMemoryDeadLetterQueue(t *testing.T) {
	dlq := NewMemoryDeadLetterQueue[testEntry]()
	defer dlq.Close()

	ctx := context.Background()
	if err := dlq.Add(ctx, testEntry{ID: 1}, errors.New("db down")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := dlq.Add(ctx, testEntry{ID: 2}, errors.New("db down")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	items, err := dlq.List(ctx, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}
	if items[0].ID == items[1].ID {
		t.Errorf("Dead letter ids must be unique")
	}
	if items[0].Error != "db down" || items[0].Item.ID != 1 {
		t.Errorf("Unexpected first item: %+v", items[0])
	}

	if err := dlq.Remove(ctx, items[0].ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := dlq.Remove(ctx, "missing"); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("Expected ErrItemNotFound, got %v", err)
	}

	limited, _ := dlq.List(ctx, 5)
	if len(limited) != 1 {
		t.Errorf("Expected 1 item after removal, got %d", len(limited))
	}
}
