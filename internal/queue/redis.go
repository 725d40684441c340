package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue implements Queue on a Redis list. Items are stored as JSON.
type RedisQueue[T any] struct {
	client *redis.Client
	qKey   string
}

// NewRedisQueue creates a queue on an existing client. The client is shared
// and is not closed by the queue.
func NewRedisQueue[T any](client *redis.Client, config *Config) (*RedisQueue[T], error) {
	if client == nil || config == nil {
		return nil, fmt.Errorf("redis client and config are required")
	}
	return &RedisQueue[T]{
		client: client,
		qKey:   fmt.Sprintf("queue:%s", config.QueueName),
	}, nil
}

func (q *RedisQueue[T]) Enqueue(ctx context.Context, item T) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}

	if err := q.client.RPush(ctx, q.qKey, data).Err(); err != nil {
		return fmt.Errorf("failed to push to Redis: %w", err)
	}
	return nil
}

func (q *RedisQueue[T]) Dequeue(ctx context.Context, maxItems int) ([]T, error) {
	return q.pop(ctx, maxItems, 0)
}

func (q *RedisQueue[T]) DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]T, error) {
	return q.pop(ctx, maxItems, timeout)
}

// pop blocks for the first item (timeout 0 blocks indefinitely) and then
// takes more without blocking.
func (q *RedisQueue[T]) pop(ctx context.Context, maxItems int, timeout time.Duration) ([]T, error) {
	result, err := q.client.BLPop(ctx, timeout, q.qKey).Result()
	if errors.Is(err, redis.Nil) {
		return []T{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pop from Redis: %w", err)
	}

	// result[0] is the key, result[1] is the value
	raw := []string{result[1]}
	for len(raw) < maxItems {
		v, err := q.client.LPop(ctx, q.qKey).Result()
		if err != nil {
			// redis.Nil means the list is empty; other errors return what we have
			break
		}
		raw = append(raw, v)
	}

	items := make([]T, 0, len(raw))
	for _, r := range raw {
		var item T
		if err := json.Unmarshal([]byte(r), &item); err != nil {
			return items, fmt.Errorf("failed to decode queue item: %w", err)
		}
		items = append(items, item)
	}
	return items, nil
}

func (q *RedisQueue[T]) Length(ctx context.Context) (int, error) {
	length, err := q.client.LLen(ctx, q.qKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue length: %w", err)
	}
	return int(length), nil
}

// Close is a no-op: the client belongs to the caller.
func (q *RedisQueue[T]) Close() error {
	return nil
}

// RedisDeadLetterQueue implements DeadLetterQueue on a Redis hash
type RedisDeadLetterQueue[T any] struct {
	client *redis.Client
	dlKey  string
}

func NewRedisDeadLetterQueue[T any](client *redis.Client, config *Config) (*RedisDeadLetterQueue[T], error) {
	if client == nil || config == nil {
		return nil, fmt.Errorf("redis client and config are required")
	}
	return &RedisDeadLetterQueue[T]{
		client: client,
		dlKey:  fmt.Sprintf("dlq:%s", config.QueueName),
	}, nil
}

func (q *RedisDeadLetterQueue[T]) Add(ctx context.Context, item T, err error) error {
	dlItem := newDeadLetterItem(item, err)

	data, marshalErr := json.Marshal(dlItem)
	if marshalErr != nil {
		return fmt.Errorf("failed to marshal dead letter item: %w", marshalErr)
	}

	if err := q.client.HSet(ctx, q.dlKey, dlItem.ID, data).Err(); err != nil {
		return fmt.Errorf("failed to add to dead letter queue: %w", err)
	}
	return nil
}

// List returns the oldest maxItems entries; maxItems <= 0 returns all.
func (q *RedisDeadLetterQueue[T]) List(ctx context.Context, maxItems int) ([]DeadLetterItem[T], error) {
	results, err := q.client.HGetAll(ctx, q.dlKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letter items: %w", err)
	}

	items := make([]DeadLetterItem[T], 0, len(results))
	for _, data := range results {
		var dlItem DeadLetterItem[T]
		if err := json.Unmarshal([]byte(data), &dlItem); err != nil {
			continue // Skip malformed items
		}
		items = append(items, dlItem)
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Timestamp.Before(items[j].Timestamp) })
	if maxItems > 0 && len(items) > maxItems {
		items = items[:maxItems]
	}
	return items, nil
}

func (q *RedisDeadLetterQueue[T]) Remove(ctx context.Context, id string) error {
	n, err := q.client.HDel(ctx, q.dlKey, id).Result()
	if err != nil {
		return fmt.Errorf("failed to remove from dead letter queue: %w", err)
	}
	if n == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (q *RedisDeadLetterQueue[T]) Close() error {
	return nil
}

// Connect opens a Redis client and verifies it with a ping.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}
