package queue

import "errors"

var (
	// ErrQueueClosed is returned when operating on a closed queue
	ErrQueueClosed = errors.New("queue is closed")

	// ErrItemNotFound is returned when a dead-letter item does not exist
	ErrItemNotFound = errors.New("item not found")

	// ErrNoDeadLetterQueue is returned by dead-letter operations on a worker without one
	ErrNoDeadLetterQueue = errors.New("dead letter queue not configured")
)
