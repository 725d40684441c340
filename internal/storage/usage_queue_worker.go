package storage

import (
	"context"

	"ai_orchestrator/internal/models"
	"ai_orchestrator/internal/queue"
	"ai_orchestrator/internal/utils"
)

// UsageStore is the part of UsageRepository the worker needs
type UsageStore interface {
	Create(ctx context.Context, entry *models.UsageEntry) error
	CreateBatch(ctx context.Context, entries []models.UsageEntry) error
}

// UsageArchiver receives every batch after it has been persisted
type UsageArchiver interface {
	ArchiveUsage(ctx context.Context, entries []models.UsageEntry) error
}

// UsageQueueWorker writes usage entries to the database asynchronously
type UsageQueueWorker struct {
	*queue.Worker[models.UsageEntry]
}

// NewUsageQueueWorker creates a usage worker. archiver may be nil.
func NewUsageQueueWorker(q queue.Queue[models.UsageEntry], dlq queue.DeadLetterQueue[models.UsageEntry], store UsageStore, archiver UsageArchiver, config *queue.Config) *UsageQueueWorker {
	if config == nil {
		config = queue.DefaultConfig("usage")
	}
	logger := utils.NewLogger("usage-archive")

	archive := func(ctx context.Context, entries []models.UsageEntry) {
		if archiver == nil {
			return
		}
		// The database is the source of truth; archive failures are only logged.
		if err := archiver.ArchiveUsage(ctx, entries); err != nil {
			logger.Warn("Failed to archive usage batch", "count", len(entries), "error", err)
		}
	}

	item := func(ctx context.Context, entry models.UsageEntry) error {
		if err := store.Create(ctx, &entry); err != nil {
			return err
		}
		archive(ctx, []models.UsageEntry{entry})
		return nil
	}
	batch := func(ctx context.Context, entries []models.UsageEntry) error {
		if err := store.CreateBatch(ctx, entries); err != nil {
			return err
		}
		archive(ctx, entries)
		return nil
	}

	return &UsageQueueWorker{Worker: queue.NewWorker[models.UsageEntry]("usage", q, dlq, config, item, batch)}
}
