package main

import (
	"context"

	"github.com/redis/go-redis/v9"

	"ai_orchestrator/internal/billing"
	"ai_orchestrator/internal/config"
	"ai_orchestrator/internal/logging"
	"ai_orchestrator/internal/models"
	"ai_orchestrator/internal/queue"
	"ai_orchestrator/internal/storage"
)

func queueConfig(name string, qc config.QueueConfig) *queue.Config {
	c := queue.DefaultConfig(name)
	c.BatchSize = qc.BatchSize
	c.BatchTimeout = qc.BatchTimeout
	c.MaxRetries = qc.MaxRetries
	c.RetryBackoff = qc.RetryBackoff
	return c
}

func startBillingWorker(ctx context.Context, client *redis.Client, tracker billing.SpendTracker, qc config.QueueConfig) (*billing.BillingQueueWorker, error) {
	c := queueConfig("billing", qc)
	q, err := queue.NewRedisQueue[billing.BillingUpdate](client, c)
	if err != nil {
		return nil, err
	}
	dlq, err := queue.NewRedisDeadLetterQueue[billing.BillingUpdate](client, c)
	if err != nil {
		return nil, err
	}
	worker := billing.NewBillingQueueWorker(q, dlq, tracker, c)
	worker.Start(ctx)
	return worker, nil
}

// startUsageWorker uses Redis queues when Redis is connected and memory
// queues otherwise.
func (a *app) startUsageWorker(ctx context.Context, cfg *config.Config, store storage.UsageStore) (*storage.UsageQueueWorker, error) {
	c := queueConfig("usage", cfg.Queue)

	var (
		q   queue.Queue[models.UsageEntry]
		dlq queue.DeadLetterQueue[models.UsageEntry]
		err error
	)
	if a.redis != nil {
		if q, err = queue.NewRedisQueue[models.UsageEntry](a.redis, c); err != nil {
			return nil, err
		}
		if dlq, err = queue.NewRedisDeadLetterQueue[models.UsageEntry](a.redis, c); err != nil {
			return nil, err
		}
	} else {
		q = queue.NewMemoryQueue[models.UsageEntry](c)
		dlq = queue.NewMemoryDeadLetterQueue[models.UsageEntry]()
	}

	var archiver storage.UsageArchiver
	if cfg.Archive.Enabled {
		s3Archiver, err := logging.NewS3Archiver(ctx, logging.S3ArchiverConfig{
			Bucket:    cfg.Archive.S3Bucket,
			Region:    cfg.Archive.S3Region,
			Prefix:    cfg.Archive.S3Prefix,
			Endpoint:  cfg.Archive.Endpoint,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			PodName:   cfg.Archive.PodName,
		})
		if err != nil {
			return nil, err
		}
		archiver = s3Archiver
		logging.Infof("Archiving usage to s3://%s/%s", cfg.Archive.S3Bucket, cfg.Archive.S3Prefix)
	}

	worker := storage.NewUsageQueueWorker(q, dlq, store, archiver, c)
	worker.Start(ctx)
	a.workers = append(a.workers, worker)
	return worker, nil
}
