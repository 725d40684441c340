// Package accounting records one usage entry per provider attempt and
// answers the status queries built on top of them.
package accounting

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"ai_orchestrator/internal/billing"
	"ai_orchestrator/internal/models"
	"ai_orchestrator/internal/utils"
)

// UsageLog is the append-only sink for provider attempts. Implementations
// must be safe for concurrent use.
type UsageLog interface {
	Record(ctx context.Context, entry models.UsageEntry) error
}

// UsageStats aggregates recorded attempts per provider.
type UsageStats interface {
	StatsSince(ctx context.Context, since time.Time) ([]models.ProviderUsageStats, error)
}

// Enqueuer is satisfied by queue workers and queues.
type Enqueuer[T any] interface {
	Enqueue(ctx context.Context, item T) error
}

// QueueUsageLog hands entries to the usage queue and, for attempts that
// cost something, to the billing queue.
type QueueUsageLog struct {
	usage   Enqueuer[models.UsageEntry]
	billing Enqueuer[billing.BillingUpdate]
	logger  *utils.Logger
}

// NewQueueUsageLog creates a queue-backed usage log. billingQueue may be nil.
func NewQueueUsageLog(usage Enqueuer[models.UsageEntry], billingQueue Enqueuer[billing.BillingUpdate]) *QueueUsageLog {
	return &QueueUsageLog{usage: usage, billing: billingQueue, logger: utils.NewLogger("usage-log")}
}

// Record enqueues the entry. The returned error only reflects the usage
// queue; a failed billing enqueue is logged.
func (l *QueueUsageLog) Record(ctx context.Context, entry models.UsageEntry) error {
	stamp(&entry)
	if err := l.usage.Enqueue(ctx, entry); err != nil {
		return fmt.Errorf("failed to enqueue usage entry: %w", err)
	}

	if l.billing != nil && entry.CostUSD > 0 {
		if err := l.billing.Enqueue(ctx, billing.UpdateFromUsage(entry)); err != nil {
			l.logger.Error("Failed to enqueue billing update", "entry", entry.ID, "error", err)
		}
	}
	return nil
}

// MemoryUsageLog keeps entries in memory. It backs development setups
// without a database and the tests.
type MemoryUsageLog struct {
	mu      sync.RWMutex
	entries []models.UsageEntry
}

func NewMemoryUsageLog() *MemoryUsageLog {
	return &MemoryUsageLog{}
}

func (l *MemoryUsageLog) Record(ctx context.Context, entry models.UsageEntry) error {
	stamp(&entry)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	return nil
}

// Entries returns a copy of every recorded entry in insertion order.
func (l *MemoryUsageLog) Entries() []models.UsageEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.UsageEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of recorded entries.
func (l *MemoryUsageLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// StatsSince aggregates entries created at or after since per provider and
// organization, ordered by provider id then organization id.
func (l *MemoryUsageLog) StatsSince(ctx context.Context, since time.Time) ([]models.ProviderUsageStats, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	type key struct{ provider, org string }
	type acc struct {
		stats   models.ProviderUsageStats
		latency int64
	}
	groups := make(map[key]*acc)
	for _, e := range l.entries {
		if e.CreatedAt.Before(since) {
			continue
		}
		k := key{e.ProviderID, e.OrganizationID}
		a, ok := groups[k]
		if !ok {
			a = &acc{stats: models.ProviderUsageStats{ProviderID: e.ProviderID, OrganizationID: e.OrganizationID}}
			groups[k] = a
		}
		a.stats.Requests++
		if !e.Success {
			a.stats.Failures++
		}
		a.latency += e.DurationMs
		if a.stats.LastUsedAt == nil || e.CreatedAt.After(*a.stats.LastUsedAt) {
			at := e.CreatedAt
			a.stats.LastUsedAt = &at
		}
	}

	out := make([]models.ProviderUsageStats, 0, len(groups))
	for _, a := range groups {
		a.stats.AvgLatencyMs = float64(a.latency) / float64(a.stats.Requests)
		out = append(out, a.stats)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProviderID != out[j].ProviderID {
			return out[i].ProviderID < out[j].ProviderID
		}
		return out[i].OrganizationID < out[j].OrganizationID
	})
	return out, nil
}

func stamp(entry *models.UsageEntry) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
}
