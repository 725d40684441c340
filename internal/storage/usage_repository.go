package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"ai_orchestrator/internal/models"
)

// UsageRepository appends provider attempts to the usage log
type UsageRepository struct {
	db *DB
}

func NewUsageRepository(db *DB) *UsageRepository {
	return &UsageRepository{db: db}
}

const insertUsageQuery = `
	INSERT INTO usage_log (id, request_id, caller_id, organization_id, provider_id, provider_type,
	                       model, success, tokens_used, cost_usd, duration_ms, error_message, created_at)
	VALUES (:id, :request_id, :caller_id, :organization_id, :provider_id, :provider_type,
	        :model, :success, :tokens_used, :cost_usd, :duration_ms, :error_message, :created_at)
	ON CONFLICT (id) DO NOTHING
`

// Create inserts one usage entry. Inserting the same id twice is a no-op,
// which lets the usage worker retry batches safely.
func (r *UsageRepository) Create(ctx context.Context, entry *models.UsageEntry) error {
	prepareEntry(entry)
	if _, err := r.db.conn.NamedExecContext(ctx, insertUsageQuery, entry); err != nil {
		return fmt.Errorf("failed to insert usage entry: %w", err)
	}
	return nil
}

// CreateBatch inserts entries in a single transaction
func (r *UsageRepository) CreateBatch(ctx context.Context, entries []models.UsageEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.inTx(ctx, func(tx *sqlx.Tx) error {
		stmt, err := tx.PrepareNamedContext(ctx, insertUsageQuery)
		if err != nil {
			return fmt.Errorf("failed to prepare usage insert: %w", err)
		}
		defer stmt.Close()

		for i := range entries {
			prepareEntry(&entries[i])
			if _, err := stmt.ExecContext(ctx, &entries[i]); err != nil {
				return fmt.Errorf("failed to insert usage entry %s: %w", entries[i].ID, err)
			}
		}
		return nil
	})
}

// StatsSince aggregates attempts per provider and organization created at or after since
func (r *UsageRepository) StatsSince(ctx context.Context, since time.Time) ([]models.ProviderUsageStats, error) {
	var stats []models.ProviderUsageStats
	query := `
		SELECT provider_id,
		       organization_id,
		       COUNT(*) AS requests,
		       COUNT(*) FILTER (WHERE NOT success) AS failures,
		       COALESCE(AVG(duration_ms), 0) AS avg_latency_ms,
		       MAX(created_at) AS last_used_at
		FROM usage_log
		WHERE created_at >= $1
		GROUP BY provider_id, organization_id
		ORDER BY provider_id, organization_id
	`
	if err := r.db.conn.SelectContext(ctx, &stats, query, since); err != nil {
		return nil, fmt.Errorf("failed to aggregate usage: %w", err)
	}
	return stats, nil
}

// ListByCaller returns a caller's most recent entries, newest first
func (r *UsageRepository) ListByCaller(ctx context.Context, callerID string, limit int) ([]models.UsageEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	var entries []models.UsageEntry
	query := `
		SELECT id, request_id, caller_id, organization_id, provider_id, provider_type, model,
		       success, tokens_used, cost_usd, duration_ms, error_message, created_at
		FROM usage_log
		WHERE caller_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	if err := r.db.conn.SelectContext(ctx, &entries, query, callerID, limit); err != nil {
		return nil, fmt.Errorf("failed to list usage: %w", err)
	}
	return entries, nil
}

func prepareEntry(entry *models.UsageEntry) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
}
