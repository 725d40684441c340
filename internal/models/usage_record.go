package models

import (
	"time"

	"github.com/google/uuid"
)

// UsageEntry records one provider attempt, successful or not.
// Entries are append-only: nothing in this module updates or deletes them.
type UsageEntry struct {
	ID             uuid.UUID    `db:"id" json:"id"`
	RequestID      uuid.UUID    `db:"request_id" json:"request_id"`
	CallerID       string       `db:"caller_id" json:"caller_id"`
	OrganizationID string       `db:"organization_id" json:"organization_id,omitempty"`
	ProviderID     string       `db:"provider_id" json:"provider_id"`
	ProviderType   ProviderType `db:"provider_type" json:"provider_type"`
	Model          string       `db:"model" json:"model"`
	Success        bool         `db:"success" json:"success"`
	TokensUsed     int          `db:"tokens_used" json:"tokens_used"`
	CostUSD        float64      `db:"cost_usd" json:"cost_usd"`
	DurationMs     int64        `db:"duration_ms" json:"duration_ms"`
	ErrorMessage   string       `db:"error_message" json:"error_message,omitempty"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
}

// ProviderUsageStats aggregates the usage entries of one provider made on
// behalf of one organization ("" for individual callers).
type ProviderUsageStats struct {
	ProviderID     string     `db:"provider_id" json:"provider_id"`
	OrganizationID string     `db:"organization_id" json:"organization_id,omitempty"`
	Requests       int        `db:"requests" json:"requests"`
	Failures       int        `db:"failures" json:"failures"`
	AvgLatencyMs   float64    `db:"avg_latency_ms" json:"avg_latency_ms"`
	LastUsedAt     *time.Time `db:"last_used_at" json:"last_used_at,omitempty"`
}
