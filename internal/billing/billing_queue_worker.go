package billing

import (
	"context"
	"time"

	"ai_orchestrator/internal/models"
	"ai_orchestrator/internal/queue"
)

// BillingUpdate is one cost increment waiting to be applied.
type BillingUpdate struct {
	Account   string    `json:"account"`
	CostUSD   float64   `json:"cost_usd"`
	Timestamp time.Time `json:"timestamp"`
}

// AccountFor names the spend account of a caller. Organization spend is
// tracked per organization, other callers per user.
func AccountFor(organizationID, callerID string) string {
	if organizationID == "" {
		return "user:" + callerID
	}
	return "org:" + organizationID
}

// UpdateFromUsage derives the billing update for a usage entry.
func UpdateFromUsage(entry models.UsageEntry) BillingUpdate {
	return BillingUpdate{
		Account:   AccountFor(entry.OrganizationID, entry.CallerID),
		CostUSD:   entry.CostUSD,
		Timestamp: entry.CreatedAt,
	}
}

// BillingQueueWorker applies billing updates to a SpendTracker asynchronously
type BillingQueueWorker struct {
	*queue.Worker[BillingUpdate]
}

func NewBillingQueueWorker(q queue.Queue[BillingUpdate], dlq queue.DeadLetterQueue[BillingUpdate], tracker SpendTracker, config *queue.Config) *BillingQueueWorker {
	if config == nil {
		config = queue.DefaultConfig("billing")
	}
	apply := func(ctx context.Context, u BillingUpdate) error {
		return tracker.AddSpend(ctx, u.Account, u.CostUSD, u.Timestamp)
	}
	// No batch path: spend increments are not idempotent.
	return &BillingQueueWorker{Worker: queue.NewWorker[BillingUpdate]("billing", q, dlq, config, apply, nil)}
}
