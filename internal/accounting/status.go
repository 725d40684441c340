package accounting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"ai_orchestrator/internal/models"
	"ai_orchestrator/internal/providers"
)

// StatusWindow is the default look-back of BrainStatus.
const StatusWindow = 24 * time.Hour

// SnapshotSource returns the current registry snapshot.
type SnapshotSource interface {
	Snapshot() *providers.Snapshot
}

// ProviderStatus combines a provider's registration with its recent usage.
type ProviderStatus struct {
	ProviderID   string               `json:"provider_id"`
	DisplayName  string               `json:"display_name,omitempty"`
	Type         models.ProviderType  `json:"type,omitempty"`
	Class        models.ProviderClass `json:"class,omitempty"`
	Registered   bool                 `json:"registered"`
	Active       bool                 `json:"active"`
	Priority     int                  `json:"priority"`
	Requests     int                  `json:"requests"`
	Failures     int                  `json:"failures"`
	AvgLatencyMs float64              `json:"avg_latency_ms"`
	LastUsedAt   *time.Time           `json:"last_used_at,omitempty"`
}

// merge folds one stats row into ps. A provider can have a row per
// organization, so latency is averaged by request count.
func (ps *ProviderStatus) merge(st models.ProviderUsageStats) {
	total := ps.Requests + st.Requests
	if total > 0 {
		ps.AvgLatencyMs = (ps.AvgLatencyMs*float64(ps.Requests) + st.AvgLatencyMs*float64(st.Requests)) / float64(total)
	}
	ps.Requests = total
	ps.Failures += st.Failures
	if st.LastUsedAt != nil && (ps.LastUsedAt == nil || st.LastUsedAt.After(*ps.LastUsedAt)) {
		at := *st.LastUsedAt
		ps.LastUsedAt = &at
	}
}

// BrainStatus is the dashboard view of the engine.
type BrainStatus struct {
	GeneratedAt     time.Time        `json:"generated_at"`
	Since           time.Time        `json:"since"`
	RegistryVersion uint64           `json:"registry_version"`
	Chain           []string         `json:"chain"`
	Providers       []ProviderStatus `json:"providers"`
}

// Status answers status queries from usage stats and the registry.
type Status struct {
	stats    UsageStats
	registry SnapshotSource
	now      func() time.Time
}

func NewStatus(stats UsageStats, registry SnapshotSource) *Status {
	return &Status{stats: stats, registry: registry, now: time.Now}
}

// BrainStatus reports usage since the given time for every provider visible
// to orgID (the system providers when orgID is empty), plus providers that
// orgID used in the window but that are no longer registered.
func (s *Status) BrainStatus(ctx context.Context, orgID string, since time.Time) (*BrainStatus, error) {
	now := s.now().UTC()
	if since.IsZero() {
		since = now.Add(-StatusWindow)
	}

	stats, err := s.stats.StatsSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load usage stats: %w", err)
	}

	snap := s.registry.Snapshot()
	visible := snap.ScopeProviders(providers.SystemScope)
	if orgID != "" {
		visible = append(visible, snap.ScopeProviders(providers.OrganizationScope(orgID))...)
	}

	byID := make(map[string]*ProviderStatus, len(visible))
	// Sized so that appends never move the elements byID points to.
	out := make([]ProviderStatus, 0, len(visible)+len(stats))
	for _, p := range visible {
		out = append(out, ProviderStatus{
			ProviderID:  p.ID,
			DisplayName: p.DisplayName,
			Type:        p.Type,
			Class:       p.Class(),
			Registered:  true,
			Active:      p.Active,
			Priority:    p.Priority,
		})
	}
	for i := range out {
		byID[out[i].ProviderID] = &out[i]
	}

	for _, st := range stats {
		ps, ok := byID[st.ProviderID]
		switch {
		case ok && ps.Registered:
		case st.OrganizationID != orgID:
			// Only the caller's own usage of unregistered providers is listed.
			continue
		case ok:
		default:
			// Registered providers outside the visible scopes stay hidden.
			if _, known := snap.Lookup(st.ProviderID); known {
				continue
			}
			out = append(out, ProviderStatus{ProviderID: st.ProviderID})
			ps = &out[len(out)-1]
			byID[st.ProviderID] = ps
		}
		ps.merge(st)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].ProviderID < out[j].ProviderID })

	return &BrainStatus{
		GeneratedAt:     now,
		Since:           since,
		RegistryVersion: snap.Version(),
		Chain:           snap.Chain(orgID),
		Providers:       out,
	}, nil
}
