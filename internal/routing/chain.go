// Package routing derives the ordered provider chain for a request:
// BuildChain orders the registry, TierResolver filters it per subscription tier.
package routing

import (
	"sort"

	"ai_orchestrator/internal/models"
)

// BuildChain returns the ids of active providers ordered by priority
// (highest first), ties broken by id ascending.
func BuildChain(providers []models.Provider) []string {
	active := make([]models.Provider, 0, len(providers))
	for _, p := range providers {
		if p.Active {
			active = append(active, p)
		}
	}

	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Priority != active[j].Priority {
			return active[i].Priority > active[j].Priority
		}
		return active[i].ID < active[j].ID
	})

	ids := make([]string, len(active))
	for i, p := range active {
		ids[i] = p.ID
	}
	return ids
}
