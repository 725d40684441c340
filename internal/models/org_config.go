package models

import "time"

// RoutingStrategy is the routing hint stored with an organization config.
// Only RoutingSequential is executed; the others are accepted and stored.
type RoutingStrategy string

const (
	RoutingSequential    RoutingStrategy = "sequential"
	RoutingCostOptimized RoutingStrategy = "cost-optimized"
	RoutingParallel      RoutingStrategy = "parallel"
)

// IsValid reports whether s is a declared strategy. The empty value means sequential.
func (s RoutingStrategy) IsValid() bool {
	switch s {
	case "", RoutingSequential, RoutingCostOptimized, RoutingParallel:
		return true
	default:
		return false
	}
}

// IsImplemented reports whether the engine can execute s.
func (s RoutingStrategy) IsImplemented() bool {
	return s == "" || s == RoutingSequential
}

// OrganizationConfig is the versioned document of organization-owned providers.
type OrganizationConfig struct {
	OrganizationID  string           `db:"organization_id" json:"organization_id"`
	Version         int              `db:"version" json:"version"`
	Providers       ProviderDocument `db:"providers" json:"providers"`
	RoutingStrategy RoutingStrategy  `db:"routing_strategy" json:"routing_strategy,omitempty"`
	UpdatedBy       string           `db:"updated_by" json:"updated_by"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
}
