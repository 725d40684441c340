package auth

import (
	"context"
	"errors"
	"sync"

	"ai_orchestrator/internal/models"
)

// ErrNoMembership is returned when a user does not belong to an organization.
var ErrNoMembership = errors.New("user is not a member of the organization")

// RoleLookup resolves a user's role in an organization.
type RoleLookup interface {
	RoleFor(ctx context.Context, userID, organizationID string) (Role, error)
}

// EntitlementLookup resolves the plan an organization is subscribed to.
type EntitlementLookup interface {
	PlanFor(ctx context.Context, organizationID string) (models.Tier, error)
}

// StaticDirectory is an in-memory RoleLookup and EntitlementLookup, used
// when no database is configured.
type StaticDirectory struct {
	mu    sync.RWMutex
	roles map[string]map[string]Role
	plans map[string]models.Tier
}

func NewStaticDirectory() *StaticDirectory {
	return &StaticDirectory{
		roles: make(map[string]map[string]Role),
		plans: make(map[string]models.Tier),
	}
}

func (d *StaticDirectory) SetRole(organizationID, userID string, role Role) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.roles[organizationID] == nil {
		d.roles[organizationID] = make(map[string]Role)
	}
	d.roles[organizationID][userID] = role
}

func (d *StaticDirectory) SetPlan(organizationID string, plan models.Tier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.plans[organizationID] = plan
}

func (d *StaticDirectory) RoleFor(ctx context.Context, userID, organizationID string) (Role, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	role, ok := d.roles[organizationID][userID]
	if !ok {
		return "", ErrNoMembership
	}
	return role, nil
}

// PlanFor returns the organization's plan, trial when none is recorded.
func (d *StaticDirectory) PlanFor(ctx context.Context, organizationID string) (models.Tier, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if plan, ok := d.plans[organizationID]; ok {
		return plan, nil
	}
	return models.TierTrial, nil
}
