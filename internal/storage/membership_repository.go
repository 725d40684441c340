package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ai_orchestrator/internal/auth"
	"ai_orchestrator/internal/models"
)

// MembershipRepository answers role and plan lookups from Postgres.
// Results are cached in the DB's LRU caches.
type MembershipRepository struct {
	db *DB
}

func NewMembershipRepository(db *DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

var (
	_ auth.RoleLookup        = (*MembershipRepository)(nil)
	_ auth.EntitlementLookup = (*MembershipRepository)(nil)
)

func membershipKey(userID, orgID string) string {
	return orgID + "/" + userID
}

// RoleFor returns the role of userID in orgID, or auth.ErrNoMembership
func (r *MembershipRepository) RoleFor(ctx context.Context, userID, orgID string) (auth.Role, error) {
	key := membershipKey(userID, orgID)
	if role, ok := r.db.roleCache.Get(key); ok {
		return role, nil
	}

	var raw string
	err := r.db.conn.GetContext(ctx, &raw,
		`SELECT role FROM organization_members WHERE organization_id = $1 AND user_id = $2`, orgID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", auth.ErrNoMembership
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up membership: %w", err)
	}

	role := auth.ParseRole(raw)
	if role == "" {
		return "", fmt.Errorf("membership of %s in %s has unknown role %q", userID, orgID, raw)
	}
	r.db.roleCache.Set(key, role)
	return role, nil
}

// PlanFor returns the organization's plan. Organizations without a stored
// plan are on the trial tier.
func (r *MembershipRepository) PlanFor(ctx context.Context, orgID string) (models.Tier, error) {
	if tier, ok := r.db.planCache.Get(orgID); ok {
		return tier, nil
	}

	var raw string
	err := r.db.conn.GetContext(ctx, &raw, `SELECT plan FROM organization_plans WHERE organization_id = $1`, orgID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		raw = string(models.TierTrial)
	case err != nil:
		return "", fmt.Errorf("failed to look up plan: %w", err)
	}

	tier := models.ParseTier(raw)
	r.db.planCache.Set(orgID, tier)
	return tier, nil
}

// SetRole adds or updates a membership
func (r *MembershipRepository) SetRole(ctx context.Context, orgID, userID string, role auth.Role) error {
	if !role.IsValid() {
		return fmt.Errorf("invalid role %q", role)
	}
	_, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO organization_members (organization_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (organization_id, user_id) DO UPDATE SET role = EXCLUDED.role
	`, orgID, userID, string(role))
	if err != nil {
		return fmt.Errorf("failed to set membership: %w", err)
	}
	r.db.roleCache.Delete(membershipKey(userID, orgID))
	return nil
}

// RemoveMember deletes a membership
func (r *MembershipRepository) RemoveMember(ctx context.Context, orgID, userID string) error {
	result, err := r.db.conn.ExecContext(ctx,
		`DELETE FROM organization_members WHERE organization_id = $1 AND user_id = $2`, orgID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove membership: %w", err)
	}
	r.db.roleCache.Delete(membershipKey(userID, orgID))
	return requireRow(result, ErrMembershipNotFound)
}

// SetPlan stores the organization's plan
func (r *MembershipRepository) SetPlan(ctx context.Context, orgID string, tier models.Tier) error {
	if !tier.IsValid() {
		return fmt.Errorf("invalid plan %q", tier)
	}
	_, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO organization_plans (organization_id, plan)
		VALUES ($1, $2)
		ON CONFLICT (organization_id) DO UPDATE SET plan = EXCLUDED.plan
	`, orgID, string(tier))
	if err != nil {
		return fmt.Errorf("failed to set plan: %w", err)
	}
	r.db.planCache.Delete(orgID)
	return nil
}
