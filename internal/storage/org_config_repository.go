package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ai_orchestrator/internal/models"
)

// OrgConfigRepository stores organization provider configurations.
// Provider credentials are encrypted inside the JSONB document.
type OrgConfigRepository struct {
	db  *DB
	enc *Encryption
}

func NewOrgConfigRepository(db *DB, enc *Encryption) *OrgConfigRepository {
	return &OrgConfigRepository{db: db, enc: enc}
}

const orgConfigColumns = `organization_id, version, providers, routing_strategy, updated_by, updated_at`

// Get returns the stored configuration of an organization
func (r *OrgConfigRepository) Get(ctx context.Context, orgID string) (*models.OrganizationConfig, error) {
	var cfg models.OrganizationConfig
	query := `SELECT ` + orgConfigColumns + ` FROM organization_configs WHERE organization_id = $1`

	if err := r.db.conn.GetContext(ctx, &cfg, query, orgID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrgConfigNotFound
		}
		return nil, fmt.Errorf("failed to get organization config: %w", err)
	}
	if err := r.open(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// List returns every stored organization configuration
func (r *OrgConfigRepository) List(ctx context.Context) ([]*models.OrganizationConfig, error) {
	var cfgs []*models.OrganizationConfig
	query := `SELECT ` + orgConfigColumns + ` FROM organization_configs ORDER BY organization_id`

	if err := r.db.conn.SelectContext(ctx, &cfgs, query); err != nil {
		return nil, fmt.Errorf("failed to list organization configs: %w", err)
	}
	for _, cfg := range cfgs {
		if err := r.open(cfg); err != nil {
			return nil, err
		}
	}
	return cfgs, nil
}

// Save stores cfg as the next version of the organization's configuration.
// cfg.Version must equal the currently stored version (0 when none exists);
// on success it is updated to the new version.
func (r *OrgConfigRepository) Save(ctx context.Context, cfg *models.OrganizationConfig) error {
	sealed := make(models.ProviderDocument, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		sp, err := r.enc.SealProvider(p)
		if err != nil {
			return err
		}
		sealed = append(sealed, sp)
	}

	query := `
		INSERT INTO organization_configs (organization_id, version, providers, routing_strategy, updated_by, updated_at)
		VALUES ($1, 1, $2, $3, $4, NOW())
		ON CONFLICT (organization_id) DO UPDATE SET
			version = organization_configs.version + 1,
			providers = EXCLUDED.providers,
			routing_strategy = EXCLUDED.routing_strategy,
			updated_by = EXCLUDED.updated_by,
			updated_at = NOW()
		WHERE organization_configs.version = $5
		RETURNING version, updated_at
	`

	err := r.db.conn.QueryRowxContext(ctx, query,
		cfg.OrganizationID, sealed, string(cfg.RoutingStrategy), cfg.UpdatedBy, cfg.Version,
	).Scan(&cfg.Version, &cfg.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrVersionConflict
	}
	if err != nil {
		return fmt.Errorf("failed to save organization config: %w", err)
	}
	return nil
}

// Delete removes an organization's configuration
func (r *OrgConfigRepository) Delete(ctx context.Context, orgID string) error {
	result, err := r.db.conn.ExecContext(ctx, `DELETE FROM organization_configs WHERE organization_id = $1`, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete organization config: %w", err)
	}
	return requireRow(result, ErrOrgConfigNotFound)
}

func (r *OrgConfigRepository) open(cfg *models.OrganizationConfig) error {
	for i, p := range cfg.Providers {
		op, err := r.enc.OpenProvider(p)
		if err != nil {
			return fmt.Errorf("organization %s: %w", cfg.OrganizationID, err)
		}
		op.OrganizationID = cfg.OrganizationID
		cfg.Providers[i] = op
	}
	return nil
}
