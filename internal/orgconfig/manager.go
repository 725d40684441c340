// Package orgconfig validates and installs organization provider configuration.
package orgconfig

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ai_orchestrator/internal/auth"
	"ai_orchestrator/internal/models"
	"ai_orchestrator/internal/providers"
	"ai_orchestrator/internal/storage"
	"ai_orchestrator/internal/utils"
)

// DefaultProbeTimeout bounds the reachability probe of a local provider.
const DefaultProbeTimeout = 5 * time.Second

// ConfigStore persists organization configurations.
type ConfigStore interface {
	Get(ctx context.Context, orgID string) (*models.OrganizationConfig, error)
	List(ctx context.Context) ([]*models.OrganizationConfig, error)
	Save(ctx context.Context, cfg *models.OrganizationConfig) error
	Delete(ctx context.Context, orgID string) error
}

// SystemSource lists the system-default providers.
type SystemSource interface {
	List(ctx context.Context) ([]models.Provider, error)
}

// Prober checks that a locally-hosted model server answers.
type Prober interface {
	Probe(ctx context.Context, endpoint string) error
}

// Installer is the part of providers.Registry the manager drives.
type Installer interface {
	Snapshot() *providers.Snapshot
	Install(scope providers.Scope, list []models.Provider) error
	ClearOrganization(orgID string)
}

// Options configures a Manager.
type Options struct {
	// MinimumPlan is the lowest plan allowed to configure custom providers.
	MinimumPlan models.Tier
	// ProbeTimeout caps each local provider probe; it never exceeds DefaultProbeTimeout.
	ProbeTimeout time.Duration
}

// Manager applies configuration changes in a fixed order: role check,
// entitlement check, validation, persistence, registry install. A failing
// step aborts the ones after it.
type Manager struct {
	roles    auth.RoleLookup
	plans    auth.EntitlementLookup
	store    ConfigStore
	system   SystemSource
	registry Installer
	prober   Prober
	opts     Options
	logger   *utils.Logger
}

// NewManager creates a manager. system may be nil when system providers
// come from the defaults file only.
func NewManager(roles auth.RoleLookup, plans auth.EntitlementLookup, store ConfigStore, system SystemSource, registry Installer, prober Prober, opts Options) *Manager {
	if opts.MinimumPlan == "" {
		opts.MinimumPlan = models.TierProfessional
	}
	if opts.ProbeTimeout <= 0 || opts.ProbeTimeout > DefaultProbeTimeout {
		opts.ProbeTimeout = DefaultProbeTimeout
	}
	return &Manager{
		roles:    roles,
		plans:    plans,
		store:    store,
		system:   system,
		registry: registry,
		prober:   prober,
		opts:     opts,
		logger:   utils.NewLogger("orgconfig"),
	}
}

// UpdateOrganizationConfig replaces the organization's providers with the
// ones in cfg. cfg.Version is the version the caller last read; zero
// overwrites whatever is stored. The saved configuration is returned.
func (m *Manager) UpdateOrganizationConfig(ctx context.Context, orgID string, cfg models.OrganizationConfig, requestedBy string) (*models.OrganizationConfig, error) {
	if err := m.authorize(ctx, orgID, requestedBy); err != nil {
		return nil, err
	}

	list, err := m.validate(ctx, orgID, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Version == 0 {
		current, err := m.store.Get(ctx, orgID)
		switch {
		case err == nil:
			cfg.Version = current.Version
		case !errors.Is(err, storage.ErrOrgConfigNotFound):
			return nil, fmt.Errorf("failed to load organization config: %w", err)
		}
	}

	next := &models.OrganizationConfig{
		OrganizationID:  orgID,
		Version:         cfg.Version,
		Providers:       models.ProviderDocument(list),
		RoutingStrategy: cfg.RoutingStrategy,
		UpdatedBy:       requestedBy,
	}
	if err := m.store.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to save organization config: %w", err)
	}

	if err := m.registry.Install(providers.OrganizationScope(orgID), list); err != nil {
		// Validation checked collisions against an older snapshot.
		m.logger.Error("Saved configuration could not be installed", "org", orgID, "version", next.Version, "error", err)
		return nil, fmt.Errorf("failed to install organization providers: %w", err)
	}

	m.logger.Info("Organization configuration installed", "org", orgID, "version", next.Version, "providers", len(list), "by", requestedBy)
	return next, nil
}

// ClearOrganizationConfig removes the organization's providers from storage
// and from the registry.
func (m *Manager) ClearOrganizationConfig(ctx context.Context, orgID, requestedBy string) error {
	if err := m.authorize(ctx, orgID, requestedBy); err != nil {
		return err
	}
	// Another instance may already have deleted the row.
	if err := m.store.Delete(ctx, orgID); err != nil && !errors.Is(err, storage.ErrOrgConfigNotFound) {
		return fmt.Errorf("failed to delete organization config: %w", err)
	}
	m.registry.ClearOrganization(orgID)
	m.logger.Info("Organization configuration cleared", "org", orgID, "by", requestedBy)
	return nil
}

// ReloadOrganization installs the stored configuration of one organization,
// or clears it from the registry when none is stored.
func (m *Manager) ReloadOrganization(ctx context.Context, orgID string) error {
	cfg, err := m.store.Get(ctx, orgID)
	if errors.Is(err, storage.ErrOrgConfigNotFound) {
		m.registry.ClearOrganization(orgID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load organization config: %w", err)
	}
	return m.registry.Install(providers.OrganizationScope(orgID), cfg.Providers)
}

// LoadAll installs every stored organization configuration and clears
// organizations whose configuration is no longer stored. Configurations
// that fail to install are skipped and reported together.
func (m *Manager) LoadAll(ctx context.Context) (int, error) {
	cfgs, err := m.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list organization configs: %w", err)
	}

	stored := make(map[string]struct{}, len(cfgs))
	for _, cfg := range cfgs {
		stored[cfg.OrganizationID] = struct{}{}
	}
	for _, orgID := range m.registry.Snapshot().Organizations() {
		if _, ok := stored[orgID]; !ok {
			m.registry.ClearOrganization(orgID)
			m.logger.Info("Organization configuration removed from storage", "org", orgID)
		}
	}

	var errs []error
	loaded := 0
	for _, cfg := range cfgs {
		if err := m.registry.Install(providers.OrganizationScope(cfg.OrganizationID), cfg.Providers); err != nil {
			m.logger.Error("Failed to install organization config", "org", cfg.OrganizationID, "error", err)
			errs = append(errs, fmt.Errorf("organization %s: %w", cfg.OrganizationID, err))
			continue
		}
		loaded++
	}
	return loaded, errors.Join(errs...)
}

// ReloadSystem reinstalls the system-default providers from storage.
func (m *Manager) ReloadSystem(ctx context.Context) (int, error) {
	if m.system == nil {
		return 0, errors.New("no system provider source configured")
	}
	list, err := m.system.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list system providers: %w", err)
	}
	if err := m.registry.Install(providers.SystemScope, list); err != nil {
		return 0, fmt.Errorf("failed to install system providers: %w", err)
	}
	m.logger.Info("System providers reloaded", "count", len(list))
	return len(list), nil
}

// authorize runs the role and entitlement checks. Both are lookups only, so
// they run before any validation I/O.
func (m *Manager) authorize(ctx context.Context, orgID, requestedBy string) error {
	if orgID == "" {
		return &ValidationError{Reason: "organization id is required"}
	}

	role, err := m.roles.RoleFor(ctx, requestedBy, orgID)
	if errors.Is(err, auth.ErrNoMembership) {
		return &PermissionError{UserID: requestedBy, OrganizationID: orgID}
	}
	if err != nil {
		return fmt.Errorf("failed to look up role: %w", err)
	}
	if !role.CanConfigureProviders() {
		return &PermissionError{UserID: requestedBy, OrganizationID: orgID, Role: role}
	}

	plan, err := m.plans.PlanFor(ctx, orgID)
	if err != nil {
		return fmt.Errorf("failed to look up plan: %w", err)
	}
	if !plan.AtLeast(m.opts.MinimumPlan) {
		return &EntitlementError{OrganizationID: orgID, Plan: plan, Required: m.opts.MinimumPlan}
	}
	return nil
}

// validate checks every provider and returns the list to install. Field
// checks run for all providers before any probe.
func (m *Manager) validate(ctx context.Context, orgID string, cfg models.OrganizationConfig) ([]models.Provider, error) {
	if !cfg.RoutingStrategy.IsValid() {
		return nil, &ValidationError{Reason: fmt.Sprintf("unknown routing strategy %q", cfg.RoutingStrategy)}
	}
	if !cfg.RoutingStrategy.IsImplemented() {
		m.logger.Warn("Routing strategy stored but not executed; requests use sequential fallback", "org", orgID, "strategy", cfg.RoutingStrategy)
	}

	snap := m.registry.Snapshot()
	seen := make(map[string]bool, len(cfg.Providers))
	list := make([]models.Provider, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		if err := p.Validate(); err != nil {
			return nil, &ValidationError{ProviderID: p.ID, Reason: "invalid fields", Err: err}
		}
		if seen[p.ID] {
			return nil, &ValidationError{ProviderID: p.ID, Reason: "duplicate provider id"}
		}
		seen[p.ID] = true

		if existing, ok := snap.Lookup(p.ID); ok && existing.OrganizationID != orgID {
			return nil, &ValidationError{ProviderID: p.ID, Reason: "provider id is already in use"}
		}

		p = p.Clone()
		p.OrganizationID = orgID
		list = append(list, p)
	}

	for _, p := range list {
		if p.Type != models.ProviderTypeLocalServer {
			continue
		}
		if err := m.probe(ctx, p); err != nil {
			return nil, &ValidationError{ProviderID: p.ID, Reason: "local provider is unreachable", Err: err}
		}
	}
	return list, nil
}

func (m *Manager) probe(ctx context.Context, p models.Provider) error {
	if m.prober == nil {
		return errors.New("no prober configured")
	}
	ctx, cancel := context.WithTimeout(ctx, m.opts.ProbeTimeout)
	defer cancel()
	return m.prober.Probe(ctx, p.Config.Endpoint)
}
