package orgconfig

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai_orchestrator/internal/auth"
	"ai_orchestrator/internal/models"
	"ai_orchestrator/internal/providers"
	"ai_orchestrator/internal/storage"
)

// memoryStore counts successful saves.
type memoryStore struct {
	*MemoryStore
	saves atomic.Int32
}

func newMemoryStore() *memoryStore {
	return &memoryStore{MemoryStore: NewMemoryStore()}
}

func (s *memoryStore) Save(ctx context.Context, cfg *models.OrganizationConfig) error {
	if err := s.MemoryStore.Save(ctx, cfg); err != nil {
		return err
	}
	s.saves.Add(1)
	return nil
}

func (s *memoryStore) saveCount() int {
	return int(s.saves.Load())
}

type staticSystem []models.Provider

func (s staticSystem) List(ctx context.Context) ([]models.Provider, error) { return s, nil }

type proberFunc func(ctx context.Context, endpoint string) error

func (f proberFunc) Probe(ctx context.Context, endpoint string) error { return f(ctx, endpoint) }

type fixture struct {
	dir      *auth.StaticDirectory
	store    *memoryStore
	registry *providers.Registry
	manager  *Manager
}

var systemProviders = staticSystem{
	{ID: "sys-1", DisplayName: "OpenAI", Type: models.ProviderTypeHostedCompletion, Active: true, Priority: 100,
		Config: models.ConnectionConfig{Endpoint: "https://api.openai.com/v1", APIKey: "k", Model: "gpt-4o"}},
}

func newFixture(t *testing.T, prober Prober) *fixture {
	t.Helper()
	registry, err := providers.NewRegistry(providers.NewFactory(providers.Options{}))
	require.NoError(t, err)
	require.NoError(t, registry.Install(providers.SystemScope, systemProviders))

	dir := auth.NewStaticDirectory()
	dir.SetRole("org-1", "owner-1", auth.RoleOwner)
	dir.SetRole("org-1", "admin-1", auth.RoleAdmin)
	dir.SetRole("org-1", "member-1", auth.RoleMember)
	dir.SetPlan("org-1", models.TierEnterprise)

	store := newMemoryStore()
	return &fixture{
		dir:      dir,
		store:    store,
		registry: registry,
		manager:  NewManager(dir, dir, store, systemProviders, registry, prober, Options{ProbeTimeout: 100 * time.Millisecond}),
	}
}

func customProvider(id string) models.Provider {
	return models.Provider{
		ID: id, DisplayName: "Custom " + id, Type: models.ProviderTypeGenericCustom, Active: true, Priority: 150,
		Config: models.ConnectionConfig{Endpoint: "https://llm.internal.example", Model: "mixtral"},
	}
}

func localProvider(id, endpoint string) models.Provider {
	return models.Provider{
		ID: id, DisplayName: "Local " + id, Type: models.ProviderTypeLocalServer, Active: true, Priority: 200,
		Config: models.ConnectionConfig{Endpoint: endpoint, Model: "llama3"},
	}
}

func reachable(ctx context.Context, endpoint string) error { return nil }

func TestUpdateOrganizationConfig_Installs(t *testing.T) {
	f := newFixture(t, proberFunc(reachable))
	ctx := context.Background()

	saved, err := f.manager.UpdateOrganizationConfig(ctx, "org-1", models.OrganizationConfig{
		Providers: models.ProviderDocument{customProvider("org-custom"), localProvider("org-local", "http://10.0.0.5:11434")},
	}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, 1, saved.Version)
	assert.Equal(t, "admin-1", saved.UpdatedBy)

	snap := f.registry.Snapshot()
	assert.Equal(t, []string{"org-local", "org-custom", "sys-1"}, snap.Chain("org-1"))
	assert.Equal(t, []string{"sys-1"}, snap.Chain(""))

	p, ok := snap.Lookup("org-custom")
	require.True(t, ok)
	assert.Equal(t, "org-1", p.OrganizationID)

	// Zero version overwrites the stored one
	saved, err = f.manager.UpdateOrganizationConfig(ctx, "org-1", models.OrganizationConfig{
		Providers: models.ProviderDocument{customProvider("org-custom")},
	}, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, 2, saved.Version)
	assert.Equal(t, []string{"org-custom", "sys-1"}, f.registry.Snapshot().Chain("org-1"))
}

func TestUpdateOrganizationConfig_RejectsNonAdmin(t *testing.T) {
	f := newFixture(t, proberFunc(reachable))
	before := f.registry.Snapshot().Version()

	for _, user := range []string{"member-1", "stranger"} {
		_, err := f.manager.UpdateOrganizationConfig(context.Background(), "org-1", models.OrganizationConfig{
			Providers: models.ProviderDocument{customProvider("org-custom")},
		}, user)

		var perr *PermissionError
		require.ErrorAs(t, err, &perr, user)
		assert.Equal(t, user, perr.UserID)
	}

	assert.Equal(t, before, f.registry.Snapshot().Version())
	assert.Zero(t, f.store.saveCount())
}

func TestUpdateOrganizationConfig_RoleCheckedBeforeEntitlement(t *testing.T) {
	f := newFixture(t, proberFunc(reachable))
	f.dir.SetPlan("org-1", models.TierTrial)

	_, err := f.manager.UpdateOrganizationConfig(context.Background(), "org-1", models.OrganizationConfig{}, "member-1")
	var perr *PermissionError
	assert.ErrorAs(t, err, &perr)
}

func TestUpdateOrganizationConfig_RejectsLowerPlans(t *testing.T) {
	probed := false
	f := newFixture(t, proberFunc(func(ctx context.Context, endpoint string) error {
		probed = true
		return nil
	}))
	f.dir.SetPlan("org-1", models.TierStandard)

	_, err := f.manager.UpdateOrganizationConfig(context.Background(), "org-1", models.OrganizationConfig{
		Providers: models.ProviderDocument{localProvider("org-local", "http://10.0.0.5:11434")},
	}, "admin-1")

	var eerr *EntitlementError
	require.ErrorAs(t, err, &eerr)
	assert.Equal(t, models.TierStandard, eerr.Plan)
	assert.Equal(t, models.TierProfessional, eerr.Required)
	assert.False(t, probed, "entitlement is checked before any probe")
	assert.Zero(t, f.store.saveCount())
}

func TestUpdateOrganizationConfig_UnreachableLocalIsAllOrNothing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadEndpoint := server.URL
	server.Close()

	local := providers.NewLocalServerAdapter(providers.Options{}).(*providers.LocalServerAdapter)
	f := newFixture(t, local)
	before := f.registry.Snapshot().Version()

	_, err := f.manager.UpdateOrganizationConfig(context.Background(), "org-1", models.OrganizationConfig{
		Providers: models.ProviderDocument{customProvider("org-custom"), localProvider("org-local", deadEndpoint)},
	}, "admin-1")

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "org-local", verr.ProviderID)
	assert.Contains(t, err.Error(), "org-local")

	snap := f.registry.Snapshot()
	assert.Equal(t, before, snap.Version())
	_, ok := snap.Lookup("org-custom")
	assert.False(t, ok)
	assert.Zero(t, f.store.saveCount())
}

func TestUpdateOrganizationConfig_ProbeIsBounded(t *testing.T) {
	f := newFixture(t, proberFunc(func(ctx context.Context, endpoint string) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	start := time.Now()
	_, err := f.manager.UpdateOrganizationConfig(context.Background(), "org-1", models.OrganizationConfig{
		Providers: models.ProviderDocument{localProvider("org-local", "http://10.255.255.1:11434")},
	}, "admin-1")

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestUpdateOrganizationConfig_ProbeUsesLocalServerProtocol(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		w.Write([]byte(`{"models":[]}`))
	}))
	defer server.Close()

	local := providers.NewLocalServerAdapter(providers.Options{}).(*providers.LocalServerAdapter)
	f := newFixture(t, local)

	_, err := f.manager.UpdateOrganizationConfig(context.Background(), "org-1", models.OrganizationConfig{
		Providers: models.ProviderDocument{localProvider("org-local", server.URL)},
	}, "admin-1")
	require.NoError(t, err)
}

func TestUpdateOrganizationConfig_Validation(t *testing.T) {
	missingModel := customProvider("org-a")
	missingModel.Config.Model = ""

	tests := []struct {
		name       string
		cfg        models.OrganizationConfig
		providerID string
	}{
		{
			name:       "missing field",
			cfg:        models.OrganizationConfig{Providers: models.ProviderDocument{missingModel}},
			providerID: "org-a",
		},
		{
			name:       "duplicate id",
			cfg:        models.OrganizationConfig{Providers: models.ProviderDocument{customProvider("org-a"), customProvider("org-a")}},
			providerID: "org-a",
		},
		{
			name:       "system id collision",
			cfg:        models.OrganizationConfig{Providers: models.ProviderDocument{customProvider("sys-1")}},
			providerID: "sys-1",
		},
		{
			name: "unknown strategy",
			cfg:  models.OrganizationConfig{RoutingStrategy: "round-robin"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, proberFunc(reachable))
			_, err := f.manager.UpdateOrganizationConfig(context.Background(), "org-1", tt.cfg, "admin-1")

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.providerID, verr.ProviderID)
			assert.Zero(t, f.store.saveCount())
		})
	}
}

func TestUpdateOrganizationConfig_StoresUnimplementedStrategy(t *testing.T) {
	f := newFixture(t, proberFunc(reachable))
	saved, err := f.manager.UpdateOrganizationConfig(context.Background(), "org-1", models.OrganizationConfig{
		Providers:       models.ProviderDocument{customProvider("org-a")},
		RoutingStrategy: models.RoutingParallel,
	}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.RoutingParallel, saved.RoutingStrategy)
}

func TestUpdateOrganizationConfig_VersionConflict(t *testing.T) {
	f := newFixture(t, proberFunc(reachable))
	ctx := context.Background()
	cfg := models.OrganizationConfig{Providers: models.ProviderDocument{customProvider("org-a")}}

	_, err := f.manager.UpdateOrganizationConfig(ctx, "org-1", cfg, "admin-1")
	require.NoError(t, err)
	_, err = f.manager.UpdateOrganizationConfig(ctx, "org-1", cfg, "admin-1")
	require.NoError(t, err)

	cfg.Version = 1
	_, err = f.manager.UpdateOrganizationConfig(ctx, "org-1", cfg, "admin-1")
	assert.ErrorIs(t, err, storage.ErrVersionConflict)
}

func TestClearOrganizationConfig(t *testing.T) {
	f := newFixture(t, proberFunc(reachable))
	ctx := context.Background()

	_, err := f.manager.UpdateOrganizationConfig(ctx, "org-1", models.OrganizationConfig{
		Providers: models.ProviderDocument{customProvider("org-a")},
	}, "admin-1")
	require.NoError(t, err)

	var perr *PermissionError
	require.ErrorAs(t, f.manager.ClearOrganizationConfig(ctx, "org-1", "member-1"), &perr)

	require.NoError(t, f.manager.ClearOrganizationConfig(ctx, "org-1", "owner-1"))
	assert.Equal(t, []string{"sys-1"}, f.registry.Snapshot().Chain("org-1"))
	_, err = f.store.Get(ctx, "org-1")
	assert.ErrorIs(t, err, storage.ErrOrgConfigNotFound)

	// Clearing twice is not an error
	assert.NoError(t, f.manager.ClearOrganizationConfig(ctx, "org-1", "owner-1"))
}

func TestClearOrganizationConfig_DeletedElsewhere(t *testing.T) {
	f := newFixture(t, proberFunc(reachable))
	ctx := context.Background()

	_, err := f.manager.UpdateOrganizationConfig(ctx, "org-1", models.OrganizationConfig{
		Providers: models.ProviderDocument{customProvider("org-a")},
	}, "admin-1")
	require.NoError(t, err)
	require.NoError(t, f.store.Delete(ctx, "org-1"))

	require.NoError(t, f.manager.ClearOrganizationConfig(ctx, "org-1", "owner-1"))
	_, installed := f.registry.Snapshot().Lookup("org-a")
	assert.False(t, installed)
	assert.Empty(t, f.registry.Snapshot().Organizations())
}

func TestLoadAllAndReload(t *testing.T) {
	f := newFixture(t, proberFunc(reachable))
	ctx := context.Background()

	f.store.configs["org-1"] = models.OrganizationConfig{OrganizationID: "org-1", Version: 3,
		Providers: models.ProviderDocument{customProvider("org-1-a")}}
	f.store.configs["org-2"] = models.OrganizationConfig{OrganizationID: "org-2", Version: 1,
		Providers: models.ProviderDocument{customProvider("org-2-a")}}
	// Collides with the system scope and is skipped
	f.store.configs["org-3"] = models.OrganizationConfig{OrganizationID: "org-3", Version: 1,
		Providers: models.ProviderDocument{customProvider("sys-1")}}

	loaded, err := f.manager.LoadAll(ctx)
	assert.Equal(t, 2, loaded)
	require.Error(t, err)
	assert.ErrorIs(t, err, providers.ErrProviderCollision)
	assert.Equal(t, []string{"org-1", "org-2"}, f.registry.Snapshot().Organizations())

	delete(f.store.configs, "org-2")
	require.NoError(t, f.manager.ReloadOrganization(ctx, "org-2"))
	assert.Equal(t, []string{"org-1"}, f.registry.Snapshot().Organizations())

	n, err := f.manager.ReloadSystem(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestLoadAll_ClearsConfigsDeletedFromStorage(t *testing.T) {
	f := newFixture(t, proberFunc(reachable))
	ctx := context.Background()

	_, err := f.manager.UpdateOrganizationConfig(ctx, "org-1", models.OrganizationConfig{
		Providers: models.ProviderDocument{customProvider("org-1-c")},
	}, "admin-1")
	require.NoError(t, err)
	require.Equal(t, []string{"org-1-c", "sys-1"}, f.registry.Snapshot().Chain("org-1"))

	// another instance removed the configuration from the shared store
	require.NoError(t, f.store.Delete(ctx, "org-1"))

	loaded, err := f.manager.LoadAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, loaded)

	snap := f.registry.Snapshot()
	_, installed := snap.Lookup("org-1-c")
	assert.False(t, installed)
	assert.Equal(t, []string{"sys-1"}, snap.Chain("org-1"))
	assert.Empty(t, snap.Organizations())
}

func TestReloadSystem_WithoutSource(t *testing.T) {
	registry, err := providers.NewRegistry(providers.NewFactory(providers.Options{}))
	require.NoError(t, err)
	m := NewManager(auth.NewStaticDirectory(), auth.NewStaticDirectory(), newMemoryStore(), nil, registry, nil, Options{})

	_, err = m.ReloadSystem(context.Background())
	assert.Error(t, err)
	assert.False(t, errors.Is(err, storage.ErrOrgConfigNotFound))
}
