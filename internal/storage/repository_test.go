package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai_orchestrator/internal/auth"
	"ai_orchestrator/internal/models"
)

// openTestDB connects to TEST_DATABASE_URL and applies migrations.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	cfg := DefaultDBConfig()
	cfg.URL = url
	db, err := NewDB(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, db.Migrate(ctx))
	for _, table := range []string{"providers", "organization_configs", "usage_log", "organization_members", "organization_plans"} {
		_, err := db.Conn().ExecContext(ctx, "DELETE FROM "+table)
		require.NoError(t, err)
	}
	return db
}

func testEncryption(t *testing.T) *Encryption {
	t.Helper()
	key, err := GenerateKey(32)
	require.NoError(t, err)
	enc, err := NewEncryptionFromBase64(key)
	require.NoError(t, err)
	return enc
}

func TestProviderRepository_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	repo := NewProviderRepository(db, testEncryption(t))
	ctx := context.Background()

	p := models.Provider{
		ID:          "sys-openai",
		DisplayName: "OpenAI",
		Type:        models.ProviderTypeHostedCompletion,
		Config: models.ConnectionConfig{
			Endpoint: "https://api.openai.com/v1",
			APIKey:   "sk-test",
			Model:    "gpt-4o",
			Headers:  map[string]string{"X-Team": "analytics"},
		},
		Active:   true,
		Priority: 100,
	}
	require.NoError(t, repo.Upsert(ctx, p))

	var stored string
	require.NoError(t, db.Conn().GetContext(ctx, &stored, "SELECT encrypted_api_key FROM providers WHERE id = $1", p.ID))
	assert.NotContains(t, stored, "sk-test")

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	require.NoError(t, repo.SetActive(ctx, p.ID, false))
	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].Active)

	require.NoError(t, repo.Delete(ctx, p.ID))
	_, err = repo.GetByID(ctx, p.ID)
	assert.ErrorIs(t, err, ErrProviderNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, p.ID), ErrProviderNotFound)
}

func TestOrgConfigRepository_Versioning(t *testing.T) {
	db := openTestDB(t)
	repo := NewOrgConfigRepository(db, testEncryption(t))
	ctx := context.Background()

	cfg := &models.OrganizationConfig{
		OrganizationID: "org-1",
		Providers: models.ProviderDocument{{
			ID:          "org-1-custom",
			DisplayName: "Custom",
			Type:        models.ProviderTypeGenericCustom,
			Config:      models.ConnectionConfig{Endpoint: "https://llm.example.com", APIKey: "secret", Model: "m"},
			Active:      true,
			Priority:    10,
		}},
		UpdatedBy: "admin-1",
	}
	require.NoError(t, repo.Save(ctx, cfg))
	assert.Equal(t, 1, cfg.Version)

	require.NoError(t, repo.Save(ctx, cfg))
	assert.Equal(t, 2, cfg.Version)

	stale := *cfg
	stale.Version = 1
	assert.ErrorIs(t, repo.Save(ctx, &stale), ErrVersionConflict)

	got, err := repo.Get(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	require.Len(t, got.Providers, 1)
	assert.Equal(t, "secret", got.Providers[0].Config.APIKey)
	assert.Equal(t, "org-1", got.Providers[0].OrganizationID)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, repo.Delete(ctx, "org-1"))
	_, err = repo.Get(ctx, "org-1")
	assert.ErrorIs(t, err, ErrOrgConfigNotFound)
}

func TestUsageRepository_BatchAndStats(t *testing.T) {
	db := openTestDB(t)
	repo := NewUsageRepository(db)
	ctx := context.Background()
	start := time.Now().Add(-time.Minute)

	entries := []models.UsageEntry{
		usageEntry("sys-1", true),
		usageEntry("sys-1", false),
		usageEntry("sys-2", true),
	}
	require.NoError(t, repo.CreateBatch(ctx, entries))
	// Retried batches are idempotent
	require.NoError(t, repo.CreateBatch(ctx, entries))

	stats, err := repo.StatsSince(ctx, start)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "sys-1", stats[0].ProviderID)
	assert.Equal(t, 2, stats[0].Requests)
	assert.Equal(t, 1, stats[0].Failures)
	assert.NotNil(t, stats[0].LastUsedAt)

	listed, err := repo.ListByCaller(ctx, "user-1", 10)
	require.NoError(t, err)
	assert.Len(t, listed, 3)
}

func TestMembershipRepository_Lookups(t *testing.T) {
	db := openTestDB(t)
	repo := NewMembershipRepository(db)
	ctx := context.Background()

	_, err := repo.RoleFor(ctx, "u1", "org-1")
	assert.ErrorIs(t, err, auth.ErrNoMembership)

	require.NoError(t, repo.SetRole(ctx, "org-1", "u1", auth.RoleAdmin))
	role, err := repo.RoleFor(ctx, "u1", "org-1")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, role)

	plan, err := repo.PlanFor(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, models.TierTrial, plan)

	require.NoError(t, repo.SetPlan(ctx, "org-1", models.TierEnterprise))
	plan, err = repo.PlanFor(ctx, "org-1")
	require.NoError(t, err)
	assert.Equal(t, models.TierEnterprise, plan)

	require.NoError(t, repo.RemoveMember(ctx, "org-1", "u1"))
	assert.ErrorIs(t, repo.RemoveMember(ctx, "org-1", "u1"), ErrMembershipNotFound)
}
