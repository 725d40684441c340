package orgconfig

import (
	"context"
	"sync"
	"time"

	"ai_orchestrator/internal/models"
	"ai_orchestrator/internal/storage"
)

// MemoryStore is a ConfigStore kept in process memory, used when no
// database is configured. It applies the same version rules as
// storage.OrgConfigRepository.
type MemoryStore struct {
	mu      sync.Mutex
	configs map[string]models.OrganizationConfig
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{configs: make(map[string]models.OrganizationConfig)}
}

func (s *MemoryStore) Get(ctx context.Context, orgID string) (*models.OrganizationConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[orgID]
	if !ok {
		return nil, storage.ErrOrgConfigNotFound
	}
	return copyConfig(cfg), nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*models.OrganizationConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.OrganizationConfig, 0, len(s.configs))
	for _, cfg := range s.configs {
		out = append(out, copyConfig(cfg))
	}
	return out, nil
}

// Save stores cfg when cfg.Version matches the stored version (zero when
// nothing is stored) and advances cfg.Version.
func (s *MemoryStore) Save(ctx context.Context, cfg *models.OrganizationConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.configs[cfg.OrganizationID]
	if current.Version != cfg.Version {
		return storage.ErrVersionConflict
	}
	cfg.Version++
	cfg.UpdatedAt = time.Now().UTC()
	s.configs[cfg.OrganizationID] = *copyConfig(*cfg)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, orgID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.configs[orgID]; !ok {
		return storage.ErrOrgConfigNotFound
	}
	delete(s.configs, orgID)
	return nil
}

func copyConfig(cfg models.OrganizationConfig) *models.OrganizationConfig {
	list := make(models.ProviderDocument, len(cfg.Providers))
	for i, p := range cfg.Providers {
		list[i] = p.Clone()
	}
	cfg.Providers = list
	return &cfg
}
