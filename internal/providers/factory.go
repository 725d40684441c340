package providers

import (
	"fmt"
	"sort"
	"sync"

	"ai_orchestrator/internal/models"
)

// AdapterCreator builds the adapter for one provider type.
type AdapterCreator func(opts Options) Adapter

// Factory creates adapters by provider type.
type Factory struct {
	mu       sync.RWMutex
	opts     Options
	creators map[models.ProviderType]AdapterCreator
}

// NewFactory creates a factory with the built-in adapters registered.
func NewFactory(opts Options) *Factory {
	f := &Factory{
		opts:     opts,
		creators: make(map[models.ProviderType]AdapterCreator),
	}

	f.Register(models.ProviderTypeHostedCompletion, NewHostedCompletionAdapter)
	f.Register(models.ProviderTypeMessageAPI, NewMessageAPIAdapter)
	f.Register(models.ProviderTypeLocalServer, NewLocalServerAdapter)
	f.Register(models.ProviderTypeGenericCustom, NewCustomAdapter)

	return f
}

// Register replaces the creator for a provider type.
func (f *Factory) Register(t models.ProviderType, creator AdapterCreator) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creators[t] = creator
}

// Create builds the adapter for t.
func (f *Factory) Create(t models.ProviderType) (Adapter, error) {
	f.mu.RLock()
	creator, exists := f.creators[t]
	f.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("unsupported provider type: %s", t)
	}
	return creator(f.opts), nil
}

// SupportedTypes returns the registered provider types, sorted.
func (f *Factory) SupportedTypes() []models.ProviderType {
	f.mu.RLock()
	defer f.mu.RUnlock()

	types := make([]models.ProviderType, 0, len(f.creators))
	for t := range f.creators {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
