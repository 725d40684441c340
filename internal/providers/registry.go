package providers

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"ai_orchestrator/internal/models"
	"ai_orchestrator/internal/routing"
)

// ErrProviderCollision is returned when an install would reuse an id owned by another scope.
var ErrProviderCollision = errors.New("provider id already used by another scope")

// Scope identifies a replaceable group of providers: the system defaults or
// one organization's custom set.
type Scope struct {
	OrganizationID string
}

// SystemScope holds the system-default providers.
var SystemScope = Scope{}

// OrganizationScope returns the scope of one organization.
func OrganizationScope(orgID string) Scope {
	return Scope{OrganizationID: orgID}
}

func (s Scope) IsSystem() bool {
	return s.OrganizationID == ""
}

func (s Scope) String() string {
	if s.IsSystem() {
		return "system"
	}
	return "org:" + s.OrganizationID
}

// Snapshot is an immutable view of the registry. Requests take one snapshot
// and use it for their whole lifetime.
type Snapshot struct {
	version     uint64
	providers   map[string]models.Provider
	scopes      map[Scope][]models.Provider
	systemChain []string
	orgChains   map[string][]string
}

func emptySnapshot() *Snapshot {
	return &Snapshot{
		providers: map[string]models.Provider{},
		scopes:    map[Scope][]models.Provider{},
		orgChains: map[string][]string{},
	}
}

// Version increases with every install or clear.
func (s *Snapshot) Version() uint64 {
	return s.version
}

// Lookup returns a copy of the provider with the given id.
func (s *Snapshot) Lookup(id string) (models.Provider, bool) {
	p, ok := s.providers[id]
	if !ok {
		return models.Provider{}, false
	}
	return p.Clone(), true
}

// ClassOf implements routing.ClassLookup.
func (s *Snapshot) ClassOf(id string) (models.ProviderClass, bool) {
	p, ok := s.providers[id]
	if !ok {
		return "", false
	}
	return p.Class(), true
}

// Chain returns the fallback chain for an organization. Organizations
// without custom providers, and the empty id, get the system chain.
func (s *Snapshot) Chain(orgID string) []string {
	chain := s.systemChain
	if c, ok := s.orgChains[orgID]; ok && orgID != "" {
		chain = c
	}
	out := make([]string, len(chain))
	copy(out, chain)
	return out
}

// ScopeProviders returns a copy of the providers installed in scope.
func (s *Snapshot) ScopeProviders(scope Scope) []models.Provider {
	return cloneProviders(s.scopes[scope])
}

// ActiveProviders returns every active provider, sorted by id.
func (s *Snapshot) ActiveProviders() []models.Provider {
	out := make([]models.Provider, 0, len(s.providers))
	for _, p := range s.providers {
		if p.Active {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Organizations returns the ids of organizations with custom providers.
func (s *Snapshot) Organizations() []string {
	out := make([]string, 0, len(s.orgChains))
	for id := range s.orgChains {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Registry holds the installed providers and the adapters that serve them.
// Readers load the current snapshot without locking; writers serialize on mu
// and publish a new snapshot.
type Registry struct {
	mu       sync.Mutex
	current  atomic.Pointer[Snapshot]
	adapters map[models.ProviderType]Adapter
}

// NewRegistry creates an empty registry with one adapter per supported type.
func NewRegistry(factory *Factory) (*Registry, error) {
	r := &Registry{adapters: make(map[models.ProviderType]Adapter)}
	for _, t := range factory.SupportedTypes() {
		a, err := factory.Create(t)
		if err != nil {
			return nil, err
		}
		r.adapters[t] = a
	}
	r.current.Store(emptySnapshot())
	return r, nil
}

// Snapshot returns the current immutable snapshot.
func (r *Registry) Snapshot() *Snapshot {
	return r.current.Load()
}

// ActiveProviders returns a copy of every active provider.
func (r *Registry) ActiveProviders() []models.Provider {
	return r.Snapshot().ActiveProviders()
}

// Adapter returns the adapter for a provider type.
func (r *Registry) Adapter(t models.ProviderType) (Adapter, bool) {
	a, ok := r.adapters[t]
	return a, ok
}

// Install replaces every provider of scope with providers. The ownership of
// each provider is set from the scope. Ids must be unique and must not be
// used by another scope.
func (r *Registry) Install(scope Scope, providers []models.Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.current.Load()

	installed := make([]models.Provider, 0, len(providers))
	seen := make(map[string]bool, len(providers))
	for _, p := range providers {
		if seen[p.ID] {
			return fmt.Errorf("duplicate provider id %q in %s", p.ID, scope)
		}
		seen[p.ID] = true

		if existing, ok := cur.providers[p.ID]; ok && scopeOf(existing) != scope {
			return fmt.Errorf("%w: %q", ErrProviderCollision, p.ID)
		}
		if _, ok := r.adapters[p.Type]; !ok {
			return fmt.Errorf("provider %q: unsupported provider type %s", p.ID, p.Type)
		}

		p = p.Clone()
		p.OrganizationID = scope.OrganizationID
		installed = append(installed, p)
	}

	next := cur.with(scope, installed)
	r.current.Store(next)
	return nil
}

// ClearOrganization removes one organization's providers. Other scopes are untouched.
func (r *Registry) ClearOrganization(orgID string) {
	if orgID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := r.current.Load()
	if _, ok := cur.scopes[OrganizationScope(orgID)]; !ok {
		return
	}
	r.current.Store(cur.with(OrganizationScope(orgID), nil))
}

// Close closes every adapter.
func (r *Registry) Close() error {
	var errs []error
	for _, a := range r.adapters {
		if err := a.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func scopeOf(p models.Provider) Scope {
	return OrganizationScope(p.OrganizationID)
}

// with builds the snapshot that results from replacing scope. A nil list
// removes the scope entirely.
func (s *Snapshot) with(scope Scope, providers []models.Provider) *Snapshot {
	next := &Snapshot{
		version:   s.version + 1,
		providers: make(map[string]models.Provider, len(s.providers)+len(providers)),
		scopes:    make(map[Scope][]models.Provider, len(s.scopes)+1),
		orgChains: make(map[string][]string, len(s.orgChains)+1),
	}

	for sc, list := range s.scopes {
		if sc == scope {
			continue
		}
		next.scopes[sc] = list
	}
	if providers != nil || scope.IsSystem() {
		next.scopes[scope] = providers
	}

	for _, list := range next.scopes {
		for _, p := range list {
			next.providers[p.ID] = p
		}
	}

	system := next.scopes[SystemScope]
	next.systemChain = routing.BuildChain(system)
	for sc, list := range next.scopes {
		if sc.IsSystem() {
			continue
		}
		combined := make([]models.Provider, 0, len(system)+len(list))
		combined = append(combined, system...)
		combined = append(combined, list...)
		next.orgChains[sc.OrganizationID] = routing.BuildChain(combined)
	}

	return next
}

func cloneProviders(in []models.Provider) []models.Provider {
	out := make([]models.Provider, len(in))
	for i, p := range in {
		out[i] = p.Clone()
	}
	return out
}
