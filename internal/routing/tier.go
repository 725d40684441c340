package routing

import (
	"fmt"
	"sync/atomic"

	"ai_orchestrator/internal/models"
)

// TierPolicy describes what one tier may see.
type TierPolicy struct {
	// AllowedClasses lists the provider classes visible to the tier.
	AllowedClasses []models.ProviderClass `yaml:"allowed_classes" json:"allowed_classes"`

	// MaxSystemProviders caps how many system-default providers are kept,
	// counted in chain order. Zero means no cap.
	MaxSystemProviders int `yaml:"max_system_providers" json:"max_system_providers"`
}

func (p TierPolicy) allows(class models.ProviderClass) bool {
	for _, c := range p.AllowedClasses {
		if c == class {
			return true
		}
	}
	return false
}

// PolicyTable maps every tier to its policy.
type PolicyTable map[models.Tier]TierPolicy

// DefaultPolicies is the built-in tier table.
func DefaultPolicies() PolicyTable {
	return PolicyTable{
		models.TierTrial: {
			AllowedClasses:     []models.ProviderClass{models.ProviderClassSystem},
			MaxSystemProviders: 2,
		},
		models.TierStandard: {
			AllowedClasses: []models.ProviderClass{models.ProviderClassSystem},
		},
		models.TierProfessional: {
			AllowedClasses: []models.ProviderClass{models.ProviderClassSystem, models.ProviderClassOrganization},
		},
		models.TierEnterprise: {
			AllowedClasses: []models.ProviderClass{models.ProviderClassSystem, models.ProviderClassOrganization, models.ProviderClassLocal},
		},
	}
}

// Merge returns a copy of t with the entries of overrides replacing its own.
func (t PolicyTable) Merge(overrides PolicyTable) PolicyTable {
	out := make(PolicyTable, len(t)+len(overrides))
	for tier, p := range t {
		out[tier] = p
	}
	for tier, p := range overrides {
		out[tier] = p
	}
	return out
}

// Validate enforces that the lower tiers never see organization or local providers.
func (t PolicyTable) Validate() error {
	for _, tier := range models.AllTiers {
		p, ok := t[tier]
		if !ok {
			return fmt.Errorf("no policy for tier %q", tier)
		}
		if tier.AtLeast(models.TierProfessional) {
			continue
		}
		if p.allows(models.ProviderClassOrganization) || p.allows(models.ProviderClassLocal) {
			return fmt.Errorf("tier %q may only see system-default providers", tier)
		}
	}
	return nil
}

// ClassLookup reports the class of a provider id in the chain.
type ClassLookup interface {
	ClassOf(id string) (models.ProviderClass, bool)
}

// TierResolver filters a chain to the providers a tier is entitled to.
// The table can be swapped at runtime with SetPolicies.
type TierResolver struct {
	policies atomic.Pointer[PolicyTable]
}

// NewTierResolver creates a resolver. A nil table selects DefaultPolicies.
func NewTierResolver(policies PolicyTable) (*TierResolver, error) {
	r := &TierResolver{}
	if err := r.SetPolicies(policies); err != nil {
		return nil, err
	}
	return r, nil
}

// SetPolicies installs a new policy table.
func (r *TierResolver) SetPolicies(policies PolicyTable) error {
	if policies == nil {
		policies = DefaultPolicies()
	}
	if err := policies.Validate(); err != nil {
		return fmt.Errorf("invalid tier policy: %w", err)
	}
	r.policies.Store(&policies)
	return nil
}

// Policy returns the policy applied to tier. Unknown tiers get the lowest tier's policy.
func (r *TierResolver) Policy(tier models.Tier) TierPolicy {
	table := *r.policies.Load()
	if p, ok := table[tier]; ok {
		return p
	}
	return table[models.TierTrial]
}

// Resolve returns the subsequence of chain visible to tier, in chain order.
// Ids unknown to lookup are dropped.
func (r *TierResolver) Resolve(tier models.Tier, chain []string, lookup ClassLookup) []string {
	policy := r.Policy(tier)

	allowed := make([]string, 0, len(chain))
	systemSeen := 0
	for _, id := range chain {
		class, ok := lookup.ClassOf(id)
		if !ok || !policy.allows(class) {
			continue
		}
		if class == models.ProviderClassSystem {
			if policy.MaxSystemProviders > 0 && systemSeen >= policy.MaxSystemProviders {
				continue
			}
			systemSeen++
		}
		allowed = append(allowed, id)
	}
	return allowed
}
