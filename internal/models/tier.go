package models

import "strings"

// Tier is a subscription level gating which providers a caller may use.
type Tier string

const (
	TierTrial        Tier = "trial"
	TierStandard     Tier = "standard"
	TierProfessional Tier = "professional"
	TierEnterprise   Tier = "enterprise"
)

// AllTiers lists tiers from lowest to highest.
var AllTiers = []Tier{TierTrial, TierStandard, TierProfessional, TierEnterprise}

// ParseTier normalizes a tier name. Unknown names map to the lowest tier.
func ParseTier(s string) Tier {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if t.IsValid() {
		return t
	}
	return TierTrial
}

// IsValid reports whether t is a known tier.
func (t Tier) IsValid() bool {
	return t.Rank() >= 0
}

// Rank returns the position of the tier, or -1 when unknown.
func (t Tier) Rank() int {
	for i, known := range AllTiers {
		if known == t {
			return i
		}
	}
	return -1
}

// AtLeast reports whether t is the same as or above other.
func (t Tier) AtLeast(other Tier) bool {
	return t.Rank() >= other.Rank() && t.Rank() >= 0
}
