package billing

import (
	"fmt"

	"ai_orchestrator/internal/models"
)

// Rate is the price of one model, in USD per 1000 tokens.
type Rate struct {
	ProviderType models.ProviderType `yaml:"type" json:"type"`
	Model        string              `yaml:"model" json:"model"`
	PricePer1K   float64             `yaml:"price_per_1k" json:"price_per_1k"`
}

// DefaultRates is the built-in rate table. Deployments override it from the defaults file.
func DefaultRates() []Rate {
	return []Rate{
		{ProviderType: models.ProviderTypeHostedCompletion, Model: "gpt-4o", PricePer1K: 0.01},
		{ProviderType: models.ProviderTypeHostedCompletion, Model: "gpt-4o-mini", PricePer1K: 0.0006},
		{ProviderType: models.ProviderTypeHostedCompletion, Model: "gpt-4-turbo", PricePer1K: 0.03},
		{ProviderType: models.ProviderTypeHostedCompletion, Model: "gpt-3.5-turbo", PricePer1K: 0.002},
		{ProviderType: models.ProviderTypeMessageAPI, Model: "claude-3-5-sonnet-20241022", PricePer1K: 0.009},
		{ProviderType: models.ProviderTypeMessageAPI, Model: "claude-3-haiku-20240307", PricePer1K: 0.00075},
		{ProviderType: models.ProviderTypeMessageAPI, Model: "claude-3-opus-20240229", PricePer1K: 0.045},
	}
}

// CostCalculator estimates the cost of a provider call.
type CostCalculator interface {
	Estimate(providerType models.ProviderType, model string, tokens int) float64
}

// RateTable is an immutable lookup of rates by (provider type, model).
type RateTable struct {
	rates    map[models.ProviderType]map[string]float64
	cheapest map[models.ProviderType]float64
}

// NewRateTable builds a table. Later entries override earlier ones for the same key.
func NewRateTable(rates []Rate) (*RateTable, error) {
	t := &RateTable{
		rates:    make(map[models.ProviderType]map[string]float64),
		cheapest: make(map[models.ProviderType]float64),
	}
	for _, r := range rates {
		if !r.ProviderType.IsValid() {
			return nil, fmt.Errorf("rate for %q: unsupported provider type %q", r.Model, r.ProviderType)
		}
		if r.Model == "" {
			return nil, fmt.Errorf("rate for %s: model is required", r.ProviderType)
		}
		if r.PricePer1K < 0 {
			return nil, fmt.Errorf("rate for %s/%s: price must not be negative", r.ProviderType, r.Model)
		}
		if t.rates[r.ProviderType] == nil {
			t.rates[r.ProviderType] = make(map[string]float64)
		}
		t.rates[r.ProviderType][r.Model] = r.PricePer1K
	}
	for typ, byModel := range t.rates {
		first := true
		for _, price := range byModel {
			if first || price < t.cheapest[typ] {
				t.cheapest[typ] = price
				first = false
			}
		}
	}
	return t, nil
}

// Lookup returns the exact rate for a model.
func (t *RateTable) Lookup(providerType models.ProviderType, model string) (float64, bool) {
	price, ok := t.rates[providerType][model]
	return price, ok
}

// Estimate returns the cost of tokens on a model. Local servers are free.
// An unknown model is priced at the cheapest rate known for its type, and a
// type without any rate costs nothing.
func (t *RateTable) Estimate(providerType models.ProviderType, model string, tokens int) float64 {
	if providerType == models.ProviderTypeLocalServer || tokens <= 0 {
		return 0
	}
	price, ok := t.Lookup(providerType, model)
	if !ok {
		price = t.cheapest[providerType]
	}
	return price * float64(tokens) / 1000
}
