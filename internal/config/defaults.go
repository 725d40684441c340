package config

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"ai_orchestrator/internal/billing"
	"ai_orchestrator/internal/models"
	"ai_orchestrator/internal/routing"
)

// Defaults is the content of the defaults file: system providers, the
// rate table and tier policy overrides.
//
//	system_providers:
//	  - id: openai-primary
//	    display_name: OpenAI
//	    type: hosted-completion
//	    priority: 100
//	    active: true
//	    config:
//	      endpoint: https://api.openai.com/v1
//	      api_key: ${OPENAI_API_KEY}
//	      model: gpt-4o
//	rates:
//	  - {type: hosted-completion, model: gpt-4o, price_per_1k: 0.01}
//	tier_policies:
//	  trial: {allowed_classes: [system-default], max_system_providers: 1}
//
// Environment variables referenced as ${NAME} are expanded before parsing.
type Defaults struct {
	SystemProviders []models.Provider   `yaml:"system_providers"`
	Rates           []billing.Rate      `yaml:"rates"`
	TierPolicies    routing.PolicyTable `yaml:"tier_policies"`
}

// LoadDefaults reads the defaults file. An empty path yields the built-in
// rates and policies and no system providers.
func LoadDefaults(path string) (*Defaults, error) {
	d := &Defaults{}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read defaults file: %w", err)
		}
		if err := d.decode(raw); err != nil {
			return nil, fmt.Errorf("defaults file %s: %w", path, err)
		}
	}
	if err := d.validate(); err != nil {
		return nil, fmt.Errorf("invalid defaults: %w", err)
	}
	return d, nil
}

func (d *Defaults) decode(raw []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader([]byte(os.ExpandEnv(string(raw)))))
	dec.KnownFields(true)
	if err := dec.Decode(d); err != nil {
		return err
	}
	return nil
}

func (d *Defaults) validate() error {
	seen := make(map[string]bool, len(d.SystemProviders))
	for _, p := range d.SystemProviders {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("system provider %q: %w", p.ID, err)
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate system provider %q", p.ID)
		}
		seen[p.ID] = true
	}
	if _, err := d.RateTable(); err != nil {
		return err
	}
	return d.Policies().Validate()
}

// RateTable builds the rate table: the built-in rates overridden by the
// file's entries.
func (d *Defaults) RateTable() (*billing.RateTable, error) {
	rates := append(billing.DefaultRates(), d.Rates...)
	return billing.NewRateTable(rates)
}

// Policies returns the built-in tier policies merged with the file's overrides.
func (d *Defaults) Policies() routing.PolicyTable {
	return routing.DefaultPolicies().Merge(d.TierPolicies)
}

// List returns copies of the system providers. It lets the defaults file
// serve as the system provider source when no database is configured.
func (d *Defaults) List(ctx context.Context) ([]models.Provider, error) {
	out := make([]models.Provider, len(d.SystemProviders))
	for i, p := range d.SystemProviders {
		out[i] = p.Clone()
	}
	return out, nil
}
