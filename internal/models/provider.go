package models

import (
	"fmt"
	"strings"
)

// ProviderType enumerates supported backend families.
type ProviderType string

const (
	// ProviderTypeHostedCompletion is an OpenAI-style chat completions API.
	ProviderTypeHostedCompletion ProviderType = "hosted-completion"
	// ProviderTypeMessageAPI is an Anthropic-style messages API.
	ProviderTypeMessageAPI ProviderType = "message-api"
	// ProviderTypeLocalServer is a self-hosted model server (Ollama protocol).
	ProviderTypeLocalServer ProviderType = "local-server"
	// ProviderTypeGenericCustom is any OpenAI-compatible endpoint.
	ProviderTypeGenericCustom ProviderType = "generic-custom"
)

// IsValid reports whether t is one of the supported backend families.
func (t ProviderType) IsValid() bool {
	switch t {
	case ProviderTypeHostedCompletion, ProviderTypeMessageAPI, ProviderTypeLocalServer, ProviderTypeGenericCustom:
		return true
	default:
		return false
	}
}

// ProviderClass groups providers for tier visibility rules.
type ProviderClass string

const (
	ProviderClassSystem       ProviderClass = "system-default"
	ProviderClassOrganization ProviderClass = "organization-custom"
	ProviderClassLocal        ProviderClass = "locally-hosted"
)

// ConnectionConfig holds everything an adapter needs to reach a backend.
type ConnectionConfig struct {
	Endpoint     string            `json:"endpoint" yaml:"endpoint"`
	APIKey       string            `json:"api_key,omitempty" yaml:"api_key"`
	Model        string            `json:"model" yaml:"model"`
	MaxTokens    int               `json:"max_tokens,omitempty" yaml:"max_tokens"`
	Temperature  float64           `json:"temperature,omitempty" yaml:"temperature"`
	SystemPrompt string            `json:"system_prompt,omitempty" yaml:"system_prompt"`
	Headers      map[string]string `json:"headers,omitempty" yaml:"headers"`
}

// Provider is a configured inference backend.
//
// Providers are values: code that needs a different provider builds a new
// one (see WithActive, WithPriority) instead of mutating a shared instance.
type Provider struct {
	ID             string           `json:"id" yaml:"id"`
	DisplayName    string           `json:"display_name" yaml:"display_name"`
	Type           ProviderType     `json:"type" yaml:"type"`
	OrganizationID string           `json:"organization_id,omitempty" yaml:"-"`
	Config         ConnectionConfig `json:"config" yaml:"config"`
	Active         bool             `json:"active" yaml:"active"`
	Priority       int              `json:"priority" yaml:"priority"`
}

// Class derives the visibility class of the provider.
// Locally-hosted wins over organization ownership.
func (p Provider) Class() ProviderClass {
	if p.Type == ProviderTypeLocalServer {
		return ProviderClassLocal
	}
	if p.OrganizationID != "" {
		return ProviderClassOrganization
	}
	return ProviderClassSystem
}

// WithActive returns a copy of p with the active flag set.
func (p Provider) WithActive(active bool) Provider {
	p.Config.Headers = cloneHeaders(p.Config.Headers)
	p.Active = active
	return p
}

// WithPriority returns a copy of p with a new priority.
func (p Provider) WithPriority(priority int) Provider {
	p.Config.Headers = cloneHeaders(p.Config.Headers)
	p.Priority = priority
	return p
}

// Clone returns a deep copy of p.
func (p Provider) Clone() Provider {
	p.Config.Headers = cloneHeaders(p.Config.Headers)
	return p
}

// Validate checks the fields every provider needs regardless of type.
func (p Provider) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("id is required")
	}
	if strings.TrimSpace(p.DisplayName) == "" {
		return fmt.Errorf("display_name is required")
	}
	if !p.Type.IsValid() {
		return fmt.Errorf("unsupported provider type %q", p.Type)
	}
	if strings.TrimSpace(p.Config.Endpoint) == "" {
		return fmt.Errorf("endpoint is required")
	}
	if strings.TrimSpace(p.Config.Model) == "" {
		return fmt.Errorf("model is required")
	}
	if p.Config.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must not be negative")
	}
	if p.Config.Temperature < 0 || p.Config.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	// Local servers usually run without credentials.
	if p.Type != ProviderTypeLocalServer && p.Type != ProviderTypeGenericCustom && p.Config.APIKey == "" {
		return fmt.Errorf("api_key is required for %s providers", p.Type)
	}
	return nil
}

func cloneHeaders(h map[string]string) map[string]string {
	if h == nil {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
