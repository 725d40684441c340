package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"ai_orchestrator/internal/models"
)

const (
	anthropicVersion          = "2023-06-01"
	messageAPIDefaultMaxToken = 1024
)

// MessageAPIAdapter speaks the Anthropic messages protocol.
type MessageAPIAdapter struct {
	client *http.Client
}

func NewMessageAPIAdapter(opts Options) Adapter {
	return &MessageAPIAdapter{client: opts.httpClient()}
}

func (a *MessageAPIAdapter) Type() models.ProviderType {
	return models.ProviderTypeMessageAPI
}

func (a *MessageAPIAdapter) Invoke(ctx context.Context, provider models.Provider, prompt Prompt) (ProviderResponse, error) {
	// max_tokens is mandatory on this API
	maxTokens := provider.Config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = messageAPIDefaultMaxToken
	}

	body := map[string]any{
		"model":      provider.Config.Model,
		"max_tokens": maxTokens,
		"messages":   []map[string]string{{"role": "user", "content": prompt.User}},
	}
	system := prompt.System
	if provider.Config.SystemPrompt != "" {
		system = provider.Config.SystemPrompt
	}
	if system != "" {
		body["system"] = system
	}
	if provider.Config.Temperature > 0 {
		body["temperature"] = provider.Config.Temperature
	}

	auth := chainedAuth{
		NewSimpleAPIKeyAuth(provider.Config.APIKey, "x-api-key", ""),
		HeaderAuth{"anthropic-version": anthropicVersion},
		HeaderAuth(provider.Config.Headers),
	}

	raw, err := postJSON(ctx, a.client, provider.ID, joinURL(provider.Config.Endpoint, "/v1/messages"), auth, body)
	if err != nil {
		return nil, err
	}

	resp := &MessageAPIResponse{raw: raw}
	if err := json.Unmarshal(raw, resp); err != nil {
		return nil, malformed(provider.ID, fmt.Errorf("failed to decode response: %w", err))
	}
	if len(resp.Content) == 0 {
		return nil, malformed(provider.ID, fmt.Errorf("response has no content blocks"))
	}
	return resp, nil
}

func (a *MessageAPIAdapter) Close() error {
	a.client.CloseIdleConnections()
	return nil
}
