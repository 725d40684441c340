package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"ai_orchestrator/internal/models"
)

// HostedCompletionAdapter speaks the OpenAI chat completions protocol.
type HostedCompletionAdapter struct {
	client *http.Client
}

// NewHostedCompletionAdapter creates a hosted completion adapter.
func NewHostedCompletionAdapter(opts Options) Adapter {
	return &HostedCompletionAdapter{client: opts.httpClient()}
}

func (a *HostedCompletionAdapter) Type() models.ProviderType {
	return models.ProviderTypeHostedCompletion
}

// Invoke sends a non-streaming chat completion request.
func (a *HostedCompletionAdapter) Invoke(ctx context.Context, provider models.Provider, prompt Prompt) (ProviderResponse, error) {
	body := completionBody(provider, prompt)
	auth := chainedAuth{
		NewSimpleAPIKeyAuth(provider.Config.APIKey, "Authorization", "Bearer "),
		HeaderAuth(provider.Config.Headers),
	}

	raw, err := postJSON(ctx, a.client, provider.ID, joinURL(provider.Config.Endpoint, "/chat/completions"), auth, body)
	if err != nil {
		return nil, err
	}

	resp := &HostedCompletionResponse{raw: raw}
	if err := decodeCompletion(provider.ID, raw, &resp.chatCompletion); err != nil {
		return nil, err
	}
	return resp, nil
}

func (a *HostedCompletionAdapter) Close() error {
	a.client.CloseIdleConnections()
	return nil
}

func completionBody(provider models.Provider, prompt Prompt) map[string]any {
	body := map[string]any{
		"model":    provider.Config.Model,
		"messages": chatMessages(provider.Config.SystemPrompt, prompt),
		"stream":   false,
	}
	if provider.Config.MaxTokens > 0 {
		body["max_tokens"] = provider.Config.MaxTokens
	}
	if provider.Config.Temperature > 0 {
		body["temperature"] = provider.Config.Temperature
	}
	return body
}

func decodeCompletion(providerID string, raw []byte, out *chatCompletion) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return malformed(providerID, fmt.Errorf("failed to decode response: %w", err))
	}
	if len(out.Choices) == 0 {
		return malformed(providerID, fmt.Errorf("response has no choices"))
	}
	return nil
}
