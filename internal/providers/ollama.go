package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"ai_orchestrator/internal/models"
)

// LocalServerAdapter speaks the Ollama chat protocol used by self-hosted servers.
type LocalServerAdapter struct {
	client *http.Client
}

func NewLocalServerAdapter(opts Options) Adapter {
	return &LocalServerAdapter{client: opts.httpClient()}
}

func (a *LocalServerAdapter) Type() models.ProviderType {
	return models.ProviderTypeLocalServer
}

func (a *LocalServerAdapter) Invoke(ctx context.Context, provider models.Provider, prompt Prompt) (ProviderResponse, error) {
	body := map[string]any{
		"model":    provider.Config.Model,
		"messages": chatMessages(provider.Config.SystemPrompt, prompt),
		"stream":   false,
	}
	options := map[string]any{}
	if provider.Config.Temperature > 0 {
		options["temperature"] = provider.Config.Temperature
	}
	if provider.Config.MaxTokens > 0 {
		options["num_predict"] = provider.Config.MaxTokens
	}
	if len(options) > 0 {
		body["options"] = options
	}

	raw, err := postJSON(ctx, a.client, provider.ID, joinURL(provider.Config.Endpoint, "/api/chat"), HeaderAuth(provider.Config.Headers), body)
	if err != nil {
		return nil, err
	}

	resp := &LocalServerResponse{raw: raw}
	if err := json.Unmarshal(raw, resp); err != nil {
		return nil, malformed(provider.ID, fmt.Errorf("failed to decode response: %w", err))
	}
	// With stream disabled a complete reply is a single done message.
	if resp.Message.Role == "" || !resp.Done {
		return nil, malformed(provider.ID, fmt.Errorf("response has no completed message"))
	}
	return resp, nil
}

// Probe checks that a local server answers at endpoint by listing its models.
func (a *LocalServerAdapter) Probe(ctx context.Context, endpoint string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, joinURL(endpoint, "/api/tags"), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("endpoint unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("endpoint answered with status %d", resp.StatusCode)
	}
	return nil
}

func (a *LocalServerAdapter) Close() error {
	a.client.CloseIdleConnections()
	return nil
}
