package providers

import (
	"context"
	"net/http"

	"ai_orchestrator/internal/models"
)

// CustomAdapter talks to any OpenAI-compatible endpoint. Credentials are
// sent through the provider's configured headers, plus a bearer token when
// an API key is set.
type CustomAdapter struct {
	client *http.Client
}

func NewCustomAdapter(opts Options) Adapter {
	return &CustomAdapter{client: opts.httpClient()}
}

func (a *CustomAdapter) Type() models.ProviderType {
	return models.ProviderTypeGenericCustom
}

func (a *CustomAdapter) Invoke(ctx context.Context, provider models.Provider, prompt Prompt) (ProviderResponse, error) {
	raw, err := postJSON(ctx, a.client, provider.ID, joinURL(provider.Config.Endpoint, "/chat/completions"), customAuth(provider), completionBody(provider, prompt))
	if err != nil {
		return nil, err
	}

	resp := &CustomResponse{raw: raw}
	if err := decodeCompletion(provider.ID, raw, &resp.chatCompletion); err != nil {
		return nil, err
	}
	return resp, nil
}

func (a *CustomAdapter) Close() error {
	a.client.CloseIdleConnections()
	return nil
}

type chainedAuth []Authenticator

func (c chainedAuth) Apply(req *http.Request) {
	for _, a := range c {
		a.Apply(req)
	}
}

func customAuth(provider models.Provider) Authenticator {
	// Explicit headers are applied last so they can override Authorization.
	return chainedAuth{
		NewSimpleAPIKeyAuth(provider.Config.APIKey, "Authorization", "Bearer "),
		HeaderAuth(provider.Config.Headers),
	}
}
