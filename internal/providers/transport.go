package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// maxErrorBody bounds how much of a failed response is kept for diagnostics.
	maxErrorBody = 2048
	// maxResponseBody caps what is read from a provider at all.
	maxResponseBody = 16 << 20
)

// Options configures the HTTP client shared by an adapter.
type Options struct {
	// Timeout is the client-level ceiling. Per-attempt deadlines come from
	// the caller's context.
	Timeout time.Duration

	// Client overrides the default client, mainly for tests.
	Client *http.Client
}

func (o Options) httpClient() *http.Client {
	if o.Client != nil {
		return o.Client
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

func joinURL(endpoint, path string) string {
	return strings.TrimRight(endpoint, "/") + path
}

// postJSON sends body to url and returns the raw 2xx response body.
func postJSON(ctx context.Context, client *http.Client, providerID, url string, auth Authenticator, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &ProviderError{ProviderID: providerID, Kind: ErrorKindMalformed, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &ProviderError{ProviderID: providerID, Kind: ErrorKindNetwork, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	auth.Apply(req)

	resp, err := client.Do(req)
	if err != nil {
		return nil, transportError(providerID, err)
	}
	defer resp.Body.Close()

	// One byte past the cap tells an oversized body from one that fits.
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody+1))
	if err != nil {
		return nil, transportError(providerID, fmt.Errorf("failed to read response: %w", err))
	}
	if len(respBody) > maxResponseBody {
		return nil, malformed(providerID, fmt.Errorf("response body exceeds %d bytes", maxResponseBody))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(respBody) > maxErrorBody {
			respBody = respBody[:maxErrorBody]
		}
		return nil, &ProviderError{
			ProviderID: providerID,
			Kind:       ErrorKindStatus,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	return respBody, nil
}

// chatMessages renders a prompt as OpenAI/Ollama style messages.
// A provider-level system prompt takes precedence over the built one.
func chatMessages(systemOverride string, prompt Prompt) []map[string]string {
	system := prompt.System
	if systemOverride != "" {
		system = systemOverride
	}
	msgs := make([]map[string]string, 0, 2)
	if system != "" {
		msgs = append(msgs, map[string]string{"role": "system", "content": system})
	}
	msgs = append(msgs, map[string]string{"role": "user", "content": prompt.User})
	return msgs
}
