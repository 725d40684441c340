package providers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai_orchestrator/internal/models"
)

func testProvider(t models.ProviderType, endpoint string) models.Provider {
	return models.Provider{
		ID:          "p-" + string(t),
		DisplayName: string(t),
		Type:        t,
		Active:      true,
		Config: models.ConnectionConfig{
			Endpoint:  endpoint,
			APIKey:    "secret",
			Model:     "model-x",
			MaxTokens: 256,
		},
	}
}

var testPrompt = Prompt{System: "sys", User: "analyze this"}

func TestHostedCompletionAdapter_Invoke(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "model-x", body["model"])
		assert.Equal(t, false, body["stream"])

		w.Write([]byte(`{"id":"c1","model":"model-x","choices":[{"message":{"role":"assistant","content":"insight"}}],"usage":{"prompt_tokens":300,"completion_tokens":200,"total_tokens":500}}`))
	}))
	defer server.Close()

	adapter := NewHostedCompletionAdapter(Options{})
	resp, err := adapter.Invoke(context.Background(), testProvider(models.ProviderTypeHostedCompletion, server.URL), testPrompt)
	require.NoError(t, err)

	assert.Equal(t, models.ProviderTypeHostedCompletion, resp.Family())
	n := resp.Normalize()
	assert.Equal(t, "insight", n.Content)
	assert.Equal(t, 500, n.TokensUsed)
	assert.Equal(t, "model-x", n.Model)
}

func TestMessageAPIAdapter_Invoke(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		assert.Empty(t, r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "sys", body["system"])

		w.Write([]byte(`{"id":"m1","model":"model-x","content":[{"type":"text","text":"part one "},{"type":"text","text":"part two"}],"usage":{"input_tokens":120,"output_tokens":80}}`))
	}))
	defer server.Close()

	resp, err := NewMessageAPIAdapter(Options{}).Invoke(context.Background(), testProvider(models.ProviderTypeMessageAPI, server.URL), testPrompt)
	require.NoError(t, err)

	n := resp.Normalize()
	assert.Equal(t, "part one part two", n.Content)
	assert.Equal(t, 200, n.TokensUsed)
}

func TestLocalServerAdapter_InvokeAndProbe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			w.Write([]byte(`{"models":[{"name":"model-x"}]}`))
		case "/api/chat":
			w.Write([]byte(`{"model":"model-x","message":{"role":"assistant","content":"local answer"},"done":true,"prompt_eval_count":40,"eval_count":60}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	adapter := NewLocalServerAdapter(Options{}).(*LocalServerAdapter)
	require.NoError(t, adapter.Probe(context.Background(), server.URL))

	resp, err := adapter.Invoke(context.Background(), testProvider(models.ProviderTypeLocalServer, server.URL), testPrompt)
	require.NoError(t, err)
	assert.Equal(t, models.ProviderTypeLocalServer, resp.Family())
	assert.Equal(t, 100, resp.Normalize().TokensUsed)
	assert.Equal(t, "local answer", resp.Normalize().Content)
}

func TestLocalServerAdapter_ProbeUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	adapter := NewLocalServerAdapter(Options{}).(*LocalServerAdapter)
	assert.Error(t, adapter.Probe(context.Background(), url))
}

type zeros struct{}

func (zeros) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

func TestAdapters_SendConfiguredHeaders(t *testing.T) {
	cases := map[models.ProviderType]struct {
		adapter Adapter
		reply   string
	}{
		models.ProviderTypeHostedCompletion: {
			adapter: NewHostedCompletionAdapter(Options{}),
			reply:   `{"model":"m","choices":[{"message":{"content":"ok"}}],"usage":{"total_tokens":3}}`,
		},
		models.ProviderTypeMessageAPI: {
			adapter: NewMessageAPIAdapter(Options{}),
			reply:   `{"model":"m","content":[{"type":"text","text":"ok"}],"usage":{"input_tokens":1,"output_tokens":2}}`,
		},
	}

	for typ, tc := range cases {
		t.Run(string(typ), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "tenant-7", r.Header.Get("X-Tenant"))
				w.Write([]byte(tc.reply))
			}))
			defer server.Close()

			p := testProvider(typ, server.URL)
			p.Config.Headers = map[string]string{"X-Tenant": "tenant-7"}
			resp, err := tc.adapter.Invoke(context.Background(), p, testPrompt)
			require.NoError(t, err)
			assert.Equal(t, 3, resp.Normalize().TokensUsed)
		})
	}
}

func TestCustomAdapter_SendsConfiguredHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tenant-7", r.Header.Get("X-Tenant"))
		assert.Equal(t, "Token abc", r.Header.Get("Authorization"))
		w.Write([]byte(`{"model":"m","choices":[{"message":{"content":"ok"}}],"usage":{"total_tokens":9}}`))
	}))
	defer server.Close()

	p := testProvider(models.ProviderTypeGenericCustom, server.URL)
	p.Config.Headers = map[string]string{"X-Tenant": "tenant-7", "Authorization": "Token abc"}

	resp, err := NewCustomAdapter(Options{}).Invoke(context.Background(), p, testPrompt)
	require.NoError(t, err)
	assert.Equal(t, models.ProviderTypeGenericCustom, resp.Family())
	assert.Equal(t, 9, resp.Normalize().TokensUsed)
}

func TestAdapter_ErrorKinds(t *testing.T) {
	t.Run("status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		}))
		defer server.Close()

		_, err := NewHostedCompletionAdapter(Options{}).Invoke(context.Background(), testProvider(models.ProviderTypeHostedCompletion, server.URL), testPrompt)
		var pe *ProviderError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, ErrorKindStatus, pe.Kind)
		assert.Equal(t, http.StatusServiceUnavailable, pe.StatusCode)
		assert.Equal(t, "p-hosted-completion", pe.ProviderID)
	})

	t.Run("malformed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`not json`))
		}))
		defer server.Close()

		_, err := NewMessageAPIAdapter(Options{}).Invoke(context.Background(), testProvider(models.ProviderTypeMessageAPI, server.URL), testPrompt)
		var pe *ProviderError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, ErrorKindMalformed, pe.Kind)
	})

	t.Run("local server shape", func(t *testing.T) {
		for name, body := range map[string]string{
			"unexpected": `{"unexpected":"shape"}`,
			"not done":   `{"model":"m","message":{"role":"assistant","content":"partial"},"done":false}`,
		} {
			t.Run(name, func(t *testing.T) {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.Write([]byte(body))
				}))
				defer server.Close()

				resp, err := NewLocalServerAdapter(Options{}).Invoke(context.Background(), testProvider(models.ProviderTypeLocalServer, server.URL), testPrompt)
				assert.Nil(t, resp)
				var pe *ProviderError
				require.True(t, errors.As(err, &pe))
				assert.Equal(t, ErrorKindMalformed, pe.Kind)
			})
		}
	})

	t.Run("oversized body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.CopyN(w, zeros{}, maxResponseBody+1)
		}))
		defer server.Close()

		_, err := NewHostedCompletionAdapter(Options{}).Invoke(context.Background(), testProvider(models.ProviderTypeHostedCompletion, server.URL), testPrompt)
		var pe *ProviderError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, ErrorKindMalformed, pe.Kind)
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer server.Close()
		defer close(release)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := NewLocalServerAdapter(Options{}).Invoke(ctx, testProvider(models.ProviderTypeLocalServer, server.URL), testPrompt)
		var pe *ProviderError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, ErrorKindTimeout, pe.Kind)
	})

	t.Run("network", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		_, err := NewCustomAdapter(Options{}).Invoke(context.Background(), testProvider(models.ProviderTypeGenericCustom, url), testPrompt)
		var pe *ProviderError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, ErrorKindNetwork, pe.Kind)
	})
}

func TestJSONPayloadBuilder(t *testing.T) {
	req, err := models.NewAnalysisRequest("u1", "org", models.TierStandard,
		json.RawMessage(`{"sales":[1,2,3]}`), json.RawMessage(`{"region":"eu"}`), nil, "Q3")
	require.NoError(t, err)

	prompt, err := JSONPayloadBuilder{}.Build(req)
	require.NoError(t, err)
	assert.Equal(t, defaultSystemPrompt, prompt.System)
	assert.Contains(t, prompt.User, `{"sales":[1,2,3]}`)
	assert.Contains(t, prompt.User, "Time frame: Q3")
	assert.NotContains(t, prompt.User, "Requirements")

	req.Data = nil
	_, err = JSONPayloadBuilder{}.Build(req)
	assert.Error(t, err)
}
