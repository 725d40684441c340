package providers

import (
	"context"
	"encoding/json"

	"ai_orchestrator/internal/models"
)

// Adapter is implemented by each backend family (hosted completion, message
// API, local server, custom). One adapter serves every provider of its type;
// connection details come from the provider passed to Invoke.
type Adapter interface {
	// Type returns the provider type this adapter speaks.
	Type() models.ProviderType

	// Invoke sends one request to the provider's backend. Every failure is
	// returned as a *ProviderError.
	Invoke(ctx context.Context, provider models.Provider, prompt Prompt) (ProviderResponse, error)

	// Close releases idle connections.
	Close() error
}

// Prompt is the backend-neutral request content produced by a PayloadBuilder.
type Prompt struct {
	System string
	User   string
}

// PayloadBuilder turns an analysis request into prompt content.
type PayloadBuilder interface {
	Build(req models.AnalysisRequest) (Prompt, error)
}

// NormalizedResponse is the family-independent view of a successful call.
type NormalizedResponse struct {
	Content    string
	Model      string
	TokensUsed int
	Raw        json.RawMessage
}

// ProviderResponse is one of HostedCompletionResponse, MessageAPIResponse,
// LocalServerResponse or CustomResponse.
type ProviderResponse interface {
	Family() models.ProviderType
	Normalize() NormalizedResponse

	sealed()
}

// chatCompletion is the OpenAI-compatible response body shared by the
// hosted-completion and generic-custom families.
type chatCompletion struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (c chatCompletion) content() string {
	if len(c.Choices) == 0 {
		return ""
	}
	return c.Choices[0].Message.Content
}

func (c chatCompletion) tokens() int {
	if c.Usage.TotalTokens > 0 {
		return c.Usage.TotalTokens
	}
	return c.Usage.PromptTokens + c.Usage.CompletionTokens
}

// HostedCompletionResponse is a chat completions reply.
type HostedCompletionResponse struct {
	chatCompletion
	raw json.RawMessage
}

func (r *HostedCompletionResponse) Family() models.ProviderType {
	return models.ProviderTypeHostedCompletion
}

func (r *HostedCompletionResponse) Normalize() NormalizedResponse {
	return NormalizedResponse{Content: r.content(), Model: r.Model, TokensUsed: r.tokens(), Raw: r.raw}
}

func (*HostedCompletionResponse) sealed() {}

// MessageAPIResponse is a messages API reply.
type MessageAPIResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`

	raw json.RawMessage
}

func (r *MessageAPIResponse) Family() models.ProviderType {
	return models.ProviderTypeMessageAPI
}

func (r *MessageAPIResponse) Normalize() NormalizedResponse {
	text := ""
	for _, block := range r.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return NormalizedResponse{
		Content:    text,
		Model:      r.Model,
		TokensUsed: r.Usage.InputTokens + r.Usage.OutputTokens,
		Raw:        r.raw,
	}
}

func (*MessageAPIResponse) sealed() {}

// LocalServerResponse is a non-streaming chat reply from a local model server.
type LocalServerResponse struct {
	Model   string `json:"model"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done            bool `json:"done"`
	PromptEvalCount int  `json:"prompt_eval_count"`
	EvalCount       int  `json:"eval_count"`

	raw json.RawMessage
}

func (r *LocalServerResponse) Family() models.ProviderType {
	return models.ProviderTypeLocalServer
}

func (r *LocalServerResponse) Normalize() NormalizedResponse {
	return NormalizedResponse{
		Content:    r.Message.Content,
		Model:      r.Model,
		TokensUsed: r.PromptEvalCount + r.EvalCount,
		Raw:        r.raw,
	}
}

func (*LocalServerResponse) sealed() {}

// CustomResponse is a reply from an OpenAI-compatible custom endpoint.
type CustomResponse struct {
	chatCompletion
	raw json.RawMessage
}

func (r *CustomResponse) Family() models.ProviderType {
	return models.ProviderTypeGenericCustom
}

func (r *CustomResponse) Normalize() NormalizedResponse {
	return NormalizedResponse{Content: r.content(), Model: r.Model, TokensUsed: r.tokens(), Raw: r.raw}
}

func (*CustomResponse) sealed() {}
