package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// AnalysisRequest is the caller-facing input of the engine.
// Build it with NewAnalysisRequest and treat it as read-only afterwards.
type AnalysisRequest struct {
	CallerID       string          `json:"caller_id"`
	OrganizationID string          `json:"organization_id,omitempty"`
	Tier           Tier            `json:"tier"`
	Data           json.RawMessage `json:"data,omitempty"`
	Context        json.RawMessage `json:"context,omitempty"`
	TimeFrame      string          `json:"time_frame,omitempty"`
	Requirements   json.RawMessage `json:"requirements,omitempty"`
}

// NewAnalysisRequest validates identity fields and copies the opaque payloads.
func NewAnalysisRequest(callerID, organizationID string, tier Tier, data, context, requirements json.RawMessage, timeFrame string) (AnalysisRequest, error) {
	if strings.TrimSpace(callerID) == "" {
		return AnalysisRequest{}, fmt.Errorf("caller id is required")
	}
	if !tier.IsValid() {
		return AnalysisRequest{}, fmt.Errorf("unknown tier %q", tier)
	}
	return AnalysisRequest{
		CallerID:       callerID,
		OrganizationID: organizationID,
		Tier:           tier,
		Data:           cloneRaw(data),
		Context:        cloneRaw(context),
		TimeFrame:      timeFrame,
		Requirements:   cloneRaw(requirements),
	}, nil
}

func cloneRaw(r json.RawMessage) json.RawMessage {
	if r == nil {
		return nil
	}
	out := make(json.RawMessage, len(r))
	copy(out, r)
	return out
}

// FailureReason distinguishes the two kinds of terminal failure.
type FailureReason string

const (
	FailureNoEligibleProviders FailureReason = "no_eligible_providers"
	FailureAllProvidersFailed  FailureReason = "all_providers_failed"
)

// AnalysisResult carries the normalized provider output.
type AnalysisResult struct {
	Content string          `json:"content"`
	Raw     json.RawMessage `json:"raw,omitempty"`
}

// OutcomeMetadata describes how a request was served.
type OutcomeMetadata struct {
	Provider     string  `json:"provider,omitempty"`
	ProviderID   string  `json:"provider_id,omitempty"`
	Model        string  `json:"model,omitempty"`
	TokensUsed   int     `json:"tokens_used"`
	Cost         float64 `json:"cost"`
	DurationMs   int64   `json:"duration_ms"`
	FallbackUsed bool    `json:"fallback_used"`
	Attempts     int     `json:"attempts"`
}

// AnalysisOutcome is the result of processing one AnalysisRequest.
type AnalysisOutcome struct {
	Success       bool            `json:"success"`
	Result        *AnalysisResult `json:"result,omitempty"`
	Error         string          `json:"error,omitempty"`
	Terminal      bool            `json:"terminal,omitempty"`
	FailureReason FailureReason   `json:"failure_reason,omitempty"`
	Metadata      OutcomeMetadata `json:"metadata"`
}
