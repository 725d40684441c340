package providers

import (
	"encoding/json"
	"fmt"
	"strings"

	"ai_orchestrator/internal/models"
)

const defaultSystemPrompt = "You are a data analysis assistant. Answer with a concise, structured analysis of the supplied data."

// JSONPayloadBuilder renders the request sections as labelled JSON blocks.
type JSONPayloadBuilder struct {
	SystemPrompt string
}

func (b JSONPayloadBuilder) Build(req models.AnalysisRequest) (Prompt, error) {
	if len(req.Data) == 0 {
		return Prompt{}, fmt.Errorf("analysis request has no data")
	}

	var sb strings.Builder
	sections := []struct {
		label string
		raw   json.RawMessage
	}{
		{"Data", req.Data},
		{"Context", req.Context},
		{"Requirements", req.Requirements},
	}
	for _, s := range sections {
		if len(s.raw) == 0 {
			continue
		}
		if !json.Valid(s.raw) {
			return Prompt{}, fmt.Errorf("%s is not valid JSON", strings.ToLower(s.label))
		}
		fmt.Fprintf(&sb, "%s:\n%s\n\n", s.label, s.raw)
	}
	if req.TimeFrame != "" {
		fmt.Fprintf(&sb, "Time frame: %s\n", req.TimeFrame)
	}

	system := b.SystemPrompt
	if system == "" {
		system = defaultSystemPrompt
	}
	return Prompt{System: system, User: strings.TrimSpace(sb.String())}, nil
}
