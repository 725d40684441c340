// Package orchestrator routes analysis requests across providers.
//
// One request is served from a single registry snapshot:
//
//	snapshot → chain(org) → tier filter → attempt 1 → attempt 2 → ...
//	                                          │            │
//	                                          ▼            ▼
//	                                      usage log    usage log
//
// Attempts are sequential and the first success wins. Every attempt is
// recorded before the next one starts.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ai_orchestrator/internal/accounting"
	"ai_orchestrator/internal/billing"
	"ai_orchestrator/internal/models"
	"ai_orchestrator/internal/providers"
	"ai_orchestrator/internal/routing"
	"ai_orchestrator/internal/utils"
)

// Registry is the part of providers.Registry the processor reads.
type Registry interface {
	Snapshot() *providers.Snapshot
	Adapter(t models.ProviderType) (providers.Adapter, bool)
}

// Config holds the processor's tunables.
type Config struct {
	// AttemptTimeout bounds a single provider call. Zero leaves the
	// adapter's HTTP client timeout in charge.
	AttemptTimeout time.Duration
}

// Processor is the request orchestrator. It is safe for concurrent use.
type Processor struct {
	registry Registry
	resolver *routing.TierResolver
	costs    billing.CostCalculator
	usage    accounting.UsageLog
	payload  providers.PayloadBuilder
	config   Config
	logger   *utils.Logger
	now      func() time.Time
}

// NewProcessor wires a processor. payload may be nil to use the default
// JSON payload builder.
func NewProcessor(registry Registry, resolver *routing.TierResolver, costs billing.CostCalculator, usage accounting.UsageLog, payload providers.PayloadBuilder, config Config) *Processor {
	if payload == nil {
		payload = providers.JSONPayloadBuilder{}
	}
	return &Processor{
		registry: registry,
		resolver: resolver,
		costs:    costs,
		usage:    usage,
		payload:  payload,
		config:   config,
		logger:   utils.NewLogger("processor"),
		now:      time.Now,
	}
}

// ProcessAnalysis serves req from the first provider of the caller's chain
// that succeeds.
//
// A terminal failure returns both a failed outcome and a *TerminalError.
// Other errors (an unbuildable payload) return a nil outcome.
func (p *Processor) ProcessAnalysis(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisOutcome, error) {
	start := p.now()
	requestID := uuid.New()

	snap := p.registry.Snapshot()
	chain := p.resolver.Resolve(req.Tier, snap.Chain(req.OrganizationID), snap)
	if len(chain) == 0 {
		p.logger.Warn("No eligible providers", "caller", req.CallerID, "org", req.OrganizationID, "tier", req.Tier)
		return p.terminal(start, &TerminalError{Reason: models.FailureNoEligibleProviders, Tier: req.Tier})
	}

	prompt, err := p.payload.Build(req)
	if err != nil {
		return nil, fmt.Errorf("failed to build payload: %w", err)
	}

	var lastErr error
	attempts := 0
	for index, id := range chain {
		provider, ok := snap.Lookup(id)
		if !ok || !provider.Active {
			continue
		}
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
		attempts++

		attemptStart := p.now()
		norm, err := p.attempt(ctx, provider, prompt)
		duration := p.now().Sub(attemptStart)

		entry := models.UsageEntry{
			RequestID:      requestID,
			CallerID:       req.CallerID,
			OrganizationID: req.OrganizationID,
			ProviderID:     provider.ID,
			ProviderType:   provider.Type,
			Model:          provider.Config.Model,
			DurationMs:     duration.Milliseconds(),
		}

		if err != nil {
			entry.ErrorMessage = err.Error()
			p.record(ctx, entry)
			p.logger.Warn("Provider attempt failed", "request", requestID, "provider", provider.ID, "attempt", attempts, "error", err)
			lastErr = err
			continue
		}

		model := provider.Config.Model
		if model == "" {
			model = norm.Model
		}
		cost := p.costs.Estimate(provider.Type, model, norm.TokensUsed)

		entry.Success = true
		entry.Model = model
		entry.TokensUsed = norm.TokensUsed
		entry.CostUSD = cost
		p.record(ctx, entry)

		p.logger.Debug("Provider attempt succeeded", "request", requestID, "provider", provider.ID, "tokens", norm.TokensUsed, "fallback", index > 0)

		return &models.AnalysisOutcome{
			Success: true,
			Result:  &models.AnalysisResult{Content: norm.Content, Raw: norm.Raw},
			Metadata: models.OutcomeMetadata{
				Provider:     provider.DisplayName,
				ProviderID:   provider.ID,
				Model:        model,
				TokensUsed:   norm.TokensUsed,
				Cost:         cost,
				DurationMs:   p.now().Sub(start).Milliseconds(),
				FallbackUsed: index > 0,
				Attempts:     attempts,
			},
		}, nil
	}

	p.logger.Error("All providers failed", "request", requestID, "caller", req.CallerID, "attempts", attempts, "error", lastErr)
	return p.terminal(start, &TerminalError{
		Reason:   models.FailureAllProvidersFailed,
		Tier:     req.Tier,
		Attempts: attempts,
		Err:      lastErr,
	})
}

// attempt invokes the provider once under the per-attempt deadline.
func (p *Processor) attempt(ctx context.Context, provider models.Provider, prompt providers.Prompt) (providers.NormalizedResponse, error) {
	adapter, ok := p.registry.Adapter(provider.Type)
	if !ok {
		return providers.NormalizedResponse{}, &providers.ProviderError{
			ProviderID: provider.ID,
			Kind:       providers.ErrorKindUnsupported,
			Err:        fmt.Errorf("no adapter for type %s", provider.Type),
		}
	}

	if p.config.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.AttemptTimeout)
		defer cancel()
	}

	resp, err := adapter.Invoke(ctx, provider, prompt)
	if err != nil {
		var perr *providers.ProviderError
		if !errors.As(err, &perr) {
			kind := providers.ErrorKindNetwork
			if errors.Is(err, context.DeadlineExceeded) {
				kind = providers.ErrorKindTimeout
			}
			err = &providers.ProviderError{ProviderID: provider.ID, Kind: kind, Err: err}
		}
		return providers.NormalizedResponse{}, err
	}
	return resp.Normalize(), nil
}

// record writes one usage entry. A failing sink does not change the outcome.
func (p *Processor) record(ctx context.Context, entry models.UsageEntry) {
	if err := p.usage.Record(context.WithoutCancel(ctx), entry); err != nil {
		p.logger.Error("Failed to record usage", "provider", entry.ProviderID, "error", err)
	}
}

func (p *Processor) terminal(start time.Time, terr *TerminalError) (*models.AnalysisOutcome, error) {
	return &models.AnalysisOutcome{
		Success:       false,
		Error:         terr.Error(),
		Terminal:      true,
		FailureReason: terr.Reason,
		Metadata: models.OutcomeMetadata{
			DurationMs: p.now().Sub(start).Milliseconds(),
			Attempts:   terr.Attempts,
		},
	}, terr
}
