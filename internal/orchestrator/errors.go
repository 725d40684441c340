package orchestrator

import (
	"errors"
	"fmt"

	"ai_orchestrator/internal/models"
)

var (
	// ErrNoEligibleProviders means the caller's tier resolved to an empty chain.
	ErrNoEligibleProviders = errors.New("no providers available for tier")

	// ErrAllProvidersFailed means every provider in the resolved chain failed.
	ErrAllProvidersFailed = errors.New("all eligible providers failed")
)

// TerminalError ends a request without a result. It matches
// ErrNoEligibleProviders or ErrAllProvidersFailed with errors.Is and
// unwraps to the last provider error.
type TerminalError struct {
	Reason   models.FailureReason
	Tier     models.Tier
	Attempts int
	Err      error
}

func (e *TerminalError) Error() string {
	if e.Reason == models.FailureNoEligibleProviders {
		return fmt.Sprintf("no providers available for tier %q", e.Tier)
	}
	if e.Err == nil {
		return fmt.Sprintf("all eligible providers failed after %d attempts", e.Attempts)
	}
	return fmt.Sprintf("all eligible providers failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *TerminalError) Unwrap() error {
	return e.Err
}

func (e *TerminalError) Is(target error) bool {
	switch target {
	case ErrNoEligibleProviders:
		return e.Reason == models.FailureNoEligibleProviders
	case ErrAllProvidersFailed:
		return e.Reason == models.FailureAllProvidersFailed
	}
	return false
}
