package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies adapter failures.
type ErrorKind string

const (
	ErrorKindNetwork     ErrorKind = "network"
	ErrorKindTimeout     ErrorKind = "timeout"
	ErrorKindStatus      ErrorKind = "status"
	ErrorKindMalformed   ErrorKind = "malformed"
	ErrorKindUnsupported ErrorKind = "unsupported"
)

// ProviderError is returned by every adapter failure.
type ProviderError struct {
	ProviderID string
	Kind       ErrorKind
	StatusCode int
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	switch {
	case e.Kind == ErrorKindStatus:
		return fmt.Sprintf("provider %s: status %d: %s", e.ProviderID, e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("provider %s: %s: %v", e.ProviderID, e.Kind, e.Err)
	default:
		return fmt.Sprintf("provider %s: %s", e.ProviderID, e.Kind)
	}
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// transportError classifies an error returned by http.Client.Do.
func transportError(providerID string, err error) *ProviderError {
	kind := ErrorKindNetwork
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = ErrorKindTimeout
	}
	return &ProviderError{ProviderID: providerID, Kind: kind, Err: err}
}

func malformed(providerID string, err error) *ProviderError {
	return &ProviderError{ProviderID: providerID, Kind: ErrorKindMalformed, Err: err}
}
