package providers

import (
	"net/http"
)

// Authenticator applies credentials to an outgoing request.
type Authenticator interface {
	Apply(req *http.Request)
}

// SimpleAPIKeyAuth puts an API key in a single header.
type SimpleAPIKeyAuth struct {
	apiKey     string
	headerName string // e.g. "Authorization"
	prefix     string // e.g. "Bearer "
}

// NewSimpleAPIKeyAuth creates an authenticator. An empty header name means Authorization.
func NewSimpleAPIKeyAuth(apiKey, headerName, prefix string) *SimpleAPIKeyAuth {
	if headerName == "" {
		headerName = "Authorization"
	}
	return &SimpleAPIKeyAuth{
		apiKey:     apiKey,
		headerName: headerName,
		prefix:     prefix,
	}
}

func (a *SimpleAPIKeyAuth) Apply(req *http.Request) {
	if a.apiKey == "" {
		return
	}
	req.Header.Set(a.headerName, a.prefix+a.apiKey)
}

// HeaderAuth sets a fixed set of headers, for custom endpoints.
type HeaderAuth map[string]string

func (h HeaderAuth) Apply(req *http.Request) {
	for k, v := range h {
		req.Header.Set(k, v)
	}
}

// NoAuth leaves the request untouched.
type NoAuth struct{}

func (NoAuth) Apply(*http.Request) {}
