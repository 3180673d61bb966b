// Package credentials covers both sides of the session token exchange: the
// long-lived API key a token issuer uses upstream, and the short-lived client
// secret a session obtains from the issuer before signaling.
package credentials

import (
	"context"
	"net/http"
	"time"
)

// Credential applies authentication to HTTP requests.
type Credential interface {
	// Apply adds authentication to the HTTP request.
	Apply(ctx context.Context, req *http.Request) error

	// Type returns the credential type identifier ("api_key", "ephemeral", "none").
	Type() string
}

// APIKeyCredential implements header-based API key authentication.
type APIKeyCredential struct {
	apiKey     string
	headerName string
	prefix     string
}

// APIKeyOption configures an APIKeyCredential.
type APIKeyOption func(*APIKeyCredential)

// WithHeaderName sets the header name for the API key.
func WithHeaderName(name string) APIKeyOption {
	return func(c *APIKeyCredential) {
		c.headerName = name
	}
}

// WithPrefix sets a custom prefix for the API key.
func WithPrefix(prefix string) APIKeyOption {
	return func(c *APIKeyCredential) {
		c.prefix = prefix
	}
}

// NewAPIKeyCredential creates a new API key credential.
// By default, it uses "Authorization" header with "Bearer " prefix.
func NewAPIKeyCredential(apiKey string, opts ...APIKeyOption) *APIKeyCredential {
	c := &APIKeyCredential{
		apiKey:     apiKey,
		headerName: "Authorization",
		prefix:     "Bearer ",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Apply adds the API key to the request header.
func (c *APIKeyCredential) Apply(_ context.Context, req *http.Request) error {
	if c.apiKey != "" {
		req.Header.Set(c.headerName, c.prefix+c.apiKey)
	}
	return nil
}

// Type returns "api_key".
func (c *APIKeyCredential) Type() string {
	return "api_key"
}

// APIKey returns the raw API key value.
func (c *APIKeyCredential) APIKey() string {
	return c.apiKey
}

// Token is an ephemeral client secret minted for one session.
type Token struct {
	Value     string
	ExpiresAt time.Time
	// Voice is the voice the issuer selected for the requested avatar.
	Voice string
}

// Expired reports whether the token has passed its expiry at now. Tokens
// without an expiry never expire.
func (t Token) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

// Apply sets the bearer authorization header.
func (t Token) Apply(_ context.Context, req *http.Request) error {
	req.Header.Set("Authorization", "Bearer "+t.Value)
	return nil
}

// Type returns "ephemeral".
func (t Token) Type() string {
	return "ephemeral"
}

// NoOpCredential is a credential that does nothing.
type NoOpCredential struct{}

// Apply does nothing.
func (c *NoOpCredential) Apply(_ context.Context, _ *http.Request) error {
	return nil
}

// Type returns "none".
func (c *NoOpCredential) Type() string {
	return "none"
}
