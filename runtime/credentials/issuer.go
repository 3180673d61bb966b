package credentials

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	vkerrors "github.com/AltairaLabs/VoiceKit/pkg/errors"
	"github.com/AltairaLabs/VoiceKit/runtime/logger"
)

const (
	component        = "credentials"
	defaultTimeout   = 10 * time.Second
	maxResponseBytes = 1 << 20
)

// ErrMissingSecret is returned when the issuer answers without a client secret.
var ErrMissingSecret = errors.New("issuer response has no client secret")

// Issuer mints the short-lived credential a session signals with.
type Issuer interface {
	Issue(ctx context.Context, selector string) (Token, error)
}

// IssuerFunc adapts a function to Issuer.
type IssuerFunc func(ctx context.Context, selector string) (Token, error)

// Issue calls f.
func (f IssuerFunc) Issue(ctx context.Context, selector string) (Token, error) {
	return f(ctx, selector)
}

// StaticIssuer always returns the same token. It suits endpoints that accept
// the long-lived key directly, such as the WebSocket transport.
type StaticIssuer struct {
	Token Token
}

// Issue returns the configured token, or ErrMissingSecret when it is empty.
func (s StaticIssuer) Issue(context.Context, string) (Token, error) {
	if s.Token.Value == "" {
		return Token{}, vkerrors.New(component, "Issue", ErrMissingSecret)
	}
	return s.Token, nil
}

// sessionResponse is the subset of the realtime session object read by
// clients of the issuer.
type sessionResponse struct {
	Voice        string `json:"voice"`
	ClientSecret *struct {
		Value     string `json:"value"`
		ExpiresAt int64  `json:"expires_at"`
	} `json:"client_secret"`
}

// HTTPIssuer requests tokens from a token issuer endpoint.
type HTTPIssuer struct {
	URL    string
	Client *http.Client
}

// NewHTTPIssuer creates an issuer client with an instrumented HTTP client.
func NewHTTPIssuer(url string) *HTTPIssuer {
	return &HTTPIssuer{
		URL: url,
		Client: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Issue POSTs {"selectedAvatar": selector} and returns the client secret from
// the response. Transport failures, non-2xx answers and responses without a
// secret return a *errors.ContextualError.
func (i *HTTPIssuer) Issue(ctx context.Context, selector string) (Token, error) {
	body, err := json.Marshal(map[string]string{"selectedAvatar": selector})
	if err != nil {
		return Token{}, vkerrors.New(component, "Issue", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.URL, bytes.NewReader(body))
	if err != nil {
		return Token{}, vkerrors.New(component, "Issue", err)
	}
	req.Header.Set("Content-Type", "application/json")
	logger.APIRequest("issuer", http.MethodPost, i.URL, nil, string(body))

	client := i.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		logger.APIResponse("issuer", 0, "", err)
		return Token{}, vkerrors.New(component, "Issue", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Token{}, vkerrors.New(component, "Issue", err).WithStatusCode(resp.StatusCode)
	}
	logger.APIResponse("issuer", resp.StatusCode, string(respBody), nil)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		cause := fmt.Errorf("issuer returned %s", http.StatusText(resp.StatusCode))
		return Token{}, vkerrors.New(component, "Issue", cause).WithStatusCode(resp.StatusCode)
	}

	var parsed sessionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Token{}, vkerrors.New(component, "Issue", fmt.Errorf("decode response: %w", err)).
			WithStatusCode(resp.StatusCode)
	}
	if parsed.ClientSecret == nil || parsed.ClientSecret.Value == "" {
		return Token{}, vkerrors.New(component, "Issue", ErrMissingSecret).WithStatusCode(resp.StatusCode)
	}

	tok := Token{Value: parsed.ClientSecret.Value, Voice: parsed.Voice}
	if parsed.ClientSecret.ExpiresAt > 0 {
		tok.ExpiresAt = time.Unix(parsed.ClientSecret.ExpiresAt, 0)
	}
	return tok, nil
}
