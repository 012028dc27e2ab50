package rest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"krakenbot/internal/auth"
)

// DefaultBaseURL is Kraken's REST endpoint
const DefaultBaseURL = "https://api.kraken.com"

const privatePrefix = "/0/private/"

// Observer is notified once per outbound private call
type Observer interface {
	ObserveCall(endpoint, outcome string, duration time.Duration)
}

// Client is the private (account-scoped) Kraken REST client
type Client struct {
	baseURL     string
	httpClient  *http.Client
	signer      *auth.Signer
	rateLimiter *RateLimiter
	observer    Observer
}

// Option configures the client
type Option func(*Client)

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithRateLimit enables client-side throttling. Off by default; Kraken
// enforces its own limits and reports them as API errors.
func WithRateLimit(requestsPerSecond float64, burst int) Option {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.rateLimiter = NewRateLimiter(requestsPerSecond, burst)
		}
	}
}

// WithObserver attaches a call observer
func WithObserver(observer Observer) Option {
	return func(c *Client) {
		c.observer = observer
	}
}

// NewClient creates a new private REST client
func NewClient(baseURL string, signer *auth.Signer, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		signer: signer,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// BaseURL returns the base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Timeout returns the HTTP timeout
func (c *Client) Timeout() time.Duration {
	return c.httpClient.Timeout
}

// RateLimited reports whether client-side throttling is enabled
func (c *Client) RateLimited() bool {
	return c.rateLimiter != nil
}

// doPrivate signs params for endpoint, POSTs them and decodes the result into out.
// It never retries: a resend needs a new nonce and therefore a new call.
func (c *Client) doPrivate(ctx context.Context, endpoint string, params *auth.Payload, out any) (err error) {
	if c.signer == nil {
		return fmt.Errorf("signer required for %s", endpoint)
	}

	if c.observer != nil {
		start := time.Now()
		defer func() {
			c.observer.ObserveCall(endpoint, outcome(err), time.Since(start))
		}()
	}

	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return &TransportError{Op: endpoint, Err: err}
		}
	}

	uriPath := privatePrefix + endpoint

	// nonce is issued here and used immediately
	signed, signature, err := c.signer.SignedRequest(uriPath, params)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uriPath, strings.NewReader(signed.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")
	req.Header.Set("API-Key", c.signer.APIKey())
	req.Header.Set("API-Sign", signature)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: endpoint, HTTPStatus: resp.StatusCode, Err: err}
	}

	return DecodeEnvelope(endpoint, resp.StatusCode, body, out)
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	switch err.(type) {
	case *APIError:
		return "api_error"
	case *TransportError:
		return "transport_error"
	case *MalformedResponse:
		return "malformed"
	}
	return "error"
}
