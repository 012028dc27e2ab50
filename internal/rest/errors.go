package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// APIError is returned when Kraken answers with a non-empty error array.
// The codes are passed through verbatim, e.g. "EAPI:Invalid nonce".
type APIError struct {
	Codes      []string
	HTTPStatus int
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("Kraken API error: %s", strings.Join(e.Codes, "; "))
}

func (e *APIError) hasPrefix(prefixes ...string) bool {
	for _, code := range e.Codes {
		for _, p := range prefixes {
			if strings.HasPrefix(code, p) {
				return true
			}
		}
	}
	return false
}

// IsNonceError reports a stale or reused nonce. The request must be rebuilt
// with a fresh nonce, never resent as is.
func (e *APIError) IsNonceError() bool {
	return e.hasPrefix("EAPI:Invalid nonce")
}

// IsRateLimitError checks if Kraken throttled the account
func (e *APIError) IsRateLimitError() bool {
	return e.hasPrefix("EAPI:Rate limit exceeded", "EOrder:Rate limit exceeded", "EGeneral:Too many requests")
}

// IsAuthError checks if the credentials or signature were rejected
func (e *APIError) IsAuthError() bool {
	return e.hasPrefix("EAPI:Invalid key", "EAPI:Invalid signature", "EGeneral:Permission denied")
}

// IsOrderError checks if this is an order-related rejection
func (e *APIError) IsOrderError() bool {
	return e.hasPrefix("EOrder:")
}

// IsServiceError checks if Kraken reported itself unavailable or busy
func (e *APIError) IsServiceError() bool {
	return e.hasPrefix("EService:")
}

// TransportError wraps a network failure or an HTTP response that carried
// no Kraken envelope. Callers may retry with a fresh nonce.
type TransportError struct {
	Op         string
	HTTPStatus int
	Err        error
}

// Error implements the error interface
func (e *TransportError) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("transport error in %s: HTTP %d: %v", e.Op, e.HTTPStatus, e.Err)
	}
	return fmt.Sprintf("transport error in %s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying error
func (e *TransportError) Unwrap() error {
	return e.Err
}

// MalformedResponse is returned when the body is JSON but not the shape expected
type MalformedResponse struct {
	Field string
	Err   error
}

// Error implements the error interface
func (e *MalformedResponse) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed response: %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("malformed response: missing %s", e.Field)
}

// Unwrap exposes the underlying error
func (e *MalformedResponse) Unwrap() error {
	return e.Err
}

type envelope struct {
	Error  []string        `json:"error"`
	Result json.RawMessage `json:"result"`
}

// DecodeEnvelope parses a Kraken {"error": [...], "result": {...}} body and
// decodes result into out. A non-empty error array wins over HTTP status.
func DecodeEnvelope(op string, status int, body []byte, out any) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		if status < 200 || status >= 300 {
			text := strings.TrimSpace(string(body))
			if text == "" {
				text = "empty response"
			}
			return &TransportError{Op: op, HTTPStatus: status, Err: errors.New(text)}
		}
		return &MalformedResponse{Field: "body", Err: err}
	}

	if len(env.Error) > 0 {
		return &APIError{Codes: env.Error, HTTPStatus: status}
	}

	if status < 200 || status >= 300 {
		return &TransportError{Op: op, HTTPStatus: status, Err: errors.New("unexpected status")}
	}

	if len(env.Result) == 0 || bytes.Equal(env.Result, []byte("null")) {
		return &MalformedResponse{Field: "result"}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return &MalformedResponse{Field: "result", Err: err}
	}
	return nil
}

// IsRetryableError reports whether resending makes sense. Private requests
// still need a fresh nonce before they are resent.
func IsRetryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsNonceError() || apiErr.IsRateLimitError() || apiErr.IsServiceError()
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		switch transportErr.HTTPStatus {
		case 0, 429, 500, 502, 503, 504:
			return true
		}
	}
	return false
}

// ErrorWithContext wraps errors with operation context for better debugging
func ErrorWithContext(err error, operation string) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%s: %w", operation, err)
}
