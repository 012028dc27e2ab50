package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"fmt"
)

var (
	// ErrInvalidKey is returned when the API secret is not valid base64
	ErrInvalidKey = errors.New("invalid api secret: not base64")
	// ErrMissingField is returned when a payload lacks the nonce field
	ErrMissingField = errors.New("payload is missing required field")
)

// Sign computes the API-Sign header value for a private request:
// base64(HMAC-SHA512(uriPath + SHA256(nonce + encoded payload), base64decode(secret)))
func Sign(uriPath string, payload *Payload, secret string) (string, error) {
	nonce, ok := payload.Get(NonceField)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingField, NonceField)
	}

	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return "", ErrInvalidKey
	}

	sha := sha256.New()
	sha.Write([]byte(nonce + payload.Encode()))
	digest := sha.Sum(nil)

	mac := hmac.New(sha512.New, key)
	mac.Write(append([]byte(uriPath), digest...))

	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// Signer binds account credentials to a nonce source
type Signer struct {
	apiKey    string
	apiSecret string
	nonces    *NonceSource
}

// NewSigner creates a new signer with a wall-clock nonce source
func NewSigner(apiKey, apiSecret string) *Signer {
	return &Signer{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		nonces:    NewNonceSource(),
	}
}

// APIKey returns the API key
func (s *Signer) APIKey() string {
	return s.apiKey
}

// Validate checks the secret decodes without signing anything
func (s *Signer) Validate() error {
	if s.apiKey == "" {
		return errors.New("api key is required")
	}
	if _, err := base64.StdEncoding.DecodeString(s.apiSecret); err != nil || s.apiSecret == "" {
		return ErrInvalidKey
	}
	return nil
}

// Sign signs a payload that already carries its nonce
func (s *Signer) Sign(uriPath string, payload *Payload) (string, error) {
	return Sign(uriPath, payload, s.apiSecret)
}

// SignedRequest returns a copy of params with a fresh nonce as its first
// field, together with the signature for that exact payload
func (s *Signer) SignedRequest(uriPath string, params *Payload) (*Payload, string, error) {
	signed := params.WithNonce(s.nonces.NextString())

	signature, err := s.Sign(uriPath, signed)
	if err != nil {
		return nil, "", err
	}
	return signed, signature, nil
}

// String keeps the secret out of formatted output
func (s *Signer) String() string {
	return fmt.Sprintf("Signer{apiKey: %q, apiSecret: [REDACTED]}", s.apiKey)
}
