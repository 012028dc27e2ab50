package auth

import (
	"net/url"
	"strings"
)

// NonceField is the payload key Kraken requires on every private request
const NonceField = "nonce"

// Payload is an ordered set of form fields. Unlike url.Values it keeps
// insertion order, which Kraken expects when the signature is computed.
type Payload struct {
	keys   []string
	values map[string]string
}

// NewPayload creates an empty payload
func NewPayload() *Payload {
	return &Payload{values: make(map[string]string)}
}

// Set adds a field or replaces the value of an existing one in place
func (p *Payload) Set(key, value string) *Payload {
	if p.values == nil {
		p.values = make(map[string]string)
	}
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
	return p
}

// Get returns the value of a field and whether it is present
func (p *Payload) Get(key string) (string, bool) {
	if p == nil || p.values == nil {
		return "", false
	}
	v, ok := p.values[key]
	return v, ok
}

// Keys returns field names in insertion order
func (p *Payload) Keys() []string {
	if p == nil {
		return nil
	}
	keys := make([]string, len(p.keys))
	copy(keys, p.keys)
	return keys
}

// Len returns the number of fields
func (p *Payload) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// WithNonce returns a copy of the payload whose first field is the given
// nonce. Any nonce already present is dropped.
func (p *Payload) WithNonce(nonce string) *Payload {
	out := NewPayload().Set(NonceField, nonce)
	if p == nil {
		return out
	}
	for _, k := range p.keys {
		if k == NonceField {
			continue
		}
		out.Set(k, p.values[k])
	}
	return out
}

// Encode URL-encodes the payload preserving insertion order
func (p *Payload) Encode() string {
	if p == nil || len(p.keys) == 0 {
		return ""
	}
	var buf strings.Builder
	for i, k := range p.keys {
		if i > 0 {
			buf.WriteByte('&')
		}
		buf.WriteString(url.QueryEscape(k))
		buf.WriteByte('=')
		buf.WriteString(url.QueryEscape(p.values[k]))
	}
	return buf.String()
}
