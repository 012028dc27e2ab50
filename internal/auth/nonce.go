package auth

import (
	"strconv"
	"sync"
	"time"
)

// NonceSource issues strictly increasing nonces derived from the wall clock
// in milliseconds. When two requests land in the same millisecond (or the
// clock steps backwards) the previous value plus one is issued instead.
type NonceSource struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewNonceSource creates a nonce source backed by time.Now
func NewNonceSource() *NonceSource {
	return &NonceSource{now: time.Now}
}

// Next returns the next nonce
func (n *NonceSource) Next() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	candidate := n.now().UnixMilli()
	if candidate <= n.last {
		candidate = n.last + 1
	}
	n.last = candidate
	return candidate
}

// NextString returns the next nonce formatted for a payload
func (n *NonceSource) NextString() string {
	return strconv.FormatInt(n.Next(), 10)
}
