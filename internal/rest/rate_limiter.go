package rest

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter throttles outbound private calls. Kraken counts private calls
// against a decaying per-key counter, so a steady rate with a small burst
// keeps the client under it.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a limiter that starts with a full bucket
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

// Wait blocks until a token is available. It fails at once when ctx would
// expire first, or when the rate is zero and the burst is spent.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	return rl.limiter.Wait(ctx)
}
