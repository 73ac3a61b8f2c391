// Package ratelimiter provides request rate limiting using the token
// bucket algorithm.
package ratelimiter

import (
	"context"
	"net/http"

	"golang.org/x/time/rate"
)

// RateLimiter wraps golang.org/x/time/rate to provide:
//   - Token bucket rate limiting (allows bursts while enforcing a
//     sustained rate)
//   - Context-aware waiting (respects cancellation)
//   - Zero-allocation fast path for allowed requests
//
// The token bucket algorithm:
//  1. Tokens are added to the bucket at a constant rate
//  2. Each request consumes one token
//  3. An empty bucket rejects (Allow) or delays (Wait) the request
//  4. Burst capacity absorbs temporary spikes above the sustained rate
//
// Thread safety:
// All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a RateLimiter allowing requestsPerSecond sustained with
// the given burst capacity.
//
// requestsPerSecond <= 0 disables limiting (effectively unlimited). The
// burst should typically be >= requestsPerSecond.
func New(requestsPerSecond float64, burst int) *RateLimiter {
	if requestsPerSecond <= 0 {
		// rate.Inf has edge cases with Wait, so use a very large limit.
		requestsPerSecond = 1_000_000_000
		burst = 1_000_000_000
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

// Allow reports whether a request may proceed, consuming a token when it
// may. This is the fast path: it never blocks.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Wait blocks until a token is available or the context is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Middleware rejects requests over the limit with 429 Too Many Requests.
//
// The limiter is global, not per-client: the goal is protecting the
// repository from aggregate overload, not per-tenant fairness.
func (r *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if !r.Allow() {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, req)
	})
}
