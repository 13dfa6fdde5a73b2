package warehouse

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter bounds the rate of warehouse queries shared by all workers
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a token bucket allowing qps queries per second
// with a burst of one second's worth. qps <= 0 means unlimited.
func NewRateLimiter(qps float64) *RateLimiter {
	if qps <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	burst := int(qps)
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(qps), burst),
	}
}

// Wait blocks until the rate limiter allows a query
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil {
		return nil
	}
	return r.limiter.Wait(ctx)
}

// Allow checks if a query is allowed without blocking
func (r *RateLimiter) Allow() bool {
	if r == nil {
		return true
	}
	return r.limiter.Allow()
}
