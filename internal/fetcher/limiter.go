package fetcher

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// AdaptiveLimiter is a rate.Limiter that speeds up 20% after each success
// (up to twice the initial rate) and halves on 429 (down to a quarter).
type AdaptiveLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	current rate.Limit
	lo, hi  rate.Limit
}

// NewAdaptiveLimiter creates a limiter starting at r events per second.
func NewAdaptiveLimiter(r rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		limiter: rate.NewLimiter(r, max(burst, 1)),
		current: r,
		lo:      r / 4,
		hi:      r * 2,
	}
}

// Wait blocks until the next request may go out.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess nudges the rate up.
func (a *AdaptiveLimiter) OnSuccess() {
	a.set(func(r rate.Limit) rate.Limit { return min(r*1.2, a.hi) })
}

// OnRateLimit halves the rate.
func (a *AdaptiveLimiter) OnRateLimit() {
	r := a.set(func(r rate.Limit) rate.Limit { return max(r*0.5, a.lo) })
	zap.L().Warn("fetcher: rate limited, slowing down", zap.Float64("rate", float64(r)))
}

// Limit returns the current rate.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

func (a *AdaptiveLimiter) set(f func(rate.Limit) rate.Limit) rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = f(a.current)
	a.limiter.SetLimit(a.current)
	return a.current
}
