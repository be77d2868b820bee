// Package resilience provides retry with backoff, transient error
// classification, a consecutive-failure breaker and context-aware waits.
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy controls retries with exponential backoff and jitter.
type Policy struct {
	// Attempts is the total number of tries, including the first. 1 disables
	// retries.
	Attempts int
	Base     time.Duration
	Max      time.Duration
	Factor   float64
	// Jitter spreads each delay by ±Jitter of its value.
	Jitter float64

	// Retryable decides whether an error is worth another try. Defaults to
	// IsTransient.
	Retryable func(err error) bool
	// OnRetry runs before each backoff sleep.
	OnRetry func(attempt int, err error)
}

// DefaultPolicy is used for page fetches and API calls.
func DefaultPolicy() Policy {
	return Policy{
		Attempts: 3,
		Base:     500 * time.Millisecond,
		Max:      15 * time.Second,
		Factor:   2,
		Jitter:   0.25,
	}
}

// Retry calls fn until it succeeds, returns a non-retryable error, the
// attempts run out, or ctx ends. The last error is returned.
func Retry[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	var zero T
	var err error
	for attempt := 1; ; attempt++ {
		var v T
		v, err = fn(ctx)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil || !p.Retryable(err) || attempt >= p.Attempts {
			return zero, err
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
		if Sleep(ctx, p.backoff(attempt)) != nil {
			return zero, err
		}
	}
}

// Do is Retry for functions without a result.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	_, err := Retry(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.Attempts <= 0 {
		p.Attempts = d.Attempts
	}
	if p.Base <= 0 {
		p.Base = d.Base
	}
	if p.Max <= 0 {
		p.Max = d.Max
	}
	if p.Factor <= 0 {
		p.Factor = d.Factor
	}
	p.Jitter = max(p.Jitter, 0)
	if p.Retryable == nil {
		p.Retryable = IsTransient
	}
	return p
}

// backoff returns the delay after the given 1-based attempt.
func (p Policy) backoff(attempt int) time.Duration {
	delay := math.Min(float64(p.Base)*math.Pow(p.Factor, float64(attempt-1)), float64(p.Max))
	if p.Jitter > 0 {
		delay += (rand.Float64()*2 - 1) * delay * p.Jitter
	}
	return time.Duration(max(delay, 0))
}

// LogRetries returns an OnRetry hook that logs at warn level.
func LogRetries(component, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying",
			zap.String("component", component),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
