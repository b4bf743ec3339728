package loop

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy bounds how transient provider failures are retried.
// Attempts that fail never count against the iteration cap; only a
// successful call is an iteration.
type RetryPolicy struct {
	// MaxRetries is how many times a failed call is retried after the
	// first attempt.
	MaxRetries int
	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration
	// MaxDelay caps the backoff growth.
	MaxDelay time.Duration
	// Multiplier is the exponential growth factor between retries.
	Multiplier float64
	// Jitter is the random fraction (0-1) added to each delay so
	// concurrent runs do not stampede a recovering backend.
	Jitter float64
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
		Jitter:     0.2,
	}
}

// normalized fills zero fields with defaults so a partially specified
// policy behaves sensibly.
func (p RetryPolicy) normalized() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxRetries <= 0 {
		p.MaxRetries = def.MaxRetries
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = def.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = def.Multiplier
	}
	if p.Jitter < 0 || p.Jitter > 1 {
		p.Jitter = def.Jitter
	}
	return p
}

// Delay returns the backoff before retry number attempt (zero-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	backoff := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt))
	if backoff > float64(p.MaxDelay) {
		backoff = float64(p.MaxDelay)
	}
	if p.Jitter > 0 {
		backoff += backoff * p.Jitter * rand.Float64()
	}
	return time.Duration(backoff)
}

// sleep waits for d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
