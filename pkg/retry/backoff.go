package retry

import (
	"context"
	"math/rand"
	"time"
)

// BackoffStrategy computes the wait before retry number attempt (1-based)
type BackoffStrategy interface {
	NextDelay(attempt int) time.Duration
}

// BackoffFunc adapts a plain function to BackoffStrategy
type BackoffFunc func(attempt int) time.Duration

func (f BackoffFunc) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return f(attempt)
}

// ExponentialBackoff grows BaseDelay by Multiplier per attempt up to MaxDelay
type ExponentialBackoff struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	// JitterFactor spreads each delay uniformly by +/- this fraction
	JitterFactor float64
}

// DefaultExponentialBackoff waits 1s, 2s, 4s... capped at 30s
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:    time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	capped := func(d float64) bool { return eb.MaxDelay > 0 && d >= float64(eb.MaxDelay) }

	delay := float64(eb.BaseDelay)
	for i := 1; i < attempt && !capped(delay); i++ {
		delay *= eb.Multiplier
	}
	if capped(delay) {
		delay = float64(eb.MaxDelay)
	}

	if eb.JitterFactor > 0 {
		delay *= 1 + eb.JitterFactor*(2*rand.Float64()-1)
	}
	return time.Duration(max(delay, 0))
}

// ConstantBackoff waits the same Delay before every retry
type ConstantBackoff struct {
	Delay time.Duration
}

func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	return BackoffFunc(func(int) time.Duration { return cb.Delay }).NextDelay(attempt)
}

// Wait sleeps for delay, returning early with ctx.Err() on cancellation
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
