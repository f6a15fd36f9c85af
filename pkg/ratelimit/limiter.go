package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter gates rate-limited operations. Callers invoke Wait immediately
// before each counted request.
type Limiter interface {
	// Wait blocks until the next request may start or ctx is done
	Wait(ctx context.Context) error
	// Reset forgets the last request so the next Wait returns immediately
	Reset()
}

// MinInterval enforces a fixed minimum gap between consecutive requests.
// The first request is never delayed.
type MinInterval struct {
	interval time.Duration
	last     time.Time
	mu       sync.Mutex

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewMinInterval creates a limiter that spaces requests by interval
func NewMinInterval(interval time.Duration) *MinInterval {
	return &MinInterval{
		interval: interval,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// Wait blocks until interval has passed since the previous request
func (m *MinInterval) Wait(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	if !m.last.IsZero() {
		if remaining := m.interval - m.now().Sub(m.last); remaining > 0 {
			if err := m.sleep(ctx, remaining); err != nil {
				return err
			}
		}
	}

	m.last = m.now()
	return nil
}

// Reset clears the recorded request time
func (m *MinInterval) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = time.Time{}
}

// Unlimited never blocks
type Unlimited struct{}

func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }
func (Unlimited) Reset()                         {}

// New returns a MinInterval for positive intervals and Unlimited otherwise
func New(interval time.Duration) Limiter {
	if interval <= 0 {
		return Unlimited{}
	}
	return NewMinInterval(interval)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
