package retry

import (
	"context"
	"testing"
	"time"

	"fcsync/pkg/config"
	errs "fcsync/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(maxAttempts int) *Config {
	cfg := DefaultConfig()
	cfg.MaxAttempts = maxAttempts
	cfg.Backoff = &ConstantBackoff{Delay: time.Millisecond}
	cfg.RateLimitBackoff = &ConstantBackoff{Delay: time.Millisecond}
	return cfg
}

func TestExponentialBackoff(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   time.Second,
		Multiplier: 2.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{9, time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, backoff.NextDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestExponentialBackoffJitterStaysInBounds(t *testing.T) {
	backoff := &ExponentialBackoff{
		BaseDelay:    100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.3,
	}

	for i := 0; i < 50; i++ {
		delay := backoff.NextDelay(2)
		assert.GreaterOrEqual(t, delay, 140*time.Millisecond)
		assert.LessOrEqual(t, delay, 260*time.Millisecond)
	}
}

func TestDoRetriesNetworkErrors(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errs.Wrap(errs.ErrorTypeNetwork, nil, "connection reset")
		}
		return nil
	}, fastConfig(5))

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDoStopsAtMaxAttempts(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return errs.New(errs.ErrorTypeServerError, "bad gateway")
	}, fastConfig(3))

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.True(t, errs.IsType(err, errs.ErrorTypeServerError))
	assert.Contains(t, err.Error(), "max retry attempts (3) exceeded")
}

func TestDoDoesNotRetryAuthOrParseErrors(t *testing.T) {
	for _, e := range []error{
		errs.AuthExpired(401, "session rejected"),
		errs.FeedParseMismatch("3 links, 2 dates"),
		errs.New(errs.ErrorTypeNotFound, "post gone"),
	} {
		attempts := 0
		err := Do(context.Background(), func(ctx context.Context) error {
			attempts++
			return e
		}, fastConfig(5))

		assert.Same(t, e, err)
		assert.Equal(t, 1, attempts)
	}
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	cfg := fastConfig(10)
	cfg.Backoff = &ConstantBackoff{Delay: time.Hour}
	cfg.OnRetry = func(int, error, time.Duration) { cancel() }

	err := Do(ctx, func(ctx context.Context) error {
		attempts++
		return errs.New(errs.ErrorTypeNetwork, "timeout")
	}, cfg)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestRateLimitUsesDedicatedBackoff(t *testing.T) {
	var delays []time.Duration
	cfg := fastConfig(3)
	cfg.Backoff = &ConstantBackoff{Delay: time.Millisecond}
	cfg.RateLimitBackoff = &ConstantBackoff{Delay: 2 * time.Millisecond}
	cfg.OnRetry = func(_ int, _ error, d time.Duration) { delays = append(delays, d) }

	calls := 0
	_ = Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return errs.New(errs.ErrorTypeRateLimit, "429")
		}
		return errs.New(errs.ErrorTypeNetwork, "reset")
	}, cfg)

	assert.Equal(t, []time.Duration{2 * time.Millisecond, time.Millisecond}, delays)
}

func TestDoWithResult(t *testing.T) {
	attempts := 0
	result, err := DoWithResult(context.Background(), func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 2 {
			return "", errs.New(errs.ErrorTypeNetwork, "temporary")
		}
		return "page", nil
	}, fastConfig(3))

	require.NoError(t, err)
	assert.Equal(t, "page", result)
	assert.Equal(t, 2, attempts)
}

func TestFromSettings(t *testing.T) {
	disabled := FromSettings(config.RetryConfig{Enabled: false, MaxAttempts: 5}, nil)
	assert.Equal(t, 1, disabled.MaxAttempts)

	enabled := FromSettings(config.RetryConfig{
		Enabled:     true,
		MaxAttempts: 4,
		BaseDelay:   2 * time.Second,
		MaxDelay:    10 * time.Second,
	}, nil)
	assert.Equal(t, 4, enabled.MaxAttempts)
	eb, ok := enabled.Backoff.(*ExponentialBackoff)
	require.True(t, ok)
	assert.Equal(t, 2*time.Second, eb.BaseDelay)
	assert.Equal(t, 10*time.Second, eb.MaxDelay)
}
