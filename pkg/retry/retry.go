package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fcsync/pkg/config"
	errs "fcsync/pkg/errors"
	"fcsync/pkg/logger"
)

// Operation is a function that performs an operation that might need retrying
type Operation func(ctx context.Context) error

// Config holds retry configuration
type Config struct {
	// MaxAttempts is the maximum number of attempts, 1 disables retrying
	MaxAttempts int
	// Backoff is used for every retryable error except rate limiting
	Backoff BackoffStrategy
	// RateLimitBackoff is used after a 429, falls back to Backoff when nil
	RateLimitBackoff BackoffStrategy
	// RetryIf determines if an error should be retried
	RetryIf func(error) bool
	// OnRetry is called before each retry wait
	OnRetry func(attempt int, err error, delay time.Duration)
	Logger  logger.Logger
}

// DefaultConfig returns a retry configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		Backoff:     DefaultExponentialBackoff(),
		RateLimitBackoff: &ExponentialBackoff{
			BaseDelay:    30 * time.Second,
			MaxDelay:     5 * time.Minute,
			Multiplier:   1.5,
			JitterFactor: 0.3,
		},
		RetryIf: DefaultRetryIf,
		Logger:  logger.NewNopLogger(),
	}
}

// FromSettings builds a retry Config from the user-facing retry section.
// A disabled section yields a single-attempt policy.
func FromSettings(s config.RetryConfig, log logger.Logger) *Config {
	cfg := DefaultConfig()
	cfg.Logger = log
	if !s.Enabled || s.MaxAttempts <= 1 {
		cfg.MaxAttempts = 1
		return cfg
	}
	cfg.MaxAttempts = s.MaxAttempts
	cfg.Backoff = &ExponentialBackoff{
		BaseDelay:    s.BaseDelay,
		MaxDelay:     s.MaxDelay,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
	return cfg
}

// DefaultRetryIf retries transient transport and server failures only
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var typed *errs.Error
	if errors.As(err, &typed) {
		return errs.IsRetryable(typed.Type)
	}
	return false
}

// Do executes op until it succeeds, returns a non-retryable error, runs out
// of attempts or ctx is cancelled
func Do(ctx context.Context, op Operation, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		if cfg.MaxAttempts > 0 && attempt > cfg.MaxAttempts {
			log.WarnWithFields("max retry attempts exceeded", map[string]interface{}{
				"attempts":   attempt - 1,
				"last_error": lastErr.Error(),
			})
			return fmt.Errorf("max retry attempts (%d) exceeded: %w", cfg.MaxAttempts, lastErr)
		}

		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				log.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}
		lastErr = err

		if !retryIf(err) {
			return err
		}
		if cfg.MaxAttempts > 0 && attempt == cfg.MaxAttempts {
			continue
		}

		delay := cfg.backoffFor(err).NextDelay(attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}
		log.WarnWithFields("retrying operation", map[string]interface{}{
			"attempt":      attempt,
			"error":        err.Error(),
			"delay_ms":     delay.Milliseconds(),
			"max_attempts": cfg.MaxAttempts,
		})

		if err := Wait(ctx, delay); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}
	}
}

// DoWithResult executes an operation that returns a result with retry logic
func DoWithResult[T any](ctx context.Context, op func(ctx context.Context) (T, error), cfg *Config) (T, error) {
	var result T
	err := Do(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	}, cfg)
	return result, err
}

func (c *Config) backoffFor(err error) BackoffStrategy {
	if c.RateLimitBackoff != nil && errs.IsType(err, errs.ErrorTypeRateLimit) {
		return c.RateLimitBackoff
	}
	if c.Backoff == nil {
		return DefaultExponentialBackoff()
	}
	return c.Backoff
}
