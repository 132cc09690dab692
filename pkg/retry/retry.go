package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	errs "fxarchive/pkg/errors"
	"fxarchive/pkg/logger"
)

// Operation is one attempt of a retried call. attempt starts at 1.
type Operation func(ctx context.Context, attempt int) error

// SleepFunc waits between attempts. Wait is the default.
type SleepFunc func(ctx context.Context, d time.Duration) error

// DelayHinter is implemented by errors that carry a server-suggested delay,
// such as a Retry-After header.
type DelayHinter interface {
	RetryDelay() time.Duration
}

// Config holds retry configuration
type Config struct {
	// MaxAttempts is the total number of tries (0 means unlimited)
	MaxAttempts int
	Backoff     BackoffStrategy
	// RetryIf determines if an error should be retried
	RetryIf func(error) bool
	// OnRetry is called before sleeping for the next attempt
	OnRetry func(attempt int, err error, delay time.Duration)
	Sleep   SleepFunc
	Logger  logger.Logger
}

// ConfigFromPolicy builds a Config that retries with p's budget and curve.
func ConfigFromPolicy(p Policy, retryIf func(error) bool, log logger.Logger) *Config {
	return &Config{
		MaxAttempts: p.MaxAttempts(),
		Backoff:     p,
		RetryIf:     retryIf,
		Logger:      log,
	}
}

// DefaultRetryIf retries typed errors whose type is retryable and anything
// unknown, but never a cancelled or expired context.
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *errs.Error
	if errors.As(err, &apiErr) {
		return errs.IsRetryable(apiErr.Type)
	}
	return true
}

// Do runs op until it succeeds, returns a non-retryable error, or the attempt
// budget is spent. It returns the number of attempts made and the last error.
// When the budget runs out the returned error wraps both ErrRetryExhausted and
// the last error. Delays never shrink from one attempt to the next, even when
// an error suggests a shorter wait.
func Do(ctx context.Context, op Operation, cfg *Config) (int, error) {
	if cfg == nil {
		cfg = &Config{MaxAttempts: 3, Backoff: DefaultPolicy()}
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = Wait
	}
	backoff := cfg.Backoff
	if backoff == nil {
		backoff = &ConstantBackoff{}
	}
	backoff.Reset()

	var (
		lastErr   error
		lastDelay time.Duration
	)
	for attempt := 1; ; attempt++ {
		err := op(ctx, attempt)
		if err == nil {
			if attempt > 1 && cfg.Logger != nil {
				cfg.Logger.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return attempt, nil
		}
		lastErr = err

		if !retryIf(err) {
			return attempt, err
		}

		if cfg.MaxAttempts > 0 && attempt >= cfg.MaxAttempts {
			if cfg.Logger != nil {
				cfg.Logger.WarnWithFields("max retry attempts exceeded", map[string]interface{}{
					"attempts":   attempt,
					"last_error": lastErr.Error(),
				})
			}
			return attempt, fmt.Errorf("%w after %d attempts: %w", errs.ErrRetryExhausted, attempt, lastErr)
		}

		delay := backoff.NextDelay(attempt)
		var hinter DelayHinter
		if errors.As(err, &hinter) && hinter.RetryDelay() > delay {
			delay = min(hinter.RetryDelay(), MaxDelay)
		}
		if delay < lastDelay {
			delay = lastDelay
		}
		lastDelay = delay

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}
		if cfg.Logger != nil {
			cfg.Logger.DebugWithFields("retrying operation", map[string]interface{}{
				"attempt":      attempt,
				"error":        err.Error(),
				"delay_ms":     delay.Milliseconds(),
				"max_attempts": cfg.MaxAttempts,
			})
		}

		if werr := sleep(ctx, delay); werr != nil {
			return attempt, fmt.Errorf("retry cancelled: %w", errors.Join(werr, lastErr))
		}
	}
}

// DoWithResult executes an operation that returns a result with retry logic
func DoWithResult[T any](ctx context.Context, op func(ctx context.Context, attempt int) (T, error), cfg *Config) (T, int, error) {
	var result T
	attempts, err := Do(ctx, func(ctx context.Context, attempt int) error {
		var opErr error
		result, opErr = op(ctx, attempt)
		return opErr
	}, cfg)
	return result, attempts, err
}
