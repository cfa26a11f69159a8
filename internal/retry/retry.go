// Package retry wraps idempotent network operations with exponential
// backoff and jitter, retrying only errors the taxonomy marks retryable.
package retry

import (
	"context"
	"errors"
	"net"
	"syscall"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/kseleznyov/careervault/internal/errs"
)

// Config controls the backoff schedule. The delay before attempt n is
// min(BaseDelay * 2^(n-1) + jitter, MaxDelay).
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      time.Duration
}

// DefaultConfig returns the standard policy: 3 attempts, 1s base delay,
// up to 1s of jitter, capped at 10s.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
		Jitter:      time.Second,
	}
}

// shouldRetry is the retry predicate: taxonomy-retryable errors except sync
// conflicts (replaying an identical conflicted write cannot succeed), plus
// raw connectivity failures from the net layer.
func shouldRetry(err error) bool {
	if errs.CodeOf(err) == errs.CodeSyncConflict {
		return false
	}
	if errs.Retryable(err) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET)
}

// Do runs fn with the configured backoff. Non-retryable errors surface after
// a single attempt; on exhaustion the last error from fn is returned.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	b := retry.NewExponential(cfg.BaseDelay)
	if cfg.Jitter > 0 {
		b = retry.WithJitter(cfg.Jitter, b)
	}
	b = retry.WithCappedDuration(cfg.MaxDelay, b)
	b = retry.WithMaxRetries(uint64(cfg.MaxAttempts-1), b)

	var lastErr error
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		callErr := fn(ctx)
		if callErr == nil {
			return nil
		}
		lastErr = callErr
		if shouldRetry(callErr) {
			return retry.RetryableError(callErr)
		}
		return callErr
	})
	if err == nil {
		return nil
	}
	if lastErr != nil {
		return lastErr
	}
	return err
}
