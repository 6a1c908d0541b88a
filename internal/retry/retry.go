// Package retry wraps transient-failure retry with exponential backoff.
// It is a thin layer over sethvargo/go-retry that adds a pluggable
// retryability predicate and returns the last error unchanged once the
// retry budget is exhausted.
package retry

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/sethvargo/go-retry"
)

// Config controls retry behavior.
type Config struct {
	// MaxRetries is the number of retries after the initial attempt, so the
	// wrapped function runs at most MaxRetries+1 times.
	MaxRetries uint64
	// BaseDelay is the delay before the first retry; subsequent delays
	// double per attempt.
	BaseDelay time.Duration
	// MaxDelay caps the per-attempt delay.
	MaxDelay time.Duration
	// UseJitter randomizes each delay by up to 25% to avoid synchronized
	// retries across concurrent callers.
	UseJitter bool
	// IsRetryable decides whether an error is worth retrying. Defaults to
	// DefaultIsRetryable when nil.
	IsRetryable func(error) bool
}

// DefaultConfig returns the standard retry configuration for provider calls.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
		UseJitter:  true,
	}
}

// Do runs fn with exponential backoff per cfg. Errors for which IsRetryable
// returns false abort immediately. When the retry budget is exhausted the
// last error from fn is returned unchanged.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	isRetryable := cfg.IsRetryable
	if isRetryable == nil {
		isRetryable = DefaultIsRetryable
	}

	base := cfg.BaseDelay
	if base <= 0 {
		base = time.Second
	}

	var b retry.Backoff = retry.NewExponential(base)
	if cfg.MaxDelay > 0 {
		b = retry.WithCappedDuration(cfg.MaxDelay, b)
	}
	if cfg.UseJitter {
		b = retry.WithJitterPercent(25, b)
	}
	b = retry.WithMaxRetries(cfg.MaxRetries, b)

	var lastErr error
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			lastErr = err
			if isRetryable(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		// retry.Do may hand back its own wrapper; the caller gets the
		// original error from the final attempt.
		if lastErr != nil {
			return lastErr
		}
		return err
	}
	return nil
}

// DefaultIsRetryable retries rate-limit signals and network-class errors,
// not generic application errors.
func DefaultIsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"rate limit",
		"quota exceeded",
		"resource exhausted",
		"too many requests",
		"429",
		"connection reset",
		"unavailable",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
