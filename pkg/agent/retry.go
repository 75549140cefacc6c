package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/aretw0/deprebuddy/pkg/domain"
)

// RetryPolicy is the backoff schedule for transient upstream failures.
type RetryPolicy struct {
	// MaxAttempts counts the first call.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Retryable reports whether err is worth another attempt.
	Retryable func(err error) bool
	// Sleep waits for d or until ctx is done. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy retries 429 and 5xx gateway errors five times, starting at one second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		MaxDelay:    16 * time.Second,
		Retryable:   IsRetryable,
		Sleep:       sleep,
	}
}

// IsRetryable reports whether err carries a transient HTTP status.
func IsRetryable(err error) bool {
	var sc interface{ StatusCode() int }
	if !errors.As(err, &sc) {
		return false
	}
	switch sc.StatusCode() {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Backoff returns the delay after the given zero-based attempt: base * 2^attempt, capped.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	delay := float64(p.BaseDelay) * math.Pow(2, float64(attempt))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	return time.Duration(delay)
}

// Do runs fn until it succeeds, fails permanently or the attempts run out.
// It returns the number of attempts made. Exhaustion wraps domain.ErrUpstreamExhausted
// together with the last error.
func (p RetryPolicy) Do(ctx context.Context, logger *slog.Logger, fn func(context.Context) error) (int, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}
	wait := p.Sleep
	if wait == nil {
		wait = sleep
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return attempt + 1, nil
		}
		if !retryable(lastErr) {
			return attempt + 1, lastErr
		}
		if attempt == attempts-1 {
			break
		}

		delay := p.Backoff(attempt)
		logger.Warn("Upstream call failed, retrying",
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", attempts),
			slog.Duration("backoff", delay),
			slog.Any("err", lastErr),
		)
		if err := wait(ctx, delay); err != nil {
			return attempt + 1, err
		}
	}

	return attempts, fmt.Errorf("%w after %d attempts: %w", domain.ErrUpstreamExhausted, attempts, lastErr)
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
