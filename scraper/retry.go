package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/use-agent/brandkit/models"
)

// RetryPolicy configures WithRetries. Attempts counts total tries.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// DefaultRetryPolicy tries twice with a one second base backoff.
var DefaultRetryPolicy = RetryPolicy{Attempts: 2, Backoff: time.Second}

// WithRetries calls fn until it succeeds or the attempts are used up,
// sleeping Backoff × attempt between tries. INVALID_URL and BLOCKED_URL
// errors are permanent and returned immediately, as is ctx expiring.
func WithRetries[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	attempts := max(policy.Attempts, 1)

	var zero T
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if models.IsPermanent(err) || attempt == attempts {
			break
		}

		wait := policy.Backoff * time.Duration(attempt)
		slog.Debug("retrying after failure",
			"attempt", attempt, "wait", wait, "code", models.CodeOf(err), "error", err,
		)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, categorizeError(ctx.Err(), "retry abandoned")
		case <-timer.C:
		}
	}
	return zero, lastErr
}
