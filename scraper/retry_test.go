package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/use-agent/brandkit/models"
)

var fastRetry = RetryPolicy{Attempts: 2, Backoff: time.Millisecond}

func TestWithRetries_RetriesTransientFailure(t *testing.T) {
	calls := 0
	got, err := WithRetries(context.Background(), fastRetry, func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", models.NewScrapeError(models.ErrCodeNavigation, "flaky", nil)
		}
		return "ok", nil
	})
	if err != nil || got != "ok" {
		t.Fatalf("got (%q, %v), want ok", got, err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestWithRetries_PermanentErrorsNotRetried(t *testing.T) {
	for _, code := range []string{models.ErrCodeInvalidURL, models.ErrCodeBlockedURL} {
		calls := 0
		_, err := WithRetries(context.Background(), fastRetry, func(context.Context) (int, error) {
			calls++
			return 0, models.NewScrapeError(code, "nope", nil)
		})
		if models.CodeOf(err) != code {
			t.Errorf("code = %q, want %q", models.CodeOf(err), code)
		}
		if calls != 1 {
			t.Errorf("%s: calls = %d, want 1", code, calls)
		}
	}
}

func TestWithRetries_ExhaustsAttempts(t *testing.T) {
	calls := 0
	want := models.NewScrapeError(models.ErrCodeNavigation, "down", nil)
	_, err := WithRetries(context.Background(), fastRetry, func(context.Context) (int, error) {
		calls++
		return 0, want
	})
	if !errors.Is(err, want) {
		t.Errorf("err = %v, want last error", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestWithRetries_StopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := WithRetries(ctx, RetryPolicy{Attempts: 3, Backoff: time.Hour}, func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("transient")
	})
	if models.CodeOf(err) != models.ErrCodeTimeout {
		t.Errorf("code = %q, want TIMEOUT", models.CodeOf(err))
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{context.DeadlineExceeded, models.ErrCodeTimeout},
		{context.Canceled, models.ErrCodeTimeout},
		{errors.New("net::ERR_NAME_NOT_RESOLVED"), models.ErrCodeNavigation},
		{models.NewScrapeError(models.ErrCodeBlockedURL, "private", nil), models.ErrCodeBlockedURL},
	}
	for _, tt := range tests {
		if got := categorizeError(tt.err, "msg").Code; got != tt.want {
			t.Errorf("categorizeError(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
