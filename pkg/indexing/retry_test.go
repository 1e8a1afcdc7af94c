package indexing

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastRetryConfig() retryConfig {
	return retryConfig{attempts: 3, baseDelay: time.Millisecond}
}

func TestWithRetrySucceedsFirstTry(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), fastRetryConfig(), nil, func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("withRetry: %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := withRetry(context.Background(), fastRetryConfig(), nil, func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("withRetry err = %v, want %v", err, boom)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3 (all attempts used)", calls)
	}
}

func TestWithRetryNonTransientStopsImmediately(t *testing.T) {
	boom := errors.New("permanent")
	calls := 0
	isTransient := func(error) bool { return false }
	err := withRetry(context.Background(), fastRetryConfig(), isTransient, func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("withRetry err = %v, want %v", err, boom)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (non-transient should not retry)", calls)
	}
}

func TestWithRetrySucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), fastRetryConfig(), nil, func() error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("withRetry: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestWithRetryRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := withRetry(ctx, retryConfig{attempts: 3, baseDelay: time.Hour}, nil, func() error {
		calls++
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("withRetry err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (should stop at the first wait after cancellation)", calls)
	}
}
