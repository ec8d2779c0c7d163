package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

type permanentErr struct{}

func (permanentErr) Error() string   { return "upstream refused credentials" }
func (permanentErr) Permanent() bool { return true }

func TestDoShortCircuitsNonRetriable(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "401 in message", err: errors.New("request failed with status 401")},
		{name: "invalid", err: errors.New("Invalid request body")},
		{name: "not found", err: errors.New("model Not Found")},
		{name: "api key", err: errors.New("missing API key")},
		{name: "permanent error", err: permanentErr{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			_, err := Do(context.Background(), Config{MaxRetries: 2, BaseDelay: time.Millisecond}, func(context.Context) (string, error) {
				calls++
				return "", tt.err
			}, nil)
			if calls != 1 {
				t.Fatalf("expected exactly 1 attempt, got %d", calls)
			}
			if !errors.Is(err, tt.err) {
				t.Fatalf("expected original error, got %v", err)
			}
		})
	}
}

func TestDoExhaustsWithIncreasingDelays(t *testing.T) {
	transient := errors.New("upstream hiccup")
	var delays []time.Duration
	calls := 0

	_, err := Do(context.Background(), Config{MaxRetries: 2, BaseDelay: time.Millisecond}, func(context.Context) (int, error) {
		calls++
		return 0, transient
	}, func(attempt int, err error, delay time.Duration) {
		delays = append(delays, delay)
	})

	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if err != transient {
		t.Fatalf("expected last error unchanged, got %v", err)
	}
	if len(delays) != 2 {
		t.Fatalf("expected 2 waits, got %v", delays)
	}
	if delays[0] != time.Millisecond || delays[1] != 2*time.Millisecond {
		t.Fatalf("expected exponential delays 1ms,2ms, got %v", delays)
	}
}

func TestDoReturnsFirstSuccess(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), Config{MaxRetries: 2, BaseDelay: time.Millisecond}, func(context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", errors.New("503 service unavailable")
		}
		return "ok", nil
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" || calls != 2 {
		t.Fatalf("expected ok after 2 calls, got %q after %d", got, calls)
	}
}

func TestDoZeroRetries(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), Config{MaxRetries: 0, BaseDelay: time.Millisecond}, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("boom")
	}, nil)
	if err == nil || calls != 1 {
		t.Fatalf("expected single failing attempt, got calls=%d err=%v", calls, err)
	}
}

func TestDoStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Do(ctx, Config{MaxRetries: 5, BaseDelay: time.Hour}, func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("boom")
	}, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls != 1 {
		t.Fatalf("expected no retry after cancellation, got %d calls", calls)
	}
}

func TestAttempts(t *testing.T) {
	if got := DefaultConfig().Attempts(); got != 3 {
		t.Fatalf("expected 3 attempts by default, got %d", got)
	}
	if got := (Config{MaxRetries: -1}).Attempts(); got != 1 {
		t.Fatalf("expected 1 attempt for negative retries, got %d", got)
	}
}
