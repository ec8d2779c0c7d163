package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestMemoryStoreFixedWindow(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	store := NewMemoryStoreWithClock(clock.Now)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		d, _ := store.Allow(ctx, "ip", 3, time.Minute)
		if !d.Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
		if d.Remaining != 3-i {
			t.Fatalf("request %d: expected remaining %d, got %d", i, 3-i, d.Remaining)
		}
	}
	d, _ := store.Allow(ctx, "ip", 3, time.Minute)
	if d.Allowed {
		t.Fatalf("request over the limit should be rejected")
	}

	other, _ := store.Allow(ctx, "other-ip", 3, time.Minute)
	if !other.Allowed {
		t.Fatalf("identifiers must not share counters")
	}

	clock.Advance(time.Minute)
	d, _ = store.Allow(ctx, "ip", 3, time.Minute)
	if !d.Allowed || d.Remaining != 2 {
		t.Fatalf("expected fresh window after expiry, got %+v", d)
	}
}

func TestMemoryStoreRejectionDoesNotIncrement(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	store := NewMemoryStoreWithClock(clock.Now)
	ctx := context.Background()

	_, _ = store.Allow(ctx, "ip", 1, time.Minute)
	for i := 0; i < 5; i++ {
		_, _ = store.Allow(ctx, "ip", 1, time.Minute)
	}
	if got := store.entries["ip"].count; got != 1 {
		t.Fatalf("expected count to stay at limit, got %d", got)
	}
}

func TestMemoryStoreConcurrentAllow(t *testing.T) {
	store := NewMemoryStore()
	const limit = 10
	var allowed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d, _ := store.Allow(context.Background(), "shared", limit, time.Minute); d.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	if allowed.Load() != limit {
		t.Fatalf("expected exactly %d allowed, got %d", limit, allowed.Load())
	}
}

func TestMemoryStoreCleanup(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	store := NewMemoryStoreWithClock(clock.Now)
	ctx := context.Background()

	_, _ = store.Allow(ctx, "short", 5, time.Second)
	_, _ = store.Allow(ctx, "long", 5, time.Hour)
	clock.Advance(2 * time.Second)

	if removed := store.Cleanup(); removed != 1 {
		t.Fatalf("expected 1 expired entry removed, got %d", removed)
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 entry left, got %d", store.Len())
	}
}

func TestMemoryStoreLazySweep(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	store := NewMemoryStoreWithClock(clock.Now)
	ctx := context.Background()

	_, _ = store.Allow(ctx, "stale", 5, time.Second)
	clock.Advance(DefaultSweepInterval)
	_, _ = store.Allow(ctx, "fresh", 5, time.Minute)

	deadline := time.Now().Add(2 * time.Second)
	for store.Len() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("expected lazy sweep to drop stale entry, still have %d", store.Len())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRedisStoreFixedWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStoreFromClient(client)
	defer store.Close()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := store.Allow(ctx, "k", 2, time.Second)
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !d.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	d, err := store.Allow(ctx, "k", 2, time.Second)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if d.Allowed || d.Remaining != 0 {
		t.Fatalf("expected rejection, got %+v", d)
	}
	if got, _ := mr.Get("k"); got != "2" {
		t.Fatalf("rejection must not increment, counter=%s", got)
	}

	mr.FastForward(1100 * time.Millisecond)
	d, err = store.Allow(ctx, "k", 2, time.Second)
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if !d.Allowed || d.Remaining != 1 {
		t.Fatalf("expected new window, got %+v", d)
	}
}

type failingStore struct{}

func (failingStore) Allow(context.Context, string, int, time.Duration) (Decision, error) {
	return Decision{}, errors.New("connection refused")
}
func (failingStore) Name() string { return "failing" }
func (failingStore) Close() error { return nil }

func TestLimiterFailsOpen(t *testing.T) {
	l := New(failingStore{}, 5, time.Minute)
	if d := l.Allow(context.Background(), "ip"); !d.Allowed {
		t.Fatalf("expected store failure to allow request")
	}
}

func TestLimiterUpdate(t *testing.T) {
	l := New(NewMemoryStore(), 0, 0)
	if limit, window := l.Config(); limit != DefaultLimit || window != DefaultWindow {
		t.Fatalf("expected defaults, got %d/%v", limit, window)
	}
	l.Update(1, time.Hour)
	ctx := context.Background()
	if !l.Allow(ctx, "").Allowed {
		t.Fatalf("first request should pass")
	}
	if l.Allow(ctx, UnknownIdentifier).Allowed {
		t.Fatalf("empty identifier should share the unknown bucket")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{name: "forwarded for first hop", headers: map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1", "X-Real-IP": "10.0.0.2"}, want: "203.0.113.7"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": " 198.51.100.4 "}, want: "198.51.100.4"},
		{name: "cloudflare", headers: map[string]string{"CF-Connecting-IP": "192.0.2.9"}, want: "192.0.2.9"},
		{name: "empty forwarded for", headers: map[string]string{"X-Forwarded-For": " ,10.0.0.1", "X-Real-IP": "198.51.100.5"}, want: "198.51.100.5"},
		{name: "nothing", headers: nil, want: UnknownIdentifier},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}
			if got := ClientIP(h); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestDecisionRetryAfter(t *testing.T) {
	now := time.Unix(100, 0)
	d := Decision{ResetAt: now.Add(1500 * time.Millisecond)}
	if got := d.RetryAfter(now); got != 2*time.Second {
		t.Fatalf("expected 2s, got %v", got)
	}
	if got := (Decision{}).RetryAfter(now); got != 0 {
		t.Fatalf("expected 0 for zero reset, got %v", got)
	}
}
