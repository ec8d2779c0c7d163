package generation

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"datatav/internal/database"
	"datatav/internal/repository"
)

func strPtr(s string) *string { return &s }

func TestLogWriterFlushesOnStop(t *testing.T) {
	if err := database.Init(filepath.Join(t.TempDir(), "generation.db")); err != nil {
		t.Fatalf("init db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	w := NewLogWriter(database.GetDB(), 16, 100, time.Hour)
	now := time.Now().UTC()
	old := now.Add(-40 * 24 * time.Hour)

	entries := []LogEntry{
		{ID: "ok", CreatedAt: now, ClientID: "1.1.1.1", ModelID: strPtr("groq/openai/gpt-oss-120b"), Provider: strPtr("groq"),
			RowCount: 2, RowsReturned: 2, StatusCode: 200, Attempts: 1, LatencyMs: 40},
		{ID: "failed", CreatedAt: now, ClientID: "1.1.1.1", RowCount: 2, StatusCode: 429,
			ErrorKind: strPtr(string(KindRateLimitExceeded)), ErrorMessage: strPtr(messageRateLimited)},
		{ID: "old", CreatedAt: old, ClientID: "2.2.2.2", RowCount: 1, StatusCode: 200, Attempts: 1},
		// 同一个调用方请求 ID 的两次请求都要落库
		{ID: "dup-1", RequestID: "caller-id", CreatedAt: now, ClientID: "3.3.3.3", RowCount: 1, StatusCode: 200, Attempts: 1},
		{ID: "dup-2", RequestID: "caller-id", CreatedAt: now, ClientID: "3.3.3.3", RowCount: 1, StatusCode: 200, Attempts: 1},
	}
	for _, e := range entries {
		if !w.Record(e) {
			t.Fatalf("record %s rejected", e.ID)
		}
	}
	w.Stop()

	if w.Record(LogEntry{ID: "late"}) {
		t.Error("record after stop should be rejected")
	}

	repo := repository.NewGenerationLogRepository()
	logs, total, err := repo.List(repository.GenerationLogListParams{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 5 || len(logs) != 5 {
		t.Fatalf("total=%d len=%d, want 5", total, len(logs))
	}

	logs, total, err = repo.List(repository.GenerationLogListParams{RequestID: "caller-id"})
	if err != nil {
		t.Fatalf("list by request id: %v", err)
	}
	if total != 2 || logs[0].RequestID != "caller-id" {
		t.Fatalf("request id rows total=%d logs=%+v", total, logs)
	}

	status := 429
	logs, total, err = repo.List(repository.GenerationLogListParams{StatusCode: &status})
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if total != 1 || logs[0].ID != "failed" || logs[0].ErrorKind == nil || *logs[0].ErrorKind != "rate_limit_exceeded" {
		t.Fatalf("unexpected filtered result %+v", logs)
	}

	c := NewRetentionCleaner(repo, time.Hour, DefaultRetention)
	c.cleanup()
	_, total, err = repo.List(repository.GenerationLogListParams{})
	if err != nil {
		t.Fatalf("list after cleanup: %v", err)
	}
	if total != 4 {
		t.Errorf("total after cleanup = %d, want 4", total)
	}
}

type fakePurger struct {
	mu      sync.Mutex
	cutoffs []time.Time
	err     error
}

func (p *fakePurger) DeleteBefore(cutoff time.Time) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cutoffs = append(p.cutoffs, cutoff)
	return 1, p.err
}

func (p *fakePurger) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cutoffs)
}

func TestRetentionCleanerCutoff(t *testing.T) {
	p := &fakePurger{}
	c := NewRetentionCleaner(p, 0, 0)
	fixed := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	c.cleanup()
	if got, want := p.cutoffs[0], fixed.Add(-30*24*time.Hour); !got.Equal(want) {
		t.Fatalf("cutoff = %v, want %v", got, want)
	}

	p.err = errors.New("locked")
	c.cleanup()
	if p.calls() != 2 {
		t.Errorf("calls = %d", p.calls())
	}
}

func TestRetentionCleanerRunsOnStart(t *testing.T) {
	p := &fakePurger{}
	c := NewRetentionCleaner(p, time.Hour, time.Hour)
	c.Start()

	deadline := time.Now().Add(time.Second)
	for p.calls() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	c.Stop()
	if p.calls() != 1 {
		t.Fatalf("expected an immediate sweep, got %d", p.calls())
	}
}
