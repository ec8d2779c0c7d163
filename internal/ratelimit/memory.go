package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultSweepInterval 过期条目的清理间隔
const DefaultSweepInterval = 5 * time.Minute

type entry struct {
	count   int
	resetAt time.Time
}

// MemoryStore 进程内存储，不跨进程共享，重启后清零
type MemoryStore struct {
	mu            sync.Mutex
	entries       map[string]*entry
	now           func() time.Time
	sweepInterval time.Duration
	lastSweep     time.Time
	sweeping      atomic.Bool
}

func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

// NewMemoryStoreWithClock 注入时钟，便于测试窗口过期
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		entries:       make(map[string]*entry),
		now:           now,
		sweepInterval: DefaultSweepInterval,
		lastSweep:     now(),
	}
}

func (m *MemoryStore) Name() string {
	return "memory"
}

func (m *MemoryStore) Allow(_ context.Context, key string, limit int, window time.Duration) (Decision, error) {
	m.mu.Lock()
	now := m.now()
	sweepDue := now.Sub(m.lastSweep) >= m.sweepInterval
	if sweepDue {
		m.lastSweep = now
	}

	e, ok := m.entries[key]
	var d Decision
	switch {
	case !ok || !now.Before(e.resetAt):
		e = &entry{count: 1, resetAt: now.Add(window)}
		m.entries[key] = e
		d = Decision{Allowed: true, Limit: limit, Remaining: remaining(limit, 1), ResetAt: e.resetAt}
	case e.count >= limit:
		d = Decision{Allowed: false, Limit: limit, Remaining: 0, ResetAt: e.resetAt}
	default:
		e.count++
		d = Decision{Allowed: true, Limit: limit, Remaining: remaining(limit, e.count), ResetAt: e.resetAt}
	}
	m.mu.Unlock()

	// 清理在锁外异步进行，不影响本次判断
	if sweepDue && m.sweeping.CompareAndSwap(false, true) {
		go func() {
			defer m.sweeping.Store(false)
			m.Cleanup()
		}()
	}
	return d, nil
}

// Cleanup 删除所有已过期的条目，返回删除数量
func (m *MemoryStore) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for key, e := range m.entries {
		if !now.Before(e.resetAt) {
			delete(m.entries, key)
			removed++
		}
	}
	if removed > 0 {
		log.Debugf("ratelimit: swept %d expired entries, %d remaining", removed, len(m.entries))
	}
	return removed
}

// Len 当前跟踪的标识数量
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *MemoryStore) Close() error {
	return nil
}
