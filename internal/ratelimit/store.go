// Package ratelimit implements fixed-window request counting per caller identifier.
package ratelimit

import (
	"context"
	"time"
)

// Decision 一次限流判断的结果
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter 距离窗口重置的剩余时间（向上取整到秒）
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if d.ResetAt.IsZero() || !d.ResetAt.After(now) {
		return 0
	}
	wait := d.ResetAt.Sub(now)
	return (wait + time.Second - 1) / time.Second * time.Second
}

// Store 固定窗口计数存储。Allow 的读-判断-自增必须是原子的
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error)
	Name() string
	Close() error
}

func remaining(limit, count int) int {
	if count >= limit {
		return 0
	}
	return limit - count
}
