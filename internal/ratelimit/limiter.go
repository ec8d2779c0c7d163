package ratelimit

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultLimit  = 10
	DefaultWindow = time.Minute

	keyPrefix = "ratelimit:generate:"

	// UnknownIdentifier 无法识别来源的请求共用一个计数
	UnknownIdentifier = "unknown"
)

// Limiter 按标识限流，参数可在运行时更新
type Limiter struct {
	store Store

	mu     sync.RWMutex
	limit  int
	window time.Duration
}

func New(store Store, limit int, window time.Duration) *Limiter {
	l := &Limiter{store: store}
	l.Update(limit, window)
	return l
}

// Update 修改限流参数，非法值回退为默认值
func (l *Limiter) Update(limit int, window time.Duration) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	l.mu.Lock()
	l.limit = limit
	l.window = window
	l.mu.Unlock()
}

// Config 当前限流参数
func (l *Limiter) Config() (int, time.Duration) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.limit, l.window
}

func (l *Limiter) Store() Store {
	return l.store
}

// Allow 判断该标识是否允许继续请求；存储故障时放行
func (l *Limiter) Allow(ctx context.Context, identifier string) Decision {
	limit, window := l.Config()
	if identifier == "" {
		identifier = UnknownIdentifier
	}

	d, err := l.store.Allow(ctx, keyPrefix+identifier, limit, window)
	if err != nil {
		log.Warnf("ratelimit: %s store error, allowing request from %s: %v", l.store.Name(), identifier, err)
		return Decision{Allowed: true, Limit: limit, Remaining: limit}
	}
	return d
}

// ClientIP 从代理头中取客户端地址：X-Forwarded-For 第一个，其次 X-Real-IP、CF-Connecting-IP
func ClientIP(h http.Header) string {
	if xff := h.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	for _, name := range []string{"X-Real-IP", "CF-Connecting-IP"} {
		if ip := strings.TrimSpace(h.Get(name)); ip != "" {
			return ip
		}
	}
	return UnknownIdentifier
}
