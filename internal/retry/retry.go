package retry

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
)

// Config 重试配置（可通过管理员界面覆盖）
type Config struct {
	MaxRetries int           `json:"maxRetries"`
	BaseDelay  time.Duration `json:"baseDelay"`
}

// DefaultConfig 默认最多重试 2 次，首次等待 1 秒，之后按 2 倍递增
func DefaultConfig() Config {
	return Config{
		MaxRetries: 2,
		BaseDelay:  time.Second,
	}
}

// Attempts 最多调用次数
func (c Config) Attempts() int {
	if c.MaxRetries < 0 {
		return 1
	}
	return c.MaxRetries + 1
}

// permanent 由分类好的供应商错误实现，声明自身不可重试
type permanent interface {
	Permanent() bool
}

// nonRetriableMarkers 错误信息中出现这些片段时不再重试（比较前转小写）
var nonRetriableMarkers = []string{"invalid", "401", "404", "not found", "api key"}

// IsRetriable 判断错误是否值得重试
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var p permanent
	if errors.As(err, &p) && p.Permanent() {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range nonRetriableMarkers {
		if strings.Contains(msg, marker) {
			return false
		}
	}
	return true
}

// NotifyFunc 每次失败后、等待前回调，attempt 从 1 开始
type NotifyFunc func(attempt int, err error, delay time.Duration)

// Do 执行 op，失败时按指数退避重试；不可重试的错误立即返回，重试耗尽后返回最后一次错误
func Do[T any](ctx context.Context, cfg Config, op func(ctx context.Context) (T, error), notify NotifyFunc) (T, error) {
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	b := newBackOff(cfg.BaseDelay)
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxRetries)), ctx)

	attempt := 0
	operation := func() (T, error) {
		attempt++
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if !IsRetriable(err) {
			log.Debugf("retry: attempt %d failed with non-retriable error: %v", attempt, err)
			return result, backoff.Permanent(err)
		}
		return result, err
	}

	onRetry := func(err error, delay time.Duration) {
		log.WithFields(log.Fields{
			"attempt":      attempt,
			"max_attempts": maxRetries + 1,
			"delay":        delay,
		}).Warnf("retry: attempt failed: %v", err)
		if notify != nil {
			notify(attempt, err, delay)
		}
	}

	return backoff.RetryNotifyWithData(operation, policy, onRetry)
}

// newBackOff 无抖动的指数退避：base, 2*base, 4*base ...
func newBackOff(base time.Duration) *backoff.ExponentialBackOff {
	if base <= 0 {
		base = DefaultConfig().BaseDelay
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = base << 10
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}
