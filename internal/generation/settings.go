package generation

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"datatav/internal/model"
	"datatav/internal/ratelimit"
	"datatav/internal/retry"

	log "github.com/sirupsen/logrus"
)

const settingsKey = "generation_settings"

var ErrInvalidSettings = errors.New("invalid generation settings")

// Settings 可在运行时调整的限流与重试参数
type Settings struct {
	RateLimit  int
	RateWindow time.Duration
	MaxRetries int
	BaseDelay  time.Duration
}

// DefaultSettings 每分钟 10 次，最多重试 2 次，退避基数 1 秒
func DefaultSettings() Settings {
	return Settings{
		RateLimit:  ratelimit.DefaultLimit,
		RateWindow: ratelimit.DefaultWindow,
		MaxRetries: retry.DefaultConfig().MaxRetries,
		BaseDelay:  retry.DefaultConfig().BaseDelay,
	}
}

// Validate 检查取值范围
func (s Settings) Validate() error {
	switch {
	case s.RateLimit < 1 || s.RateLimit > 1000:
		return fmt.Errorf("%w: rateLimit must be between 1 and 1000", ErrInvalidSettings)
	case s.RateWindow < time.Second || s.RateWindow > time.Hour:
		return fmt.Errorf("%w: rateWindowMs must be between 1000 and 3600000", ErrInvalidSettings)
	case s.MaxRetries < 0 || s.MaxRetries > 5:
		return fmt.Errorf("%w: maxRetries must be between 0 and 5", ErrInvalidSettings)
	case s.BaseDelay < 100*time.Millisecond || s.BaseDelay > 30*time.Second:
		return fmt.Errorf("%w: baseDelayMs must be between 100 and 30000", ErrInvalidSettings)
	}
	return nil
}

// Retry 转换为重试配置
func (s Settings) Retry() retry.Config {
	return retry.Config{MaxRetries: s.MaxRetries, BaseDelay: s.BaseDelay}
}

func (s Settings) ToResponse() model.GenerationSettingsResponse {
	return model.GenerationSettingsResponse{
		RateLimit:    s.RateLimit,
		RateWindowMs: s.RateWindow.Milliseconds(),
		MaxRetries:   s.MaxRetries,
		BaseDelayMs:  s.BaseDelay.Milliseconds(),
	}
}

func SettingsFromRequest(req model.GenerationSettingsRequest) Settings {
	s := Settings{
		RateLimit:  req.RateLimit,
		RateWindow: time.Duration(req.RateWindowMs) * time.Millisecond,
		BaseDelay:  time.Duration(req.BaseDelayMs) * time.Millisecond,
	}
	if req.MaxRetries != nil {
		s.MaxRetries = *req.MaxRetries
	}
	return s
}

// ConfigStore 键值配置存储（system_config 表）
type ConfigStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

// SettingsManager 持有当前设置，更新时先持久化再替换，并同步到限流器
type SettingsManager struct {
	mu sync.RWMutex
	// updateMu 串行化 持久化+替换，保证存储与内存一致
	updateMu sync.Mutex
	current  Settings
	store    ConfigStore
	limiter  *ratelimit.Limiter
}

func NewSettingsManager(defaults Settings, store ConfigStore, limiter *ratelimit.Limiter) *SettingsManager {
	if defaults.Validate() != nil {
		defaults = DefaultSettings()
	}
	m := &SettingsManager{current: defaults, store: store, limiter: limiter}
	m.apply(defaults)
	return m
}

// Load 从存储读取已保存的设置；没有或无效时保留默认值
func (m *SettingsManager) Load() error {
	if m.store == nil {
		return nil
	}
	m.updateMu.Lock()
	defer m.updateMu.Unlock()
	raw, err := m.store.Get(settingsKey)
	if err != nil {
		return err
	}
	if raw == "" {
		return nil
	}

	var saved model.GenerationSettingsResponse
	if err := json.Unmarshal([]byte(raw), &saved); err != nil {
		log.Warnf("generation: ignoring unreadable saved settings: %v", err)
		return nil
	}
	s := Settings{
		RateLimit:  saved.RateLimit,
		RateWindow: time.Duration(saved.RateWindowMs) * time.Millisecond,
		MaxRetries: saved.MaxRetries,
		BaseDelay:  time.Duration(saved.BaseDelayMs) * time.Millisecond,
	}
	if err := s.Validate(); err != nil {
		log.Warnf("generation: ignoring saved settings: %v", err)
		return nil
	}

	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
	m.apply(s)
	log.Infof("generation: loaded settings rateLimit=%d window=%v maxRetries=%d baseDelay=%v",
		s.RateLimit, s.RateWindow, s.MaxRetries, s.BaseDelay)
	return nil
}

// Update 校验、持久化并替换设置
func (m *SettingsManager) Update(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}

	m.updateMu.Lock()
	defer m.updateMu.Unlock()
	if m.store != nil {
		data, err := json.Marshal(s.ToResponse())
		if err != nil {
			return err
		}
		if err := m.store.Set(settingsKey, string(data)); err != nil {
			return fmt.Errorf("persist settings: %w", err)
		}
	}

	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
	m.apply(s)
	return nil
}

func (m *SettingsManager) Current() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

func (m *SettingsManager) apply(s Settings) {
	if m.limiter != nil {
		m.limiter.Update(s.RateLimit, s.RateWindow)
	}
}
