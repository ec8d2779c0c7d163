// Package catalog loads the allow-listed model definitions.
//
// The catalog is read once from AI_MODEL_REGISTRY_FILE or AI_MODEL_REGISTRY and cached until Reset.
// A missing or invalid source falls back to a built-in list so generation keeps working.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
)

// DefaultModelID 请求未指定模型时使用
const DefaultModelID = "groq/openai/gpt-oss-120b"

// Source 目录来源
type Source string

const (
	SourceFile     Source = "file"
	SourceEnv      Source = "env"
	SourceStatic   Source = "static"
	SourceFallback Source = "fallback"
)

var (
	ErrNotConfigured = errors.New("AI model registry is not configured. Set AI_MODEL_REGISTRY or AI_MODEL_REGISTRY_FILE to continue.")
	ErrUnknownModel  = errors.New("model is not registered")
)

// UnknownModelError 请求的模型不在目录中
type UnknownModelError struct {
	ID string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("Model %q is not registered. Update AI_MODEL_REGISTRY to include it.", e.ID)
}

func (e *UnknownModelError) Unwrap() error {
	return ErrUnknownModel
}

var validate = validator.New()

func float64Ptr(v float64) *float64 { return &v }

// fallbackModels 未配置或配置无效时使用
var fallbackModels = []ModelDefinition{
	{ID: "groq/qwen-qwq-32b", Label: "Qwen QwQ 32B (Groq)", Provider: "groq", Model: "qwen-qwq-32b", Temperature: float64Ptr(0.6)},
	{ID: "groq/openai/gpt-oss-120b", Label: "GPT-OSS 120B (Groq)", Provider: "groq", Model: "openai/gpt-oss-120b", Temperature: float64Ptr(1),
		Pricing: &Pricing{InputPerMillion: 0.15, OutputPerMillion: 0.75}},
	{ID: "groq/openai/gpt-oss-20b", Label: "GPT-OSS 20B (Groq)", Provider: "groq", Model: "openai/gpt-oss-20b", Temperature: float64Ptr(1),
		Pricing: &Pricing{InputPerMillion: 0.10, OutputPerMillion: 0.50}},
	{ID: "openai/gpt-5-mini-2025-08-07", Label: "GPT-5 mini", Provider: "openai", Model: "gpt-5-mini-2025-08-07",
		Pricing: &Pricing{InputPerMillion: 0.25, OutputPerMillion: 2.00}},
	{ID: "openai/gpt-5-nano-2025-08-07", Label: "GPT-5 nano", Provider: "openai", Model: "gpt-5-nano-2025-08-07",
		Pricing: &Pricing{InputPerMillion: 0.05, OutputPerMillion: 0.40}},
}

// FallbackModels 内置模型列表的副本
func FallbackModels() []ModelDefinition {
	out := make([]ModelDefinition, len(fallbackModels))
	copy(out, fallbackModels)
	return out
}

// Catalog 进程级模型目录缓存
type Catalog struct {
	file   string
	inline string

	mu      sync.RWMutex
	loaded  bool
	models  []ModelDefinition
	source  Source
	loadErr error
}

// New 从文件路径或内联 JSON 加载（文件优先）
func New(file, inline string) *Catalog {
	return &Catalog{file: strings.TrimSpace(file), inline: strings.TrimSpace(inline)}
}

// NewStatic 使用固定列表，不会回退
func NewStatic(models []ModelDefinition) *Catalog {
	c := &Catalog{loaded: true, source: SourceStatic}
	c.models = append([]ModelDefinition(nil), models...)
	return c
}

func (c *Catalog) ensureLoaded() {
	c.mu.RLock()
	loaded := c.loaded
	c.mu.RUnlock()
	if loaded {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return
	}

	models, source, err := c.load()
	if err != nil {
		log.Warnf("catalog: %v, using %d fallback models", err, len(fallbackModels))
		models, source = FallbackModels(), SourceFallback
	} else {
		log.Infof("catalog: loaded %d models from %s", len(models), source)
	}
	c.models, c.source, c.loadErr, c.loaded = models, source, err, true
}

func (c *Catalog) load() ([]ModelDefinition, Source, error) {
	switch {
	case c.file != "":
		path := c.file
		if !filepath.IsAbs(path) {
			if wd, err := os.Getwd(); err == nil {
				path = filepath.Join(wd, path)
			}
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, SourceFile, fmt.Errorf("read registry file: %w", err)
		}
		models, err := Parse(raw)
		return models, SourceFile, err
	case c.inline != "":
		models, err := Parse([]byte(c.inline))
		return models, SourceEnv, err
	default:
		return nil, "", ErrNotConfigured
	}
}

// Parse 解析并校验 JSON 数组形式的模型目录
func Parse(raw []byte) ([]ModelDefinition, error) {
	var models []ModelDefinition
	if err := json.Unmarshal(raw, &models); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	if len(models) == 0 {
		return nil, errors.New("AI model registry must include at least one model")
	}
	seen := make(map[string]struct{}, len(models))
	for i, m := range models {
		if err := validate.Struct(m); err != nil {
			return nil, fmt.Errorf("validate registry entry %d: %w", i, err)
		}
		if _, dup := seen[m.ID]; dup {
			return nil, fmt.Errorf("validate registry: duplicate model id %q", m.ID)
		}
		seen[m.ID] = struct{}{}
	}
	return models, nil
}

// List 返回目录副本
func (c *Catalog) List() []ModelDefinition {
	c.ensureLoaded()
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ModelDefinition, len(c.models))
	copy(out, c.models)
	return out
}

// Resolve 查找模型；id 为空时返回默认模型（不存在则返回第一个）
func (c *Catalog) Resolve(id string) (ModelDefinition, error) {
	c.ensureLoaded()
	c.mu.RLock()
	defer c.mu.RUnlock()

	id = strings.TrimSpace(id)
	if id == "" {
		for _, m := range c.models {
			if m.ID == DefaultModelID {
				return m, nil
			}
		}
		if len(c.models) > 0 {
			return c.models[0], nil
		}
		return ModelDefinition{}, &UnknownModelError{ID: DefaultModelID}
	}

	for _, m := range c.models {
		if m.ID == id {
			return m, nil
		}
	}
	return ModelDefinition{}, &UnknownModelError{ID: id}
}

// Reset 清除缓存，下次访问时重新加载
func (c *Catalog) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.source == SourceStatic {
		return
	}
	c.loaded = false
	c.models = nil
	c.source = ""
	c.loadErr = nil
}

// Source 当前使用的来源
func (c *Catalog) Source() Source {
	c.ensureLoaded()
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.source
}

// LoadError 最近一次加载失败的原因（已回退到内置列表时非空）
func (c *Catalog) LoadError() error {
	c.ensureLoaded()
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadErr
}
