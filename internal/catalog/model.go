package catalog

import "strings"

// Toggle 能力开关
type Toggle struct {
	Enabled bool `json:"enabled"`
}

// Capabilities 模型可选能力，供前端和接口层决定是否启用对应功能
type Capabilities struct {
	BrowserSearch   *Toggle `json:"browserSearch,omitempty"`
	CodeInterpreter *Toggle `json:"codeInterpreter,omitempty"`
	MCP             *struct {
		Tavily *Toggle `json:"tavily,omitempty"`
	} `json:"mcp,omitempty"`
	Functions *Toggle `json:"functions,omitempty"`
	Modes     *struct {
		StreamDefault bool `json:"streamDefault"`
	} `json:"modes,omitempty"`
	Seed *int     `json:"seed,omitempty"`
	TopP *float64 `json:"topP,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// Pricing 单位: USD / 百万 token
type Pricing struct {
	InputPerMillion  float64 `json:"inputPerMillion" validate:"gte=0"`
	OutputPerMillion float64 `json:"outputPerMillion" validate:"gte=0"`
}

// ModelDefinition 模型目录条目，加载后不可变
type ModelDefinition struct {
	ID           string        `json:"id" validate:"required"`
	Label        string        `json:"label" validate:"required"`
	Provider     string        `json:"provider" validate:"required"`
	Model        string        `json:"model,omitempty"`
	Endpoint     string        `json:"endpoint,omitempty" validate:"omitempty,url"`
	Temperature  *float64      `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxTokens    *int          `json:"maxTokens,omitempty" validate:"omitempty,gt=0"`
	Capabilities *Capabilities `json:"capabilities,omitempty"`
	Pricing      *Pricing      `json:"pricing,omitempty"`
}

// ProviderKey 小写的供应商标识
func (d ModelDefinition) ProviderKey() string {
	return strings.ToLower(strings.TrimSpace(d.Provider))
}

// TargetModel 发送给上游的模型名：优先 model 字段，并去掉 "provider/" 前缀
func (d ModelDefinition) TargetModel() string {
	base := d.Model
	if base == "" {
		base = d.ID
	}
	prefix := d.ProviderKey() + "/"
	if strings.HasPrefix(base, prefix) {
		return base[len(prefix):]
	}
	return base
}

// DefaultTemperature 未配置时为 1
func (d ModelDefinition) DefaultTemperature() float64 {
	if d.Temperature != nil {
		return *d.Temperature
	}
	return 1
}

// DefaultMaxTokens 未配置时为 0，表示不限制
func (d ModelDefinition) DefaultMaxTokens() int {
	if d.MaxTokens != nil {
		return *d.MaxTokens
	}
	return 0
}

// TopP 模型默认 top_p（可选）
func (d ModelDefinition) TopP() *float64 {
	if d.Capabilities == nil {
		return nil
	}
	return d.Capabilities.TopP
}
