package model

import "encoding/json"

// GenerateRequest POST /api/generate-ai-data 请求体
// 数值字段使用 any 以便区分 "未提供" 与 "类型错误"，并兼容字符串形式的行数
type GenerateRequest struct {
	Headers     any    `json:"headers"`
	RowCount    any    `json:"rowCount"`
	Context     any    `json:"context,omitempty"`
	Model       string `json:"model,omitempty"`
	Provider    string `json:"provider,omitempty"`
	APIKey      string `json:"apiKey,omitempty"`
	MaxTokens   any    `json:"maxTokens,omitempty"`
	Temperature any    `json:"temperature,omitempty"`
	Reasoning   any    `json:"reasoning,omitempty"`
}

// GenerateResponse 成功响应
type GenerateResponse struct {
	Data []json.RawMessage `json:"data"`
}

// ErrorResponse 失败响应
type ErrorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}
