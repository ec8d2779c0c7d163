package model

import "time"

// GenerationSettingsResponse 生成设置响应
type GenerationSettingsResponse struct {
	RateLimit    int   `json:"rateLimit"`
	RateWindowMs int64 `json:"rateWindowMs"`
	MaxRetries   int   `json:"maxRetries"`
	BaseDelayMs  int64 `json:"baseDelayMs"`
}

// GenerationSettingsRequest 生成设置请求
type GenerationSettingsRequest struct {
	RateLimit    int   `json:"rateLimit" binding:"required,min=1,max=1000"`
	RateWindowMs int64 `json:"rateWindowMs" binding:"required,min=1000,max=3600000"`
	MaxRetries   *int  `json:"maxRetries" binding:"required,min=0,max=5"`
	BaseDelayMs  int64 `json:"baseDelayMs" binding:"required,min=100,max=30000"`
}

// SystemConfig 系统配置存储
type SystemConfig struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}
