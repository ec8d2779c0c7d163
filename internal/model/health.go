package model

// HealthResponse GET /api/health 响应
type HealthResponse struct {
	Status    string       `json:"status"`
	Timestamp string       `json:"timestamp"`
	Version   string       `json:"version"`
	Checks    HealthChecks `json:"checks"`
}

type HealthChecks struct {
	ModelRegistry  ModelRegistryCheck   `json:"modelRegistry"`
	Environment    EnvironmentCheck     `json:"environment"`
	RateLimitStore *RateLimitStoreCheck `json:"rateLimitStore,omitempty"`
}

type ModelRegistryCheck struct {
	Status     string `json:"status"`
	ModelCount int    `json:"modelCount"`
	Source     string `json:"source,omitempty"`
	Error      string `json:"error,omitempty"`
}

type EnvironmentCheck struct {
	Status       string `json:"status"`
	HasGroqKey   bool   `json:"hasGroqKey"`
	HasOpenAIKey bool   `json:"hasOpenAIKey"`
}

type RateLimitStoreCheck struct {
	Status  string `json:"status"`
	Backend string `json:"backend"`
	Error   string `json:"error,omitempty"`
}
