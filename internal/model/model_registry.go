package model

// ModelRegistryResponse GET /api/model-registry 响应；目录不可用时 models 为空数组并带上 error
type ModelRegistryResponse struct {
	Models     any    `json:"models"`
	Source     string `json:"source,omitempty"`
	Error      string `json:"error,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// ModelRegistryReloadResponse 重新加载结果
type ModelRegistryReloadResponse struct {
	Source     string `json:"source"`
	ModelCount int    `json:"modelCount"`
	Error      string `json:"error,omitempty"`
}
