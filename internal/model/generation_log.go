package model

// GenerationLog 生成请求日志
type GenerationLog struct {
	ID           string  `json:"id"`
	RequestID    string  `json:"requestId"`
	CreatedAt    string  `json:"createdAt"`
	ClientID     string  `json:"clientId"`
	ModelID      *string `json:"modelId,omitempty"`
	Provider     *string `json:"provider,omitempty"`
	RowCount     int     `json:"rowCount"`
	RowsReturned int     `json:"rowsReturned"`
	StatusCode   int     `json:"statusCode"`
	ErrorKind    *string `json:"errorKind,omitempty"`
	ErrorMessage *string `json:"errorMessage,omitempty"`
	Attempts     int     `json:"attempts"`
	LatencyMs    int64   `json:"latencyMs"`
	InputTokens  *int64  `json:"inputTokens,omitempty"`
	OutputTokens *int64  `json:"outputTokens,omitempty"`
	CostMicros   *int64  `json:"costMicros,omitempty"`
	CostUsd      *string `json:"costUsd,omitempty"`
}

// GenerationLogListResponse 日志分页响应
type GenerationLogListResponse struct {
	Items    []GenerationLog `json:"items"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"pageSize"`
}
