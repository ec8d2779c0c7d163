package billing

// TokenUsage 上游报告的 token 用量
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
}

// CostResult 成本计算结果
type CostResult struct {
	CostMicros int64  // 微美元 (USD * 1e6)
	CostUsd    string // USD 字符串（保留 6 位小数）
	PriceFound bool   // 模型是否配置了价格
}
