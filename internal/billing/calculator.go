package billing

import (
	"datatav/internal/catalog"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var perMillion = decimal.NewFromInt(1_000_000)

// Calculate 按模型目录中的单价估算一次生成的成本
// 未配置价格时 PriceFound 为 false，成本为 0
func Calculate(model catalog.ModelDefinition, usage TokenUsage) CostResult {
	result := CostResult{CostUsd: "0.000000"}
	if model.Pricing == nil {
		return result
	}
	result.PriceFound = true

	// 负数 token 归零
	in := usage.InputTokens
	if in < 0 {
		in = 0
	}
	out := usage.OutputTokens
	if out < 0 {
		out = 0
	}

	inputCost := decimal.NewFromInt(in).Mul(decimal.NewFromFloat(model.Pricing.InputPerMillion)).Div(perMillion)
	outputCost := decimal.NewFromInt(out).Mul(decimal.NewFromFloat(model.Pricing.OutputPerMillion)).Div(perMillion)
	total := inputCost.Add(outputCost).Round(6)

	result.CostMicros = total.Mul(perMillion).IntPart()
	result.CostUsd = total.StringFixed(6)

	log.Debugf("billing: calculated cost for %s - input=%d, output=%d -> $%s", model.ID, in, out, result.CostUsd)
	return result
}
