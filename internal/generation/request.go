package generation

import (
	"math"
	"strconv"
	"strings"

	"datatav/internal/model"
	"datatav/internal/prompt"
)

const (
	MaxHeaders  = 50
	MinRowCount = 1
	MaxRowCount = 100
)

var reasoningLevels = map[string]struct{}{"low": {}, "medium": {}, "high": {}}

// Input 校验并规范化后的生成请求
type Input struct {
	Headers     []string
	RowCount    int
	Context     string
	ModelID     string
	Provider    string
	APIKey      string
	MaxTokens   *int
	Temperature *float64
	Reasoning   string
}

// Normalize 校验请求体，任何字段不合法都会让整个请求失败
func Normalize(req model.GenerateRequest) (Input, *Error) {
	var in Input

	rawHeaders, ok := req.Headers.([]any)
	if !ok || len(rawHeaders) == 0 {
		return in, validationError("Headers are required")
	}
	if len(rawHeaders) > MaxHeaders {
		return in, validationError("Maximum 50 headers allowed")
	}
	for _, h := range rawHeaders {
		if s := strings.TrimSpace(headerString(h)); s != "" {
			in.Headers = append(in.Headers, s)
		}
	}
	if len(in.Headers) == 0 {
		return in, validationError("Valid headers are required")
	}

	rowCount, ok := integerValue(req.RowCount)
	if !ok || rowCount < MinRowCount || rowCount > MaxRowCount {
		return in, validationError("Row count must be between 1 and 100")
	}
	in.RowCount = rowCount

	if s, ok := req.Context.(string); ok {
		in.Context = prompt.SanitizeContext(s)
	}

	if req.MaxTokens != nil {
		f, ok := req.MaxTokens.(float64)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) || f < 1 {
			return in, validationError("maxTokens must be a positive number")
		}
		n := int(math.Floor(f))
		in.MaxTokens = &n
	}

	if req.Temperature != nil {
		f, ok := req.Temperature.(float64)
		if !ok || f < 0 || f > 2 {
			return in, validationError("temperature must be between 0 and 2")
		}
		in.Temperature = &f
	}

	if req.Reasoning != nil {
		s, isString := req.Reasoning.(string)
		if !isString || s != "" {
			if _, valid := reasoningLevels[s]; !valid {
				return in, validationError("reasoning must be low, medium, or high")
			}
			in.Reasoning = s
		}
	}

	in.ModelID = strings.TrimSpace(req.Model)
	in.Provider = strings.TrimSpace(req.Provider)
	in.APIKey = strings.TrimSpace(req.APIKey)
	return in, nil
}

// headerString 列名只接受标量，其他类型视为空
func headerString(v any) string {
	switch h := v.(type) {
	case string:
		return h
	case float64:
		return strconv.FormatFloat(h, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(h)
	default:
		return ""
	}
}

// integerValue 接受 JSON 数字或数字字符串，必须是整数
func integerValue(v any) (int, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt32 || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}
