// Package prompt builds the system/user prompt pair sent to the upstream models.
package prompt

import (
	"fmt"
	"strings"
)

// MaxContextRunes 上下文描述的最大字符数，超出部分直接截断
const MaxContextRunes = 500

// SystemPrompt 固定的系统提示，约束模型只输出 JSON 数组
const SystemPrompt = `You are a synthetic data generation engine that produces realistic, diverse sample records for spreadsheets.

Output contract:
- Respond with a single valid JSON array and nothing else.
- Every element of the array is a flat JSON object representing one row.
- Do not wrap the array in markdown code fences.
- Do not add explanations, notes, headings or any text before or after the array.
- Never invent extra keys and never omit a requested key.`

// Payload 一次生成请求对应的提示词
type Payload struct {
	SystemPrompt string `json:"systemPrompt"`
	UserPrompt   string `json:"userPrompt"`
}

// SanitizeContext 去除首尾空白并截断到 MaxContextRunes 个字符
func SanitizeContext(raw string) string {
	raw = strings.TrimSpace(raw)
	runes := []rune(raw)
	if len(runes) > MaxContextRunes {
		return string(runes[:MaxContextRunes])
	}
	return raw
}

// Build 根据列名、行数和上下文生成提示词，纯函数，相同输入总是得到相同输出
func Build(headers []string, rowCount int, context string) Payload {
	var b strings.Builder

	columnWord := "columns"
	if len(headers) == 1 {
		columnWord = "column"
	}
	rowWord := "rows"
	if rowCount == 1 {
		rowWord = "row"
	}

	fmt.Fprintf(&b, "Generate %d %s of realistic sample data with %d %s.\n", rowCount, rowWord, len(headers), columnWord)
	fmt.Fprintf(&b, "Columns: %s\n", strings.Join(headers, ", "))
	if context != "" {
		fmt.Fprintf(&b, "Context: %s\n", context)
	}

	b.WriteString("\nRequirements:\n")
	fmt.Fprintf(&b, "- Return ONLY a valid JSON array containing exactly %d objects, one object per row\n", rowCount)
	b.WriteString("- Each object must contain every column name above as a key, spelled exactly as given\n")
	b.WriteString("- Use realistic, varied values that make sense for each column\n")
	b.WriteString("- Use realistic full names for names and realistic addresses for emails and locations\n")
	b.WriteString("- Use ISO 8601 format (YYYY-MM-DD) for dates\n")
	b.WriteString("- Use JSON numbers for numeric values and JSON booleans for true/false values\n")
	b.WriteString("- Do not use markdown code fences\n")
	b.WriteString("- Do not include any text before or after the JSON array")

	return Payload{
		SystemPrompt: SystemPrompt,
		UserPrompt:   b.String(),
	}
}
