// Package extract recovers a JSON array of row objects from free-form model output.
//
// Models frequently wrap the payload in markdown fences, surround it with prose or leave trailing
// commas behind. Extraction normalizes the text first and then runs an ordered cascade of parse
// strategies; the first one that yields a usable array wins.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// PreviewRunes 错误信息中附带的响应预览长度
const PreviewRunes = 200

var (
	ErrEmptyInput = errors.New("cannot extract JSON from empty text")
	ErrEmptyArray = errors.New("response array is empty")
	ErrNotAnArray = errors.New("response is not an array and does not contain a data array")
)

// Rows 提取出的行，保留模型输出的原始 JSON 文本（键顺序、数字精度不变）
type Rows []json.RawMessage

// Error 所有策略都失败时返回，Cause 为第一个解析策略的错误
type Error struct {
	Cause     error
	Preview   string
	Truncated bool
}

func (e *Error) Error() string {
	suffix := ""
	if e.Truncated {
		suffix = "..."
	}
	return fmt.Sprintf("Failed to parse JSON: %v. Response preview: %q", e.Cause, e.Preview+suffix)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// strategy 单个解析策略，输入为已规范化的候选文本
type strategy struct {
	name  string
	parse func(candidate string) (Rows, error)
}

// cascade 顺序固定：后面的策略依赖前面已经去掉 markdown 围栏
var cascade = []strategy{
	{name: "direct", parse: parseDirect},
	{name: "trailing_comma_repair", parse: parseRepaired},
}

var (
	jsonFencePattern     = regexp.MustCompile("```json\n?")
	closingFencePattern  = regexp.MustCompile("```\n?$")
	anyFencePattern      = regexp.MustCompile("```\n?")
	trailingCommaPattern = regexp.MustCompile(`,(\s*[}\]])`)
)

// Extract 从模型输出中提取 JSON 数组
func Extract(text string) (Rows, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	candidate := IsolateArray(StripFences(text))

	var firstErr error
	for _, s := range cascade {
		rows, err := s.parse(candidate)
		if err == nil {
			return rows, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}

	preview, truncated := previewOf(candidate)
	return nil, &Error{Cause: firstErr, Preview: preview, Truncated: truncated}
}

// StripFences 去掉开头的 ```json / ``` 和结尾的 ``` 围栏
func StripFences(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```json") {
		s = jsonFencePattern.ReplaceAllString(s, "")
		s = closingFencePattern.ReplaceAllString(s, "")
	} else if strings.HasPrefix(s, "```") {
		s = anyFencePattern.ReplaceAllString(s, "")
	}
	return strings.TrimSpace(s)
}

// IsolateArray 取第一个 '[' 到最后一个 ']' 之间的内容（贪婪匹配），找不到则原样返回
func IsolateArray(text string) string {
	start := strings.IndexByte(text, '[')
	if start < 0 {
		return text
	}
	end := strings.LastIndexByte(text, ']')
	if end <= start {
		return text
	}
	return text[start : end+1]
}

func parseDirect(candidate string) (Rows, error) {
	var raw json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &raw); err != nil {
		return nil, err
	}

	root := gjson.ParseBytes(raw)
	switch {
	case root.IsArray():
		rows := toRows(root)
		if len(rows) == 0 {
			return nil, ErrEmptyArray
		}
		return rows, nil
	case root.IsObject():
		if rows, ok := unwrapObject(root); ok {
			return rows, nil
		}
	}
	return nil, ErrNotAnArray
}

func parseRepaired(candidate string) (Rows, error) {
	fixed := trailingCommaPattern.ReplaceAllString(candidate, "$1")

	var raw json.RawMessage
	if err := json.Unmarshal([]byte(fixed), &raw); err != nil {
		return nil, err
	}
	root := gjson.ParseBytes(raw)
	if !root.IsArray() {
		return nil, ErrNotAnArray
	}
	rows := toRows(root)
	if len(rows) == 0 {
		return nil, ErrEmptyArray
	}
	return rows, nil
}

// wrapperKeys 常见的数组包装字段，按优先级排列
var wrapperKeys = []string{"data", "results", "items", "rows"}

// unwrapObject 从 {"data": [...]} 之类的对象中取出数组，否则取第一个数组类型的字段
func unwrapObject(obj gjson.Result) (Rows, bool) {
	fields := obj.Map()
	for _, key := range wrapperKeys {
		if v, ok := fields[key]; ok && v.IsArray() {
			return toRows(v), true
		}
	}

	var found gjson.Result
	obj.ForEach(func(_, value gjson.Result) bool {
		if value.IsArray() {
			found = value
			return false
		}
		return true
	})
	if found.Exists() {
		return toRows(found), true
	}
	return nil, false
}

func toRows(arr gjson.Result) Rows {
	items := arr.Array()
	rows := make(Rows, 0, len(items))
	for _, item := range items {
		rows = append(rows, json.RawMessage(item.Raw))
	}
	return rows
}

func previewOf(s string) (string, bool) {
	if utf8.RuneCountInString(s) <= PreviewRunes {
		return s, false
	}
	return string([]rune(s)[:PreviewRunes]), true
}
