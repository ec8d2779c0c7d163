package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// ResponsesClient 单提示协议（/responses）
type ResponsesClient struct {
	name  string
	label string
	opts  Options
}

func NewResponsesClient(name, label string, opts Options) *ResponsesClient {
	return &ResponsesClient{
		name:  name,
		label: label,
		opts:  opts.withDefaults(DefaultOpenAIBaseURL),
	}
}

// NewOpenAIClient OpenAI Responses API
func NewOpenAIClient(opts Options) *ResponsesClient {
	return NewResponsesClient(ProviderOpenAI, "OpenAI", opts)
}

func (c *ResponsesClient) Name() string {
	return c.name
}

// Generate 消息被合并为单段 input 发送
func (c *ResponsesClient) Generate(ctx context.Context, req Request) (*Completion, error) {
	payload, err := buildResponsesBody(req)
	if err != nil {
		return nil, newError(KindProvider, c.name, 0, fmt.Sprintf("%s request encoding failed: %v", c.label, err), err)
	}

	resp, err := postJSON(ctx, c.opts, c.name, c.label, c.opts.BaseURL+"/responses", req.APIKey, payload)
	if err != nil {
		return nil, err
	}

	root := gjson.ParseBytes(resp.body)
	text := strings.TrimSpace(outputText(root))
	if text == "" {
		return nil, newError(KindEmptyResponse, c.name, resp.status, fmt.Sprintf("%s returned an empty response", c.label), nil)
	}

	return &Completion{
		Text: text,
		Usage: Usage{
			InputTokens:  root.Get("usage.input_tokens").Int(),
			OutputTokens: root.Get("usage.output_tokens").Int(),
		},
	}, nil
}

// outputText 拼接 output 中 type=message 项下所有 type=output_text 的文本（无分隔符）
func outputText(root gjson.Result) string {
	var b strings.Builder
	for _, item := range root.Get("output").Array() {
		if item.Get("type").String() != "message" {
			continue
		}
		for _, part := range item.Get("content").Array() {
			if part.Get("type").String() != "output_text" {
				continue
			}
			b.WriteString(part.Get("text").String())
		}
	}
	return b.String()
}

func buildResponsesBody(req Request) ([]byte, error) {
	body := []byte(`{}`)
	var err error
	if body, err = sjson.SetBytes(body, "model", req.Model); err != nil {
		return nil, err
	}
	if body, err = sjson.SetBytes(body, "input", req.Prompt()); err != nil {
		return nil, err
	}
	if body, err = sjson.SetBytes(body, "temperature", req.Temperature); err != nil {
		return nil, err
	}
	if req.MaxTokens > 0 {
		if body, err = sjson.SetBytes(body, "max_output_tokens", req.MaxTokens); err != nil {
			return nil, err
		}
	}
	if req.ReasoningEffort != "" {
		if body, err = sjson.SetBytes(body, "reasoning.effort", req.ReasoningEffort); err != nil {
			return nil, err
		}
	}
	return body, nil
}
