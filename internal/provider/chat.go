package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const DefaultGroqBaseURL = "https://api.groq.com/openai/v1"

// ChatClient 消息数组协议（/chat/completions）
type ChatClient struct {
	name  string
	label string
	opts  Options
}

// NewChatClient 创建 chat completions 客户端，name 为供应商标识，label 用于错误信息
func NewChatClient(name, label string, opts Options) *ChatClient {
	return &ChatClient{
		name:  name,
		label: label,
		opts:  opts.withDefaults(DefaultGroqBaseURL),
	}
}

// NewGroqClient Groq 的 OpenAI 兼容接口
func NewGroqClient(opts Options) *ChatClient {
	return NewChatClient(ProviderGroq, "Groq", opts)
}

func (c *ChatClient) Name() string {
	return c.name
}

// Generate 发送一次非流式 completion 请求，返回第一个 choice 的文本
func (c *ChatClient) Generate(ctx context.Context, req Request) (*Completion, error) {
	payload, err := buildChatBody(req)
	if err != nil {
		return nil, newError(KindProvider, c.name, 0, fmt.Sprintf("%s request encoding failed: %v", c.label, err), err)
	}

	resp, err := postJSON(ctx, c.opts, c.name, c.label, c.opts.BaseURL+"/chat/completions", req.APIKey, payload)
	if err != nil {
		return nil, err
	}

	root := gjson.ParseBytes(resp.body)
	choices := root.Get("choices")
	if !choices.IsArray() || len(choices.Array()) == 0 {
		return nil, newError(KindEmptyResponse, c.name, resp.status, fmt.Sprintf("%s returned no completion choices", c.label), nil)
	}
	text := choices.Array()[0].Get("message.content").String()
	if strings.TrimSpace(text) == "" {
		return nil, newError(KindEmptyResponse, c.name, resp.status, fmt.Sprintf("%s returned an empty completion", c.label), nil)
	}

	return &Completion{
		Text: text,
		Usage: Usage{
			InputTokens:  root.Get("usage.prompt_tokens").Int(),
			OutputTokens: root.Get("usage.completion_tokens").Int(),
		},
	}, nil
}

func buildChatBody(req Request) ([]byte, error) {
	body := []byte(`{}`)
	var err error
	if body, err = sjson.SetBytes(body, "model", req.Model); err != nil {
		return nil, err
	}
	if body, err = sjson.SetBytes(body, "messages", req.Messages); err != nil {
		return nil, err
	}
	if body, err = sjson.SetBytes(body, "temperature", req.Temperature); err != nil {
		return nil, err
	}
	if req.MaxTokens > 0 {
		if body, err = sjson.SetBytes(body, "max_tokens", req.MaxTokens); err != nil {
			return nil, err
		}
	}
	if req.TopP != nil {
		if body, err = sjson.SetBytes(body, "top_p", *req.TopP); err != nil {
			return nil, err
		}
	}
	if body, err = sjson.SetBytes(body, "stream", false); err != nil {
		return nil, err
	}
	if req.ReasoningEffort != "" {
		if body, err = sjson.SetBytes(body, "reasoning_effort", req.ReasoningEffort); err != nil {
			return nil, err
		}
	}
	return body, nil
}
