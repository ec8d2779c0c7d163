// Package provider talks to the upstream model APIs.
//
// Two wire protocols are supported: the chat-completions protocol (message array in, first choice
// out) and the responses protocol (single prompt in, output_text items out). Both clients classify
// failures into *Error at their boundary so callers never inspect raw HTTP responses.
package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

const (
	ProviderGroq   = "groq"
	ProviderOpenAI = "openai"

	// DefaultTimeout 单次上游调用的硬超时
	DefaultTimeout = 30 * time.Second

	maxResponseBytes = 20 << 20
)

// Message 对话消息，role 为 system/user/assistant/tool
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request 一次生成调用的参数
type Request struct {
	Model           string
	Messages        []Message
	APIKey          string
	Temperature     float64
	MaxTokens       int
	TopP            *float64
	ReasoningEffort string
}

// Prompt 将消息合并为单段提示（单提示协议使用）
func (r Request) Prompt() string {
	parts := make([]string, 0, len(r.Messages))
	for _, m := range r.Messages {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, "\n\n")
}

// Usage 上游返回的 token 用量
type Usage struct {
	InputTokens  int64 `json:"inputTokens"`
	OutputTokens int64 `json:"outputTokens"`
}

// Completion 生成结果
type Completion struct {
	Text  string
	Usage Usage
}

// Client 上游生成客户端
type Client interface {
	Name() string
	Generate(ctx context.Context, req Request) (*Completion, error)
}

// Options 客户端公共配置
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

func (o Options) withDefaults(defaultBaseURL string) Options {
	if o.BaseURL == "" {
		o.BaseURL = defaultBaseURL
	}
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{}
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

type result[T any] struct {
	val T
	err error
}

var errTimedOut = errors.New("timed out")

// raceTimeout 让 fn 与定时器赛跑，先完成者决定结果；超时后 fn 的结果被丢弃
func raceTimeout[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// 缓冲为 1，超时后迟到的结果写入即退出，不会泄漏 goroutine
	done := make(chan result[T], 1)
	go func() {
		v, err := fn(ctx)
		done <- result[T]{val: v, err: err}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, errTimedOut
		}
		return zero, ctx.Err()
	}
}

// rawResponse 已读取并解压的上游响应
type rawResponse struct {
	status int
	body   []byte
}

// postJSON 发送 JSON 请求并读取完整响应体（含超时竞争与错误分类）
func postJSON(ctx context.Context, opts Options, provider, label, endpoint, apiKey string, payload []byte) (*rawResponse, error) {
	resp, err := raceTimeout(ctx, opts.Timeout, func(ctx context.Context) (*rawResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", "Bearer "+apiKey)

		httpResp, err := opts.HTTPClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer httpResp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
		if err != nil {
			return nil, fmt.Errorf("read response body: %w", err)
		}
		data = decodeBody(data, httpResp.Header.Get("Content-Encoding"))
		return &rawResponse{status: httpResp.StatusCode, body: data}, nil
	})

	if errors.Is(err, errTimedOut) {
		log.Warnf("provider: %s request timed out after %v", provider, opts.Timeout)
		return nil, newError(KindTimeout, provider, 0, fmt.Sprintf("%s request timeout after %v", label, opts.Timeout), context.DeadlineExceeded)
	}
	if err != nil {
		return nil, classifyTransport(provider, label, err)
	}

	if resp.status < 200 || resp.status >= 300 {
		msg := errorMessage(resp.body, resp.status)
		log.Debugf("provider: %s returned status %d: %s", provider, resp.status, msg)
		return nil, classifyStatus(provider, label, resp.status, msg)
	}
	return resp, nil
}

// errorMessage 从错误响应体提取 message 字段，兼容 {error:{message}} / {error:"..."} / {message}
func errorMessage(body []byte, status int) string {
	root := gjson.ParseBytes(body)
	for _, path := range []string{"error.message", "message", "error"} {
		if v := root.Get(path); v.Exists() && v.Type == gjson.String && strings.TrimSpace(v.String()) != "" {
			return strings.TrimSpace(v.String())
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" && !gjson.ValidBytes(body) && len(text) <= 200 {
		return text
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return fmt.Sprintf("status %d", status)
}
