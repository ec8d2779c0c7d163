package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Kind 上游错误分类
type Kind string

const (
	KindTimeout            Kind = "timeout"
	KindRateLimit          Kind = "rate_limit"
	KindAuth               Kind = "auth"
	KindModelNotFound      Kind = "model_not_found"
	KindServiceUnavailable Kind = "service_unavailable"
	KindEmptyResponse      Kind = "empty_response"
	KindProvider           Kind = "provider"
)

// Error 在客户端边界完成分类的上游错误
type Error struct {
	Kind     Kind
	Provider string
	Status   int
	Message  string
	Err      error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Permanent 鉴权失败、模型不存在和空响应重试也不会成功
func (e *Error) Permanent() bool {
	return e.Kind == KindAuth || e.Kind == KindModelNotFound || e.Kind == KindEmptyResponse
}

// HTTPStatus 对外返回的状态码
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindAuth:
		return http.StatusUnauthorized
	case KindModelNotFound:
		return http.StatusNotFound
	case KindServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// KindOf 返回错误链中的分类，未分类的错误视为 KindProvider
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindProvider
}

func newError(kind Kind, provider string, status int, message string, cause error) *Error {
	return &Error{Kind: kind, Provider: provider, Status: status, Message: message, Err: cause}
}

// classifyStatus 根据 HTTP 状态码和上游错误信息分类
func classifyStatus(provider, label string, status int, upstreamMsg string) *Error {
	lower := strings.ToLower(upstreamMsg)
	switch {
	case status == http.StatusUnauthorized || strings.Contains(lower, "invalid_api_key"):
		return newError(KindAuth, provider, status, fmt.Sprintf("Invalid %s API key (401): %s", label, upstreamMsg), nil)
	case status == http.StatusTooManyRequests || strings.Contains(lower, "rate_limit"):
		return newError(KindRateLimit, provider, status, fmt.Sprintf("%s rate limit exceeded: %s", label, upstreamMsg), nil)
	case status == http.StatusNotFound || strings.Contains(lower, "model_not_found"):
		return newError(KindModelNotFound, provider, status, fmt.Sprintf("%s model not found (404): %s", label, upstreamMsg), nil)
	case status == http.StatusServiceUnavailable:
		return newError(KindServiceUnavailable, provider, status, fmt.Sprintf("%s service unavailable (503): %s", label, upstreamMsg), nil)
	case status == http.StatusGatewayTimeout || status == http.StatusRequestTimeout ||
		strings.Contains(lower, "timeout") || strings.Contains(lower, "timed out"):
		return newError(KindTimeout, provider, status, fmt.Sprintf("%s request timeout (%d): %s", label, status, upstreamMsg), nil)
	default:
		return newError(KindProvider, provider, status, fmt.Sprintf("%s API error (%d): %s", label, status, upstreamMsg), nil)
	}
}

// classifyTransport 将网络层错误分类，超时单独处理
func classifyTransport(provider, label string, err error) *Error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) ||
		strings.Contains(strings.ToLower(err.Error()), "timeout") {
		return newError(KindTimeout, provider, 0, fmt.Sprintf("%s request timeout", label), err)
	}
	return newError(KindProvider, provider, 0, fmt.Sprintf("%s request failed: %v", label, err), err)
}
