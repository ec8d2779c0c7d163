package generation

import (
	"context"
	"errors"
	"net/http"

	"datatav/internal/provider"
)

// Kind 对外暴露的错误分类
type Kind string

const (
	KindValidation         Kind = "validation"
	KindRateLimitExceeded  Kind = "rate_limit_exceeded"
	KindModelResolution    Kind = "model_resolution"
	KindMissingCredential  Kind = "missing_credential"
	KindTimeout            Kind = "timeout"
	KindUpstreamRateLimit  Kind = "upstream_rate_limit"
	KindAuth               Kind = "auth"
	KindModelNotFound      Kind = "model_not_found"
	KindServiceUnavailable Kind = "service_unavailable"
	KindEmptyResponse      Kind = "empty_response"
	KindExtraction         Kind = "extraction"
	KindProvider           Kind = "provider"
	KindCanceled           Kind = "canceled"
)

const (
	suggestionRateLimit   = "Please wait a moment before making another request."
	suggestionTimeout     = "Try reducing the number of rows or simplifying your request."
	suggestionAuth        = "Check your API key configuration in environment variables or request body."
	suggestionModel       = "Select a different model from the dropdown."
	suggestionParse       = "The AI model may have returned an unexpected format. Please try again."
	suggestionUnavailable = "The AI service is temporarily unavailable. Please try again in a few moments."
	suggestionGeneric     = "If this problem persists, please contact support."

	messageRateLimited = "Rate limit exceeded. Please try again later."
	messageParseFailed = "Failed to parse AI response as valid data."
)

// Error 编排失败的结构化结果
type Error struct {
	Kind       Kind
	Status     int
	Message    string
	Details    string
	Suggestion string
	Err        error
}

func (e *Error) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func validationError(message string) *Error {
	return &Error{Kind: KindValidation, Status: http.StatusBadRequest, Message: message}
}

func resolutionError(message string, cause error) *Error {
	return &Error{Kind: KindModelResolution, Status: http.StatusBadRequest, Message: message, Err: cause}
}

// fromDispatch 将重试后的上游错误映射为对外错误
func fromDispatch(err error) *Error {
	if errors.Is(err, context.Canceled) {
		return &Error{Kind: KindCanceled, Status: 499, Message: "request canceled", Err: err}
	}

	var pe *provider.Error
	if !errors.As(err, &pe) {
		return &Error{Kind: KindProvider, Status: http.StatusInternalServerError, Message: err.Error(), Suggestion: suggestionGeneric, Err: err}
	}

	out := &Error{Status: pe.HTTPStatus(), Message: pe.Message, Err: err}
	switch pe.Kind {
	case provider.KindTimeout:
		out.Kind, out.Suggestion = KindTimeout, suggestionTimeout
	case provider.KindRateLimit:
		out.Kind, out.Suggestion = KindUpstreamRateLimit, suggestionRateLimit
	case provider.KindAuth:
		out.Kind, out.Suggestion = KindAuth, suggestionAuth
	case provider.KindModelNotFound:
		out.Kind, out.Suggestion = KindModelNotFound, suggestionModel
	case provider.KindServiceUnavailable:
		out.Kind, out.Suggestion = KindServiceUnavailable, suggestionUnavailable
	case provider.KindEmptyResponse:
		out.Kind, out.Message, out.Details, out.Suggestion = KindEmptyResponse, messageParseFailed, pe.Message, suggestionParse
	default:
		out.Kind, out.Suggestion = KindProvider, suggestionGeneric
	}
	return out
}

// fromExtraction 提取失败统一返回 500，details 中带上解析错误与响应预览
func fromExtraction(err error) *Error {
	return &Error{
		Kind:       KindExtraction,
		Status:     http.StatusInternalServerError,
		Message:    messageParseFailed,
		Details:    err.Error(),
		Suggestion: suggestionParse,
		Err:        err,
	}
}
