// Package generation runs one synthetic-data request end to end: validation,
// admission control, model resolution, prompt building, dispatch with retry
// and extraction of the returned rows.
package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"datatav/internal/billing"
	"datatav/internal/catalog"
	"datatav/internal/extract"
	"datatav/internal/model"
	"datatav/internal/prompt"
	"datatav/internal/provider"
	"datatav/internal/ratelimit"
	"datatav/internal/retry"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// State 编排状态
type State string

const (
	StateValidating     State = "validating"
	StateRateLimiting   State = "rate_limiting"
	StateResolvingModel State = "resolving_model"
	StateBuildingPrompt State = "building_prompt"
	StateDispatching    State = "dispatching"
	StateExtracting     State = "extracting"
	StateSucceeded      State = "succeeded"
	StateFailed         State = "failed"
)

type requestIDKey struct{}

// WithRequestID 让编排沿用上游（HTTP 层）分配的请求 ID
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// Credential 供应商的环境级凭证，仅在请求未携带 apiKey 时使用
type Credential struct {
	Label  string
	EnvVar string
	APIKey string
}

// Outcome 一次编排的结果；失败时 Err 非空
type Outcome struct {
	RequestID string
	State     State
	Rows      []json.RawMessage
	Decision  *ratelimit.Decision
	Model     *catalog.ModelDefinition
	Attempts  int
	Usage     billing.TokenUsage
	Cost      billing.CostResult
	Latency   time.Duration
	Err       *Error
}

// Service 生成编排器
type Service struct {
	catalog     *catalog.Catalog
	limiter     *ratelimit.Limiter
	clients     *provider.Registry
	credentials map[string]Credential
	settings    *SettingsManager
	recorder    Recorder
	now         func() time.Time
}

// NewService 创建编排器；recorder 可为 nil
func NewService(cat *catalog.Catalog, limiter *ratelimit.Limiter, clients *provider.Registry, credentials map[string]Credential, settings *SettingsManager, recorder Recorder) *Service {
	creds := make(map[string]Credential, len(credentials))
	for k, v := range credentials {
		creds[strings.ToLower(k)] = v
	}
	return &Service{
		catalog:     cat,
		limiter:     limiter,
		clients:     clients,
		credentials: creds,
		settings:    settings,
		recorder:    recorder,
		now:         time.Now,
	}
}

// Catalog 返回模型目录
func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

// HasCredential 供应商是否配置了环境级凭证
func (s *Service) HasCredential(providerKey string) bool {
	c, ok := s.credentials[strings.ToLower(providerKey)]
	return ok && c.APIKey != ""
}

// Generate 执行一次完整的生成流程，返回的 Outcome 总是非空
func (s *Service) Generate(ctx context.Context, req model.GenerateRequest, clientID string) *Outcome {
	start := s.now()
	out := &Outcome{RequestID: requestIDFrom(ctx), State: StateValidating}

	in, verr := Normalize(req)
	if verr != nil {
		return s.finish(out, clientID, in, start, verr)
	}

	out.State = StateRateLimiting
	if s.limiter != nil {
		decision := s.limiter.Allow(ctx, clientID)
		out.Decision = &decision
		if !decision.Allowed {
			return s.finish(out, clientID, in, start, &Error{
				Kind:       KindRateLimitExceeded,
				Status:     http.StatusTooManyRequests,
				Message:    messageRateLimited,
				Suggestion: suggestionRateLimit,
			})
		}
	}

	out.State = StateResolvingModel
	def, rerr := s.resolve(in)
	if rerr != nil {
		return s.finish(out, clientID, in, start, rerr)
	}
	out.Model = &def

	client, ok := s.clients.Get(def.ProviderKey())
	if !ok {
		return s.finish(out, clientID, in, start, resolutionError(
			fmt.Sprintf("Provider %q is not supported yet. Extend the API handler to integrate it.", def.Provider), nil))
	}

	apiKey, cerr := s.credential(def, in.APIKey)
	if cerr != nil {
		return s.finish(out, clientID, in, start, cerr)
	}

	out.State = StateBuildingPrompt
	payload := prompt.Build(in.Headers, in.RowCount, in.Context)
	preq := provider.Request{
		Model: def.TargetModel(),
		Messages: []provider.Message{
			{Role: "system", Content: payload.SystemPrompt},
			{Role: "user", Content: payload.UserPrompt},
		},
		APIKey:          apiKey,
		Temperature:     def.DefaultTemperature(),
		MaxTokens:       def.DefaultMaxTokens(),
		TopP:            def.TopP(),
		ReasoningEffort: in.Reasoning,
	}
	if in.Temperature != nil {
		preq.Temperature = *in.Temperature
	}
	if in.MaxTokens != nil {
		preq.MaxTokens = *in.MaxTokens
	}

	out.State = StateDispatching
	cfg := retry.DefaultConfig()
	if s.settings != nil {
		cfg = s.settings.Current().Retry()
	}
	completion, err := retry.Do(ctx, cfg, func(ctx context.Context) (*provider.Completion, error) {
		out.Attempts++
		return client.Generate(ctx, preq)
	}, nil)
	if err != nil {
		return s.finish(out, clientID, in, start, fromDispatch(err))
	}

	out.Usage = billing.TokenUsage{InputTokens: completion.Usage.InputTokens, OutputTokens: completion.Usage.OutputTokens}
	out.Cost = billing.Calculate(def, out.Usage)

	out.State = StateExtracting
	rows, err := extract.Extract(completion.Text)
	if err != nil {
		return s.finish(out, clientID, in, start, fromExtraction(err))
	}
	out.Rows = rows
	return s.finish(out, clientID, in, start, nil)
}

// resolve 查找模型并校验显式的 provider 提示
func (s *Service) resolve(in Input) (catalog.ModelDefinition, *Error) {
	def, err := s.catalog.Resolve(in.ModelID)
	if err != nil {
		return def, resolutionError(err.Error(), err)
	}
	if in.Provider != "" && !strings.EqualFold(in.Provider, def.ProviderKey()) {
		return def, resolutionError(
			fmt.Sprintf("Provider mismatch. Expected %q but received %q.", def.Provider, in.Provider), nil)
	}
	return def, nil
}

// credential 请求中的 apiKey 优先，其次是环境配置
func (s *Service) credential(def catalog.ModelDefinition, override string) (string, *Error) {
	if override != "" {
		return override, nil
	}
	cred, ok := s.credentials[def.ProviderKey()]
	if ok && cred.APIKey != "" {
		return cred.APIKey, nil
	}

	label, envVar := def.Provider, strings.ToUpper(def.ProviderKey())+"_API_KEY"
	if ok {
		if cred.Label != "" {
			label = cred.Label
		}
		if cred.EnvVar != "" {
			envVar = cred.EnvVar
		}
	}
	return "", &Error{
		Kind:       KindMissingCredential,
		Status:     http.StatusInternalServerError,
		Message:    fmt.Sprintf("%s API key not configured. Provide apiKey in the request or set %s.", label, envVar),
		Suggestion: suggestionAuth,
	}
}

// finish 设置终态、记录日志并写入生成记录
func (s *Service) finish(out *Outcome, clientID string, in Input, start time.Time, gerr *Error) *Outcome {
	out.Latency = s.now().Sub(start)
	status := http.StatusOK

	fields := log.Fields{
		"request_id": out.RequestID,
		"client_id":  clientID,
		"attempts":   out.Attempts,
		"latency_ms": out.Latency.Milliseconds(),
	}
	if out.Model != nil {
		fields["model"] = out.Model.ID
		fields["provider"] = out.Model.ProviderKey()
	}

	if gerr != nil {
		out.State = StateFailed
		out.Err = gerr
		status = gerr.Status
		fields["error_kind"] = gerr.Kind
		fields["status"] = gerr.Status
		if gerr.Kind == KindValidation || gerr.Kind == KindRateLimitExceeded {
			log.WithFields(fields).Debugf("generation: rejected: %s", gerr.Message)
		} else {
			log.WithFields(fields).Warnf("generation: failed: %v", gerr)
		}
	} else {
		out.State = StateSucceeded
		fields["rows"] = len(out.Rows)
		log.WithFields(fields).Info("generation: succeeded")
	}

	if s.recorder != nil {
		s.recorder.Record(s.logEntry(out, clientID, in, status))
	}
	return out
}

func (s *Service) logEntry(out *Outcome, clientID string, in Input, status int) LogEntry {
	entry := LogEntry{
		ID:           uuid.NewString(),
		RequestID:    out.RequestID,
		CreatedAt:    s.now(),
		ClientID:     clientID,
		RowCount:     in.RowCount,
		RowsReturned: len(out.Rows),
		StatusCode:   status,
		Attempts:     out.Attempts,
		LatencyMs:    out.Latency.Milliseconds(),
	}
	if out.Model != nil {
		id, p := out.Model.ID, out.Model.ProviderKey()
		entry.ModelID, entry.Provider = &id, &p
	}
	if out.Err != nil {
		kind, msg := string(out.Err.Kind), out.Err.Message
		entry.ErrorKind, entry.ErrorMessage = &kind, &msg
	}
	if out.Usage.InputTokens > 0 || out.Usage.OutputTokens > 0 {
		input, output := out.Usage.InputTokens, out.Usage.OutputTokens
		entry.InputTokens, entry.OutputTokens = &input, &output
	}
	if out.Cost.PriceFound {
		micros, usd := out.Cost.CostMicros, out.Cost.CostUsd
		entry.CostMicros, entry.CostUsd = &micros, &usd
	}
	return entry
}
