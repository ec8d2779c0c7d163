package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"datatav/internal/catalog"
	"datatav/internal/config"
	"datatav/internal/generation"
	"datatav/internal/middleware"
	"datatav/internal/model"
	"datatav/internal/provider"
	"datatav/internal/ratelimit"
	"datatav/internal/repository"
	"datatav/internal/service"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func float64Ptr(v float64) *float64 { return &v }

type stubLogs struct {
	params repository.GenerationLogListParams
	items  []model.GenerationLog
}

func (s *stubLogs) List(params repository.GenerationLogListParams) ([]model.GenerationLog, int64, error) {
	s.params = params
	return s.items, int64(len(s.items)), nil
}

type testServer struct {
	engine   *gin.Engine
	upstream *httptest.Server
	limiter  *ratelimit.Limiter
	settings *generation.SettingsManager
	logs     *stubLogs
	auth     *service.AdminAuthService
}

func newTestServer(t *testing.T, upstream http.HandlerFunc, groqKey string) *testServer {
	t.Helper()
	prev := config.Get()
	config.Set(&config.Config{
		AdminUsername: "admin",
		AdminPassword: "pw",
		JWTSecret:     "test-secret",
		JWTIssuer:     "datatav",
		JWTAudience:   "datatav-admin",
	})
	t.Cleanup(func() { config.Set(prev) })

	ts := &testServer{upstream: httptest.NewServer(upstream), logs: &stubLogs{}}
	t.Cleanup(ts.upstream.Close)

	store := ratelimit.NewMemoryStore()
	t.Cleanup(func() { store.Close() })
	ts.limiter = ratelimit.New(store, 10, time.Minute)
	ts.settings = generation.NewSettingsManager(generation.Settings{
		RateLimit: 3, RateWindow: time.Minute, MaxRetries: 0, BaseDelay: 100 * time.Millisecond,
	}, nil, ts.limiter)

	cat := catalog.NewStatic([]catalog.ModelDefinition{
		{ID: "groq/openai/gpt-oss-120b", Label: "GPT-OSS 120B", Provider: "groq", Model: "openai/gpt-oss-120b", Temperature: float64Ptr(1)},
	})
	clients := provider.NewRegistry(provider.NewGroqClient(provider.Options{BaseURL: ts.upstream.URL, Timeout: 2 * time.Second}))
	svc := generation.NewService(cat, ts.limiter, clients, map[string]generation.Credential{
		provider.ProviderGroq: {Label: "Groq", EnvVar: "GROQ_API_KEY", APIKey: groqKey},
	}, ts.settings, nil)
	ts.auth = service.NewAdminAuthService()

	r := gin.New()
	r.Use(middleware.RequestID())
	gh := NewGenerateHandler(svc)
	rh := NewModelRegistryHandler(cat)
	hh := NewHealthHandler(cat, store, svc.HasCredential("groq"), svc.HasCredential("openai"))
	ah := NewAdminHandler(ts.auth, ts.settings, ts.logs)

	r.POST("/api/generate-ai-data", gh.Generate)
	r.GET("/api/model-registry", rh.List)
	r.GET("/api/health", hh.Health)
	r.POST("/api/admin/login", ah.Login)
	admin := r.Group("/api/admin", middleware.JWTAuthMiddleware(ts.auth.JWT()))
	admin.GET("/settings", ah.GetSettings)
	admin.PUT("/settings", ah.UpdateSettings)
	admin.GET("/generation-logs", ah.ListGenerationLogs)
	admin.POST("/model-registry/reload", rh.Reload)
	ts.engine = r
	return ts
}

func (ts *testServer) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	return w
}

func chatReply(content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := json.Marshal(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"role": "assistant", "content": content}}},
			"usage":   map[string]any{"prompt_tokens": 10, "completion_tokens": 20},
		})
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}
}

const generateBody = `{"headers":["Name","Email"],"rowCount":2}`

func TestGenerateEndpointSuccess(t *testing.T) {
	ts := newTestServer(t, chatReply("```json\n[{\"Name\":\"A\",\"Email\":\"a@x.io\"},{\"Name\":\"B\",\"Email\":\"b@x.io\"}]\n```"), "env-key")

	w := ts.do(http.MethodPost, "/api/generate-ai-data", generateBody, map[string]string{"X-Forwarded-For": "5.5.5.5, 10.0.0.1"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		Data []map[string]string `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data) != 2 || resp.Data[1]["Email"] != "b@x.io" {
		t.Fatalf("unexpected data %+v", resp.Data)
	}
	if w.Header().Get("X-Request-Id") == "" {
		t.Error("missing X-Request-Id")
	}
	if w.Header().Get("X-RateLimit-Limit") != "3" || w.Header().Get("X-RateLimit-Remaining") != "2" {
		t.Errorf("rate limit headers: limit=%q remaining=%q",
			w.Header().Get("X-RateLimit-Limit"), w.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestGenerateEndpointRateLimited(t *testing.T) {
	ts := newTestServer(t, chatReply(`[{"Name":"A","Email":"a"}]`), "env-key")
	headers := map[string]string{"X-Real-IP": "7.7.7.7"}

	for i := 0; i < 3; i++ {
		if w := ts.do(http.MethodPost, "/api/generate-ai-data", generateBody, headers); w.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i+1, w.Code)
		}
	}
	w := ts.do(http.MethodPost, "/api/generate-ai-data", generateBody, headers)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	if w.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("remaining = %q", w.Header().Get("X-RateLimit-Remaining"))
	}
	var resp model.ErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Error != "Rate limit exceeded. Please try again later." || resp.Suggestion == "" {
		t.Errorf("unexpected body %+v", resp)
	}
}

func TestGenerateEndpointErrors(t *testing.T) {
	tests := []struct {
		name     string
		upstream http.HandlerFunc
		groqKey  string
		body     string
		status   int
		contains string
	}{
		{"invalid json", chatReply("[]"), "k", `{"headers":`, http.StatusBadRequest, "Invalid JSON body"},
		{"validation", chatReply("[]"), "k", `{"headers":[],"rowCount":1}`, http.StatusBadRequest, "Headers are required"},
		{"row count", chatReply("[]"), "k", `{"headers":["a"],"rowCount":"500"}`, http.StatusBadRequest, "Row count must be between 1 and 100"},
		{"unknown model", chatReply("[]"), "k", `{"headers":["a"],"rowCount":1,"model":"x/y"}`, http.StatusBadRequest, "is not registered"},
		{"missing key", chatReply("[]"), "", generateBody, http.StatusInternalServerError, "Groq API key not configured"},
		{"upstream auth", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"Invalid API Key"}}`))
		}, "k", generateBody, http.StatusUnauthorized, "Invalid Groq API key"},
		{"unparseable", chatReply("no rows today"), "k", generateBody, http.StatusInternalServerError, "Failed to parse AI response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, tt.upstream, tt.groqKey)
			w := ts.do(http.MethodPost, "/api/generate-ai-data", tt.body, nil)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d body=%s", w.Code, tt.status, w.Body.String())
			}
			if !strings.Contains(w.Body.String(), tt.contains) {
				t.Errorf("body %s does not contain %q", w.Body.String(), tt.contains)
			}
		})
	}
}

func TestModelRegistryAndHealth(t *testing.T) {
	ts := newTestServer(t, chatReply("[]"), "env-key")

	w := ts.do(http.MethodGet, "/api/model-registry", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("registry status = %d", w.Code)
	}
	var reg struct {
		Models []catalog.ModelDefinition `json:"models"`
		Source string                    `json:"source"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &reg)
	if len(reg.Models) != 1 || reg.Source != string(catalog.SourceStatic) {
		t.Errorf("unexpected registry %+v", reg)
	}

	w = ts.do(http.MethodGet, "/api/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d", w.Code)
	}
	var health model.HealthResponse
	_ = json.Unmarshal(w.Body.Bytes(), &health)
	if health.Status != HealthHealthy || health.Version != Version || !health.Checks.Environment.HasGroqKey {
		t.Errorf("unexpected health %+v", health)
	}
	if health.Checks.ModelRegistry.ModelCount != 1 || health.Checks.RateLimitStore == nil {
		t.Errorf("unexpected checks %+v", health.Checks)
	}
}

func TestHealthUnhealthyWithoutKeys(t *testing.T) {
	ts := newTestServer(t, chatReply("[]"), "")
	w := ts.do(http.MethodGet, "/api/health", "", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	var health model.HealthResponse
	_ = json.Unmarshal(w.Body.Bytes(), &health)
	if health.Status != HealthUnhealthy {
		t.Errorf("status = %q", health.Status)
	}
}

func login(t *testing.T, ts *testServer) string {
	t.Helper()
	w := ts.do(http.MethodPost, "/api/admin/login", `{"username":"admin","password":"pw"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d body=%s", w.Code, w.Body.String())
	}
	var resp model.AuthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.Token == "" {
		t.Fatalf("login response %s: %v", w.Body.String(), err)
	}
	return resp.Token
}

func TestAdminSettings(t *testing.T) {
	ts := newTestServer(t, chatReply("[]"), "k")

	if w := ts.do(http.MethodGet, "/api/admin/settings", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d", w.Code)
	}
	if w := ts.do(http.MethodPost, "/api/admin/login", `{"username":"admin","password":"bad"}`, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d", w.Code)
	}

	auth := map[string]string{"Authorization": "Bearer " + login(t, ts)}

	w := ts.do(http.MethodGet, "/api/admin/settings", "", auth)
	if w.Code != http.StatusOK {
		t.Fatalf("get settings status = %d", w.Code)
	}
	var got model.GenerationSettingsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.RateLimit != 3 || got.RateWindowMs != 60000 {
		t.Errorf("unexpected settings %+v", got)
	}

	body := `{"rateLimit":20,"rateWindowMs":30000,"maxRetries":0,"baseDelayMs":500}`
	w = ts.do(http.MethodPut, "/api/admin/settings", body, auth)
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d body=%s", w.Code, w.Body.String())
	}
	if limit, window := ts.limiter.Config(); limit != 20 || window != 30*time.Second {
		t.Errorf("limiter = %d/%v", limit, window)
	}

	bad := `{"rateLimit":0,"rateWindowMs":30000,"maxRetries":0,"baseDelayMs":500}`
	if w := ts.do(http.MethodPut, "/api/admin/settings", bad, auth); w.Code != http.StatusBadRequest {
		t.Errorf("invalid update status = %d", w.Code)
	}
}

func TestAdminGenerationLogs(t *testing.T) {
	ts := newTestServer(t, chatReply("[]"), "k")
	ts.logs.items = []model.GenerationLog{{ID: "a", StatusCode: 200}}
	auth := map[string]string{"Authorization": "Bearer " + login(t, ts)}

	w := ts.do(http.MethodGet, "/api/admin/generation-logs?page=2&pageSize=500&status=429&model=m&errorKind=timeout&requestId=r-1", "", auth)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	p := ts.logs.params
	if p.Page != 2 || p.PageSize != 100 || p.StatusCode == nil || *p.StatusCode != 429 || p.ModelID != "m" || p.ErrorKind != "timeout" || p.RequestID != "r-1" {
		t.Errorf("unexpected params %+v", p)
	}

	if w := ts.do(http.MethodGet, "/api/admin/generation-logs?status=abc", "", auth); w.Code != http.StatusBadRequest {
		t.Errorf("bad status filter = %d", w.Code)
	}
	if w := ts.do(http.MethodGet, "/api/admin/generation-logs?from=yesterday", "", auth); w.Code != http.StatusBadRequest {
		t.Errorf("bad from filter = %d", w.Code)
	}
}

func TestAdminReloadRegistry(t *testing.T) {
	ts := newTestServer(t, chatReply("[]"), "k")
	auth := map[string]string{"Authorization": "Bearer " + login(t, ts)}

	w := ts.do(http.MethodPost, "/api/admin/model-registry/reload", "", auth)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp model.ModelRegistryReloadResponse
	if err := json.NewDecoder(bytes.NewReader(w.Body.Bytes())).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ModelCount != 1 || resp.Source != string(catalog.SourceStatic) {
		t.Errorf("unexpected reload %+v", resp)
	}
}
