package handler

import (
	"context"
	"net/http"
	"time"

	"datatav/internal/catalog"
	"datatav/internal/model"
	"datatav/internal/ratelimit"

	"github.com/gin-gonic/gin"
)

// Version 构建时可通过 -ldflags 覆盖
var Version = "0.1.0"

var timeNow = time.Now

const (
	HealthHealthy   = "healthy"
	HealthDegraded  = "degraded"
	HealthUnhealthy = "unhealthy"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	catalog      *catalog.Catalog
	store        ratelimit.Store
	hasGroqKey   bool
	hasOpenAIKey bool
}

func NewHealthHandler(cat *catalog.Catalog, store ratelimit.Store, hasGroqKey, hasOpenAIKey bool) *HealthHandler {
	return &HealthHandler{catalog: cat, store: store, hasGroqKey: hasGroqKey, hasOpenAIKey: hasOpenAIKey}
}

// Health GET /api/health
func (h *HealthHandler) Health(c *gin.Context) {
	resp := model.HealthResponse{
		Status:    HealthHealthy,
		Timestamp: timeNow().UTC().Format(time.RFC3339Nano),
		Version:   Version,
		Checks: model.HealthChecks{
			Environment: model.EnvironmentCheck{
				Status:       "ok",
				HasGroqKey:   h.hasGroqKey,
				HasOpenAIKey: h.hasOpenAIKey,
			},
		},
	}

	models := h.catalog.List()
	registry := model.ModelRegistryCheck{Status: "ok", ModelCount: len(models), Source: string(h.catalog.Source())}
	if err := h.catalog.LoadError(); err != nil {
		// 已回退到内置列表，仍可服务
		registry.Status = "warning"
		registry.Error = err.Error()
	}
	if len(models) == 0 {
		registry.Status = "warning"
	}
	resp.Checks.ModelRegistry = registry

	if !h.hasGroqKey && !h.hasOpenAIKey {
		resp.Checks.Environment.Status = "missing_keys"
	}

	if h.store != nil {
		check := &model.RateLimitStoreCheck{Status: "ok", Backend: h.store.Name()}
		if p, ok := h.store.(pinger); ok {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			if err := p.Ping(ctx); err != nil {
				check.Status = "error"
				check.Error = err.Error()
			}
			cancel()
		}
		resp.Checks.RateLimitStore = check
	}

	switch {
	case !h.hasGroqKey && !h.hasOpenAIKey:
		resp.Status = HealthUnhealthy
	case registry.Status == "warning" || (resp.Checks.RateLimitStore != nil && resp.Checks.RateLimitStore.Status != "ok"):
		resp.Status = HealthDegraded
	}

	status := http.StatusOK
	if resp.Status == HealthUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}
