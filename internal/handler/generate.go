package handler

import (
	"net/http"
	"strconv"

	"datatav/internal/generation"
	"datatav/internal/middleware"
	"datatav/internal/model"
	"datatav/internal/ratelimit"

	"github.com/gin-gonic/gin"
)

type GenerateHandler struct {
	svc *generation.Service
}

func NewGenerateHandler(svc *generation.Service) *GenerateHandler {
	return &GenerateHandler{svc: svc}
}

// Generate POST /api/generate-ai-data
func (h *GenerateHandler) Generate(c *gin.Context) {
	var req model.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "Invalid JSON body", Details: err.Error()})
		return
	}

	ctx := generation.WithRequestID(c.Request.Context(), middleware.GetRequestID(c))
	out := h.svc.Generate(ctx, req, ratelimit.ClientIP(c.Request.Header))

	c.Header(middleware.HeaderRequestID, out.RequestID)
	if d := out.Decision; d != nil {
		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.ResetAt.IsZero() {
			c.Header("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
		}
	}

	if out.Err != nil {
		if out.Err.Kind == generation.KindRateLimitExceeded && out.Decision != nil {
			seconds := int64(out.Decision.RetryAfter(timeNow()).Seconds())
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.FormatInt(seconds, 10))
		}
		c.JSON(out.Err.Status, model.ErrorResponse{
			Error:      out.Err.Message,
			Details:    out.Err.Details,
			Suggestion: out.Err.Suggestion,
		})
		return
	}

	c.JSON(http.StatusOK, model.GenerateResponse{Data: out.Rows})
}
