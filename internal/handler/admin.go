package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"datatav/internal/generation"
	"datatav/internal/model"
	"datatav/internal/repository"
	"datatav/internal/service"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// GenerationLogLister 生成日志查询
type GenerationLogLister interface {
	List(params repository.GenerationLogListParams) ([]model.GenerationLog, int64, error)
}

type AdminHandler struct {
	auth     *service.AdminAuthService
	settings *generation.SettingsManager
	logs     GenerationLogLister
}

func NewAdminHandler(auth *service.AdminAuthService, settings *generation.SettingsManager, logs GenerationLogLister) *AdminHandler {
	return &AdminHandler{auth: auth, settings: settings, logs: logs}
}

// Login POST /api/admin/login
func (h *AdminHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	token, expiresAt, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			log.Warnf("admin: failed login for %q from %s", req.Username, c.ClientIP())
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrAdminDisabled):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		}
		return
	}

	c.JSON(http.StatusOK, model.AuthResponse{
		Username:  req.Username,
		Token:     token,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
		Message:   "login successful",
	})
}

// GetSettings GET /api/admin/settings
func (h *AdminHandler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.settings.Current().ToResponse())
}

// UpdateSettings PUT /api/admin/settings
func (h *AdminHandler) UpdateSettings(c *gin.Context) {
	var req model.GenerationSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid settings", "details": err.Error()})
		return
	}

	s := generation.SettingsFromRequest(req)
	if err := h.settings.Update(s); err != nil {
		if errors.Is(err, generation.ErrInvalidSettings) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Errorf("admin: failed to save settings: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save settings"})
		return
	}

	log.Infof("admin: settings updated rateLimit=%d window=%v maxRetries=%d baseDelay=%v",
		s.RateLimit, s.RateWindow, s.MaxRetries, s.BaseDelay)
	c.JSON(http.StatusOK, s.ToResponse())
}

// ListGenerationLogs GET /api/admin/generation-logs
func (h *AdminHandler) ListGenerationLogs(c *gin.Context) {
	params := repository.GenerationLogListParams{
		Page:     1,
		PageSize: 20,
	}

	if page, err := strconv.Atoi(c.Query("page")); err == nil && page > 0 {
		params.Page = page
	}
	if pageSize, err := strconv.Atoi(c.Query("pageSize")); err == nil && pageSize > 0 {
		params.PageSize = pageSize
	}
	if params.PageSize > 100 {
		params.PageSize = 100
	}
	params.RequestID = c.Query("requestId")
	params.ModelID = c.Query("model")
	params.ErrorKind = c.Query("errorKind")
	if statusStr := c.Query("status"); statusStr != "" {
		statusCode, err := strconv.Atoi(statusStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "status must be an integer"})
			return
		}
		params.StatusCode = &statusCode
	}
	if from := c.Query("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be an RFC3339 timestamp"})
			return
		}
		params.From = &t
	}
	if to := c.Query("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to must be an RFC3339 timestamp"})
			return
		}
		params.To = &t
	}

	items, total, err := h.logs.List(params)
	if err != nil {
		log.Errorf("admin: failed to list generation logs: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list generation logs"})
		return
	}

	c.JSON(http.StatusOK, model.GenerationLogListResponse{
		Items:    items,
		Total:    total,
		Page:     params.Page,
		PageSize: params.PageSize,
	})
}
