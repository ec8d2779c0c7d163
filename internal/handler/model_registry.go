package handler

import (
	"net/http"

	"datatav/internal/catalog"
	"datatav/internal/model"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

type ModelRegistryHandler struct {
	catalog *catalog.Catalog
}

func NewModelRegistryHandler(cat *catalog.Catalog) *ModelRegistryHandler {
	return &ModelRegistryHandler{catalog: cat}
}

// List GET /api/model-registry，目录为空时仍返回 200
func (h *ModelRegistryHandler) List(c *gin.Context) {
	models := h.catalog.List()
	if len(models) == 0 {
		resp := model.ModelRegistryResponse{
			Models:     []catalog.ModelDefinition{},
			Error:      "No AI models are currently available.",
			Suggestion: "Configure AI_MODEL_REGISTRY_FILE or AI_MODEL_REGISTRY environment variable, or the system will use fallback models.",
		}
		if err := h.catalog.LoadError(); err != nil {
			resp.Error = err.Error()
			resp.Suggestion = "Check your AI_MODEL_REGISTRY or AI_MODEL_REGISTRY_FILE configuration."
		}
		c.JSON(http.StatusOK, resp)
		return
	}

	c.JSON(http.StatusOK, model.ModelRegistryResponse{Models: models, Source: string(h.catalog.Source())})
}

// Reload POST /api/admin/model-registry/reload
func (h *ModelRegistryHandler) Reload(c *gin.Context) {
	h.catalog.Reset()
	models := h.catalog.List()

	resp := model.ModelRegistryReloadResponse{
		Source:     string(h.catalog.Source()),
		ModelCount: len(models),
	}
	if err := h.catalog.LoadError(); err != nil {
		resp.Error = err.Error()
	}
	log.Infof("model registry: reloaded source=%s models=%d", resp.Source, resp.ModelCount)
	c.JSON(http.StatusOK, resp)
}
