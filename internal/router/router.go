package router

import (
	"datatav/internal/config"
	"datatav/internal/generation"
	"datatav/internal/handler"
	"datatav/internal/middleware"
	"datatav/internal/provider"
	"datatav/internal/ratelimit"
	"datatav/internal/service"

	"github.com/gin-gonic/gin"
)

// Deps 路由依赖
type Deps struct {
	Generation *generation.Service
	Settings   *generation.SettingsManager
	Store      ratelimit.Store
	Auth       *service.AdminAuthService
	Logs       handler.GenerationLogLister
}

func Setup(deps Deps) *gin.Engine {
	r := gin.New()

	cfg := config.Get()

	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog())
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	adminLimiter := middleware.NewRateLimiter(cfg.RateLimitAdminRPS, 5)

	cat := deps.Generation.Catalog()
	generateHandler := handler.NewGenerateHandler(deps.Generation)
	registryHandler := handler.NewModelRegistryHandler(cat)
	healthHandler := handler.NewHealthHandler(cat, deps.Store,
		deps.Generation.HasCredential(provider.ProviderGroq), deps.Generation.HasCredential(provider.ProviderOpenAI))
	adminHandler := handler.NewAdminHandler(deps.Auth, deps.Settings, deps.Logs)

	api := r.Group("/api")
	{
		api.POST("/generate-ai-data", generateHandler.Generate)
		api.GET("/model-registry", registryHandler.List)
		api.GET("/health", healthHandler.Health)

		admin := api.Group("/admin")
		admin.Use(adminLimiter.RateLimitByIP())
		{
			admin.POST("/login", adminHandler.Login)

			protected := admin.Group("")
			protected.Use(middleware.JWTAuthMiddleware(deps.Auth.JWT()))
			{
				protected.GET("/settings", adminHandler.GetSettings)
				protected.PUT("/settings", adminHandler.UpdateSettings)
				protected.GET("/generation-logs", adminHandler.ListGenerationLogs)
				protected.POST("/model-registry/reload", registryHandler.Reload)
			}
		}
	}

	return r
}
