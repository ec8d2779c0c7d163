package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"datatav/internal/catalog"
	"datatav/internal/config"
	"datatav/internal/database"
	"datatav/internal/generation"
	"datatav/internal/provider"
	"datatav/internal/ratelimit"
	"datatav/internal/repository"
	"datatav/internal/router"
	"datatav/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

func main() {
	_ = godotenv.Load()

	gin.SetMode(gin.ReleaseMode)

	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	if err := database.Init(cfg.DatabasePath); err != nil {
		log.Fatalf("database init failed: %v", err)
	}
	defer database.Close()

	store := newRateLimitStore(cfg)
	defer store.Close()
	limiter := ratelimit.New(store, cfg.RateLimitRequests, cfg.RateLimitWindow)

	settings := generation.NewSettingsManager(generation.Settings{
		RateLimit:  cfg.RateLimitRequests,
		RateWindow: cfg.RateLimitWindow,
		MaxRetries: cfg.RetryMaxRetries,
		BaseDelay:  cfg.RetryBaseDelay,
	}, repository.NewSystemConfigRepository(), limiter)
	if err := settings.Load(); err != nil {
		log.Warnf("failed to load saved generation settings: %v", err)
	}

	cat := catalog.New(cfg.ModelRegistryFile, cfg.ModelRegistry)
	log.Infof("model registry: %d models from %s", len(cat.List()), cat.Source())

	clients := provider.NewRegistry(
		provider.NewGroqClient(provider.Options{BaseURL: cfg.GroqBaseURL, Timeout: cfg.ProviderTimeout}),
		provider.NewOpenAIClient(provider.Options{BaseURL: cfg.OpenAIBaseURL, Timeout: cfg.ProviderTimeout}),
	)
	credentials := map[string]generation.Credential{
		provider.ProviderGroq:   {Label: "Groq", EnvVar: "GROQ_API_KEY", APIKey: cfg.GroqAPIKey},
		provider.ProviderOpenAI: {Label: "OpenAI", EnvVar: "OPENAI_API_KEY", APIKey: cfg.OpenAIAPIKey},
	}

	// 生成日志异步写入与过期清理
	logWriter := generation.NewLogWriter(database.GetDB(), 1000, 50, 2*time.Second)
	defer logWriter.Stop()
	logRepo := repository.NewGenerationLogRepository()
	cleaner := generation.NewRetentionCleaner(logRepo, generation.DefaultRetentionSweep, generation.DefaultRetention)
	cleaner.Start()
	defer cleaner.Stop()

	svc := generation.NewService(cat, limiter, clients, credentials, settings, logWriter)

	r := router.Setup(router.Deps{
		Generation: svc,
		Settings:   settings,
		Store:      store,
		Auth:       service.NewAdminAuthService(),
		Logs:       logRepo,
	})

	port := cfg.ServerPort
	if envPort := os.Getenv("PORT"); envPort != "" {
		port = envPort
	}

	srv := &http.Server{
		Addr:              "0.0.0.0:" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("server listening on http://0.0.0.0:%s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ProviderTimeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("graceful shutdown failed: %v", err)
	}
}

func setupLogging(level string) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.Warnf("unknown LOG_LEVEL %q, using info", level)
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}

// newRateLimitStore 配置了 REDIS_URL 时使用 Redis，否则使用进程内存储
func newRateLimitStore(cfg *config.Config) ratelimit.Store {
	if cfg.RedisURL == "" {
		return ratelimit.NewMemoryStore()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	store, err := ratelimit.NewRedisStore(ctx, cfg.RedisURL)
	if err != nil {
		log.Warnf("redis rate-limit store unavailable, falling back to memory: %v", err)
		return ratelimit.NewMemoryStore()
	}
	log.Info("rate limit: using redis store")
	return store
}
