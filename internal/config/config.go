package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ServerPort         string
	CORSAllowedOrigins string
	LogLevel           string

	// 上游供应商
	GroqAPIKey      string
	GroqBaseURL     string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	ProviderTimeout time.Duration

	// 模型目录来源
	ModelRegistry     string
	ModelRegistryFile string

	// 生成请求的默认限流与重试参数（可在管理接口中覆盖）
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RetryMaxRetries   int
	RetryBaseDelay    time.Duration

	// 为空时使用进程内限流存储
	RedisURL string

	DatabasePath string

	AdminUsername     string
	AdminPassword     string
	JWTSecret         string
	JWTIssuer         string
	JWTAudience       string
	RateLimitAdminRPS float64
}

var cfg *Config

func Load() *Config {
	cfg = &Config{
		ServerPort:         getEnv("SERVER_PORT", "3000"),
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),

		GroqAPIKey:      strings.TrimSpace(os.Getenv("GROQ_API_KEY")),
		GroqBaseURL:     getEnv("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		OpenAIAPIKey:    strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		ProviderTimeout: getEnvDuration("PROVIDER_TIMEOUT", 30*time.Second),

		ModelRegistry:     os.Getenv("AI_MODEL_REGISTRY"),
		ModelRegistryFile: os.Getenv("AI_MODEL_REGISTRY_FILE"),

		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 10),
		RateLimitWindow:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		RetryMaxRetries:   getEnvInt("RETRY_MAX_RETRIES", 2),
		RetryBaseDelay:    getEnvDuration("RETRY_BASE_DELAY", time.Second),

		RedisURL: os.Getenv("REDIS_URL"),

		DatabasePath: getEnv("DATABASE_PATH", "./data/datatav.db"),

		AdminUsername:     getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:     getEnv("ADMIN_PASSWORD", "admin123"),
		JWTSecret:         getEnv("JWT_SECRET", "datatav-default-secret-change-in-production"),
		JWTIssuer:         getEnv("JWT_ISSUER", "datatav"),
		JWTAudience:       getEnv("JWT_AUDIENCE", "datatav-admin"),
		RateLimitAdminRPS: getEnvFloat("RATE_LIMIT_ADMIN_RPS", 1),
	}
	return cfg
}

func Get() *Config {
	return cfg
}

// Set 替换全局配置，供测试注入
func Set(c *Config) {
	cfg = c
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration 支持 "45s" 这类 Go 时长，也接受纯数字毫秒
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}
