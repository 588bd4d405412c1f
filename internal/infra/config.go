package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Port             string
	Store            string
	DatabaseURL      string
	JWTSecret        string
	GeoIPDBPath      string
	DefaultLocale    string
	CORSOrigins      []string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	EventsChannel    string
	FalAPIKey        string
	FalBaseURL       string
	FalImageModel    string
	FalVideoModel    string
	FalProductModel  string
	ImageProvider    string
	QwenAPIKey       string
	QwenBaseURL      string
	QwenImageModel   string
	ProviderRPS      float64
	ProviderBurst    int
	ProviderTimeout  time.Duration
	PollInterval     time.Duration
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"

	ProviderFal  = "fal"
	ProviderQwen = "qwen"
)

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8080"),
		Store:            strings.ToLower(getEnv("STORE", StorePostgres)),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		GeoIPDBPath:      os.Getenv("GEOIP_DB_PATH"),
		DefaultLocale:    getEnv("DEFAULT_LOCALE", "en"),
		CORSOrigins:      getEnvList("CORS_ORIGINS"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		EventsChannel:    getEnv("EVENTS_CHANNEL", "generation:jobs"),
		FalAPIKey:        os.Getenv("FAL_API_KEY"),
		FalBaseURL:       getEnv("FAL_BASE_URL", "https://queue.fal.run"),
		FalImageModel:    getEnv("FAL_IMAGE_MODEL", "fal-ai/flux/dev"),
		FalVideoModel:    getEnv("FAL_VIDEO_MODEL", "fal-ai/kling-video/v1.6/standard/image-to-video"),
		FalProductModel:  getEnv("FAL_PRODUCT_SHOT_MODEL", "fal-ai/bria/product-shot"),
		ImageProvider:    strings.ToLower(getEnv("IMAGE_PROVIDER", ProviderFal)),
		QwenAPIKey:       os.Getenv("DASHSCOPE_API_KEY"),
		QwenBaseURL:      getEnv("QWEN_BASE_URL", "https://dashscope-intl.aliyuncs.com/api/v1"),
		QwenImageModel:   getEnv("QWEN_IMAGE_MODEL", "wanx2.1-t2i-turbo"),
		ProviderRPS:      getEnvFloat("PROVIDER_RPS", 5),
		ProviderBurst:    getEnvInt("PROVIDER_BURST", 10),
		ProviderTimeout:  getEnvDuration("PROVIDER_TIMEOUT", 30*time.Second),
		PollInterval:     getEnvDuration("POLL_INTERVAL", 3*time.Second),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
	}

	switch cfg.Store {
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	case StoreMemory:
	default:
		return nil, fmt.Errorf("STORE must be %q or %q", StorePostgres, StoreMemory)
	}

	switch cfg.ImageProvider {
	case ProviderFal, ProviderQwen:
	default:
		return nil, fmt.Errorf("IMAGE_PROVIDER must be %q or %q", ProviderFal, ProviderQwen)
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
