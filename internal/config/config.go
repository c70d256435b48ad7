package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string

	ShopifyAPIKey      string
	ShopifyAPISecret   string
	ShopifyAPIVersion  string
	ShopifyAccessToken string
	ShopifyShopDomain  string
	ShopifyHTTPTimeout time.Duration
	ShopifyMaxAttempts int

	JobPollTimeout  time.Duration
	JobPollInterval time.Duration
	UploadTimeout   time.Duration
	MaxUploadBytes  int64

	WebhookReplayTTL  time.Duration
	IdempotencyTTL    time.Duration
	AnalyticsCacheTTL time.Duration

	BundleUpdateLock bool
	BundleLockTTL    time.Duration

	RateLimit         string
	WorkerConcurrency int
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		ShopifyAPIKey:      strings.TrimSpace(k.String("SHOPIFY_API_KEY")),
		ShopifyAPISecret:   strings.TrimSpace(k.String("SHOPIFY_API_SECRET")),
		ShopifyAPIVersion:  valueOrDefault(k.String("SHOPIFY_API_VERSION"), "2024-10"),
		ShopifyAccessToken: strings.TrimSpace(k.String("SHOPIFY_ACCESS_TOKEN")),
		ShopifyShopDomain:  strings.ToLower(strings.TrimSpace(k.String("SHOPIFY_SHOP_DOMAIN"))),
		ShopifyHTTPTimeout: parseDuration(k.String("SHOPIFY_HTTP_TIMEOUT"), "30s"),
		ShopifyMaxAttempts: parseInt(k.String("SHOPIFY_MAX_ATTEMPTS"), 3),

		JobPollTimeout:  parseDuration(k.String("JOB_POLL_TIMEOUT"), "20s"),
		JobPollInterval: parseDuration(k.String("JOB_POLL_INTERVAL"), "1s"),
		UploadTimeout:   parseDuration(k.String("UPLOAD_TIMEOUT"), "60s"),
		MaxUploadBytes:  int64(parseInt(k.String("MAX_UPLOAD_BYTES"), 20<<20)),

		WebhookReplayTTL:  parseDuration(k.String("WEBHOOK_REPLAY_TTL"), "24h"),
		IdempotencyTTL:    parseDuration(k.String("IDEMPOTENCY_TTL"), "10m"),
		AnalyticsCacheTTL: parseDuration(k.String("ANALYTICS_CACHE_TTL"), "5m"),

		BundleUpdateLock: parseBoolDefault(k.String("BUNDLE_UPDATE_LOCK"), true),
		BundleLockTTL:    parseDuration(k.String("BUNDLE_LOCK_TTL"), "60s"),

		RateLimit:         valueOrDefault(k.String("RATE_LIMIT"), "60-M"),
		WorkerConcurrency: parseInt(k.String("WORKER_CONCURRENCY"), 5),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.ShopifyAPISecret == "" {
		return nil, errors.New("SHOPIFY_API_SECRET is required")
	}
	if cfg.JobPollInterval <= 0 || cfg.JobPollTimeout <= 0 {
		return nil, errors.New("JOB_POLL_TIMEOUT and JOB_POLL_INTERVAL must be positive")
	}
	if cfg.ShopifyMaxAttempts < 1 {
		cfg.ShopifyMaxAttempts = 1
	}
	if cfg.WorkerConcurrency < 1 {
		cfg.WorkerConcurrency = 1
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return v
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
