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
	"github.com/shopspring/decimal"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	// MigrateURL is the pgx5:// form of DatabaseURL used by the migrator;
	// derived automatically when empty.
	MigrateURL     string
	MigrateOnStart bool
	RedisURL       string

	CORSAllowedOrigins []string

	// SourceCurrency is the quoting currency (amounts entered upstream);
	// TargetCurrency is the settlement currency quotes also display.
	SourceCurrency string
	TargetCurrency string
	// FallbackRate is used when no live rate can be obtained, in units of
	// source currency per one unit of target currency.
	FallbackRate decimal.Decimal

	FxEndpoint        string
	FxAPIKey          string
	FxCacheTTL        time.Duration
	FxRefreshInterval time.Duration
	FxRequestTimeout  time.Duration
	FxMaxAttempts     int
	FxBreakerFailures int
	FxBreakerCooldown time.Duration

	CartLockTTL    time.Duration
	IdempotencyTTL time.Duration

	PublicRateLimit       int64
	PublicRateLimitWindow time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:         valueOrDefault(k.String("APP_ENV"), "development"),
		Port:           valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:    k.String("DATABASE_URL"),
		MigrateURL:     k.String("MIGRATE_DATABASE_URL"),
		MigrateOnStart: parseBool(valueOrDefault(k.String("MIGRATE_ON_START"), "true")),
		RedisURL:       k.String("REDIS_URL"),

		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		SourceCurrency: valueOrDefault(k.String("CURRENCY_SOURCE"), "BOB"),
		TargetCurrency: valueOrDefault(k.String("CURRENCY_TARGET"), "USD"),
		FallbackRate:   parseDecimal(k.String("FX_FALLBACK_RATE"), "6.96"),

		FxEndpoint:        k.String("FX_ENDPOINT"),
		FxAPIKey:          k.String("FX_API_KEY"),
		FxCacheTTL:        parseDuration(k.String("FX_CACHE_TTL"), "1h"),
		FxRefreshInterval: parseDuration(k.String("FX_REFRESH_INTERVAL"), "30m"),
		FxRequestTimeout:  parseDuration(k.String("FX_REQUEST_TIMEOUT"), "5s"),
		FxMaxAttempts:     parseInt(k.String("FX_MAX_ATTEMPTS"), 3),
		FxBreakerFailures: parseInt(k.String("FX_BREAKER_FAILURES"), 5),
		FxBreakerCooldown: parseDuration(k.String("FX_BREAKER_COOLDOWN"), "30s"),

		CartLockTTL:    parseDuration(k.String("CART_LOCK_TTL"), "15s"),
		IdempotencyTTL: parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),

		PublicRateLimit:       int64(parseInt(k.String("PUBLIC_RATE_LIMIT"), 60)),
		PublicRateLimitWindow: parseDuration(k.String("PUBLIC_RATE_LIMIT_WINDOW"), "1m"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.SourceCurrency == cfg.TargetCurrency {
		return nil, errors.New("CURRENCY_SOURCE and CURRENCY_TARGET must differ")
	}
	if cfg.MigrateURL == "" {
		cfg.MigrateURL = deriveMigrateURL(cfg.DatabaseURL)
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

// deriveMigrateURL rewrites a postgres:// URL onto the pgx5 driver scheme.
func deriveMigrateURL(databaseURL string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(databaseURL, prefix) {
			return "pgx5://" + strings.TrimPrefix(databaseURL, prefix)
		}
	}
	return databaseURL
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
		return value
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

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseInt(value string, fallback int) int {
	if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		return parsed
	}
	return fallback
}

func parseDecimal(value, fallback string) decimal.Decimal {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := decimal.NewFromString(base)
	if err != nil || d.Sign() <= 0 {
		d = decimal.RequireFromString(fallback)
	}
	return d
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
