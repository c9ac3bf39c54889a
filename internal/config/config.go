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

// Catalog backends.
const (
	BackendPostgres = "postgres"
	BackendMySQL    = "mysql"
	BackendMemory   = "memory"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv                 string
	Port                   string
	CatalogBackend         string
	DatabaseURL            string
	MySQLDSN               string
	RedisURL               string
	CatalogCacheTTL        time.Duration
	CatalogLookupTimeout   time.Duration
	CatalogSeedDir         string
	DBAutoMigrate          bool
	CircuitMinRequests     int
	CircuitFailureRatio    float64
	CircuitOpenFor         time.Duration
	CatalogRetryAttempts   int
	RateLimitCheckout      string
	HTTPMaxBodyBytes       int64
	CORSAllowedOrigins     []string
	SecurityHeadersEnabled bool
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:                 valueOrDefault(k.String("APP_ENV"), "development"),
		Port:                   valueOrDefault(k.String("PORT"), "8080"),
		CatalogBackend:         strings.ToLower(valueOrDefault(k.String("CATALOG_BACKEND"), BackendPostgres)),
		DatabaseURL:            strings.TrimSpace(k.String("DATABASE_URL")),
		MySQLDSN:               strings.TrimSpace(k.String("MYSQL_DSN")),
		RedisURL:               strings.TrimSpace(k.String("REDIS_URL")),
		CatalogCacheTTL:        parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),
		CatalogLookupTimeout:   parseDuration(k.String("CATALOG_LOOKUP_TIMEOUT"), "2s"),
		CatalogSeedDir:         valueOrDefault(k.String("CATALOG_SEED_DIR"), "data"),
		DBAutoMigrate:          parseBool(k.String("DB_AUTO_MIGRATE")),
		CircuitMinRequests:     parseInt(k.String("CIRCUIT_CATALOG_MIN_REQUESTS"), 10),
		CircuitFailureRatio:    parseFloat(k.String("CIRCUIT_CATALOG_FAILURE_RATIO"), 0.5),
		CircuitOpenFor:         parseDuration(k.String("CIRCUIT_CATALOG_OPEN_FOR"), "30s"),
		CatalogRetryAttempts:   parseInt(k.String("CATALOG_RETRY_ATTEMPTS"), 2),
		RateLimitCheckout:      valueOrDefault(k.String("RATE_LIMIT_CHECKOUT"), "100-M"),
		HTTPMaxBodyBytes:       int64(parseInt(k.String("HTTP_MAX_BODY_BYTES"), 1<<20)),
		CORSAllowedOrigins:     splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		SecurityHeadersEnabled: parseBoolDefault(k.String("SECURITY_HEADERS_ENABLED"), true),
	}

	switch cfg.CatalogBackend {
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required for the postgres catalog backend")
		}
	case BackendMySQL:
		if cfg.MySQLDSN == "" {
			return nil, errors.New("MYSQL_DSN is required for the mysql catalog backend")
		}
	case BackendMemory:
	default:
		return nil, fmt.Errorf("CATALOG_BACKEND %q is not supported", cfg.CatalogBackend)
	}
	if cfg.CircuitFailureRatio <= 0 || cfg.CircuitFailureRatio > 1 {
		return nil, fmt.Errorf("CIRCUIT_CATALOG_FAILURE_RATIO must be in (0, 1], got %v", cfg.CircuitFailureRatio)
	}
	if cfg.HTTPMaxBodyBytes <= 0 {
		return nil, errors.New("HTTP_MAX_BODY_BYTES must be positive")
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

// IsProduction reports whether APP_ENV names a production deployment.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.AppEnv), "production")
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

func parseBool(value string) bool {
	return parseBoolDefault(value, false)
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

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
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
