package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the Vector-Reach application.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	ClickHouse ClickHouseConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	Log        LogConfig
	Metrics    MetricsConfig
	Geo        GeoConfig
	Estimator  EstimatorConfig
	Cache      CacheConfig
}

type ServerConfig struct {
	Addr            string
	Env             string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ClickHouseConfig configures the analytical population store.
type ClickHouseConfig struct {
	Addr     string
	Database string
	User     string
	Password string
}

type AuthConfig struct {
	Enabled   bool
	MasterKey string
	SkipPaths []string
}

type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// GeoConfig configures GeoIP lookup for "around me" estimates.
type GeoConfig struct {
	Enabled      bool
	DatabasePath string
	CacheSize    int
	CacheTTL     time.Duration
	// DefaultRadiusKm applies when a center is resolved from a client IP
	// without an explicit radius.
	DefaultRadiusKm float64
}

// EstimatorConfig selects the population source and heuristic seed.
type EstimatorConfig struct {
	// Source is one of postgres, clickhouse, memory, heuristic.
	Source string
	// BasePopulation seeds the heuristic source and fallback.
	BasePopulation int64
	// SourceTimeout bounds every population/follower/profile call.
	SourceTimeout time.Duration
}

// CacheConfig configures the Redis estimate memoization.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Addr:            getEnv("VECTOR_REACH_HTTP_ADDR", ":8080"),
			Env:             getEnv("VECTOR_REACH_ENV", "development"),
			ShutdownTimeout: getDurationEnv("VECTOR_REACH_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("VECTOR_REACH_DB_HOST", "localhost"),
			Port:     getIntEnv("VECTOR_REACH_DB_PORT", 5432),
			User:     getEnv("VECTOR_REACH_DB_USER", "vectorreach"),
			Password: getEnv("VECTOR_REACH_DB_PASSWORD", "vectorreach_secret"),
			DBName:   getEnv("VECTOR_REACH_DB_NAME", "vectorreach"),
			SSLMode:  getEnv("VECTOR_REACH_DB_SSLMODE", "disable"),
			MaxConns: getIntEnv("VECTOR_REACH_DB_MAX_CONNS", 25),
			MinConns: getIntEnv("VECTOR_REACH_DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Addr:     getEnv("VECTOR_REACH_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("VECTOR_REACH_REDIS_PASSWORD", ""),
			DB:       getIntEnv("VECTOR_REACH_REDIS_DB", 0),
		},
		ClickHouse: ClickHouseConfig{
			Addr:     getEnv("VECTOR_REACH_CLICKHOUSE_ADDR", "localhost:9000"),
			Database: getEnv("VECTOR_REACH_CLICKHOUSE_DB", "vectorreach"),
			User:     getEnv("VECTOR_REACH_CLICKHOUSE_USER", "default"),
			Password: getEnv("VECTOR_REACH_CLICKHOUSE_PASSWORD", ""),
		},
		Auth: AuthConfig{
			Enabled:   getBoolEnv("VECTOR_REACH_AUTH_ENABLED", false),
			MasterKey: getEnv("VECTOR_REACH_API_KEY_MASTER", ""),
			SkipPaths: getSliceEnv("VECTOR_REACH_AUTH_SKIP_PATHS", []string{"/health", "/metrics"}),
		},
		RateLimit: RateLimitConfig{
			Enabled: getBoolEnv("VECTOR_REACH_RATE_LIMIT_ENABLED", true),
			RPS:     getFloatEnv("VECTOR_REACH_RATE_LIMIT_RPS", 100),
			Burst:   getIntEnv("VECTOR_REACH_RATE_LIMIT_BURST", 20),
		},
		Log: LogConfig{
			Level:  getEnv("VECTOR_REACH_LOG_LEVEL", "info"),
			Format: getEnv("VECTOR_REACH_LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getBoolEnv("VECTOR_REACH_METRICS_ENABLED", true),
			Path:    getEnv("VECTOR_REACH_METRICS_PATH", "/metrics"),
		},
		Geo: GeoConfig{
			Enabled:         getBoolEnv("VECTOR_REACH_GEO_ENABLED", false),
			DatabasePath:    getEnv("VECTOR_REACH_GEO_DB_PATH", "/app/data/GeoLite2-City.mmdb"),
			CacheSize:       getIntEnv("VECTOR_REACH_GEO_CACHE_SIZE", 10000),
			CacheTTL:        getDurationEnv("VECTOR_REACH_GEO_CACHE_TTL", 1*time.Hour),
			DefaultRadiusKm: getFloatEnv("VECTOR_REACH_GEO_DEFAULT_RADIUS_KM", 10),
		},
		Estimator: EstimatorConfig{
			Source:         getEnv("VECTOR_REACH_ESTIMATOR_SOURCE", "postgres"),
			BasePopulation: int64(getIntEnv("VECTOR_REACH_BASE_POPULATION", 100000)),
			SourceTimeout:  getDurationEnv("VECTOR_REACH_SOURCE_TIMEOUT", 5*time.Second),
		},
		Cache: CacheConfig{
			Enabled: getBoolEnv("VECTOR_REACH_CACHE_ENABLED", true),
			TTL:     getDurationEnv("VECTOR_REACH_CACHE_TTL", 5*time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Auth.Enabled && c.Auth.MasterKey == "" {
		return fmt.Errorf("VECTOR_REACH_API_KEY_MASTER is required when auth is enabled")
	}
	switch c.Estimator.Source {
	case "postgres", "clickhouse", "memory", "heuristic":
	default:
		return fmt.Errorf("VECTOR_REACH_ESTIMATOR_SOURCE must be postgres, clickhouse, memory or heuristic, got %q", c.Estimator.Source)
	}
	if c.Estimator.BasePopulation < 0 {
		return fmt.Errorf("VECTOR_REACH_BASE_POPULATION must be >= 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Helper functions for reading environment variables

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getFloatEnv(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getSliceEnv(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				result = append(result, p)
			}
		}
		return result
	}
	return def
}
