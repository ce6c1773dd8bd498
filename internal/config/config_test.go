package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "development", cfg.Server.Env)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())

	assert.Equal(t, "postgres", cfg.Estimator.Source)
	assert.Equal(t, int64(100000), cfg.Estimator.BasePopulation)
	assert.Equal(t, 5*time.Second, cfg.Estimator.SourceTimeout)

	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)

	assert.False(t, cfg.Geo.Enabled)
	assert.Equal(t, float64(10), cfg.Geo.DefaultRadiusKm)

	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("VECTOR_REACH_HTTP_ADDR", ":9090")
	t.Setenv("VECTOR_REACH_ESTIMATOR_SOURCE", "memory")
	t.Setenv("VECTOR_REACH_BASE_POPULATION", "25000")
	t.Setenv("VECTOR_REACH_SOURCE_TIMEOUT", "2s")
	t.Setenv("VECTOR_REACH_CACHE_ENABLED", "false")
	t.Setenv("VECTOR_REACH_AUTH_SKIP_PATHS", "/health, /metrics,/debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "memory", cfg.Estimator.Source)
	assert.Equal(t, int64(25000), cfg.Estimator.BasePopulation)
	assert.Equal(t, 2*time.Second, cfg.Estimator.SourceTimeout)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, []string{"/health", "/metrics", "/debug"}, cfg.Auth.SkipPaths)
}

func TestLoadRejectsUnknownSource(t *testing.T) {
	t.Setenv("VECTOR_REACH_ESTIMATOR_SOURCE", "oracle")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VECTOR_REACH_ESTIMATOR_SOURCE")
}

func TestLoadRequiresMasterKeyWhenAuthEnabled(t *testing.T) {
	t.Setenv("VECTOR_REACH_AUTH_ENABLED", "true")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "VECTOR_REACH_API_KEY_MASTER")

	t.Setenv("VECTOR_REACH_API_KEY_MASTER", "secret-key")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Auth.Enabled)
}

func TestDatabaseDSN(t *testing.T) {
	t.Parallel()

	d := DatabaseConfig{
		Host: "db", Port: 5432, User: "app", Password: "pw",
		DBName: "reach", SSLMode: "disable",
	}
	assert.Equal(t, "postgres://app:pw@db:5432/reach?sslmode=disable", d.DSN())
}

func TestMalformedEnvFallsBackToDefault(t *testing.T) {
	t.Setenv("VECTOR_REACH_BASE_POPULATION", "lots")
	t.Setenv("VECTOR_REACH_SOURCE_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(100000), cfg.Estimator.BasePopulation)
	assert.Equal(t, 5*time.Second, cfg.Estimator.SourceTimeout)
}
