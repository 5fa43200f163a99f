package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipebox/internal/cache"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.GetAddress())
	assert.Equal(t, "/api/v1", cfg.Server.BasePath)
	assert.Equal(t, cache.BackendMemory, cfg.Cache.Backend)
	assert.Equal(t, 1800*time.Second, cfg.Cache.ListingTTL)
	assert.Equal(t, []string{"localhost:6379"}, cfg.Cache.Redis.Addresses)
	assert.Equal(t, "recipebox:cache:", cfg.Cache.Redis.Namespace)
	assert.Equal(t, StoreMemory, cfg.Store.Driver)
	assert.True(t, cfg.Store.Breaker.Enabled)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("RB_CACHE_BACKEND", "redis")
	t.Setenv("RB_CACHE_REDIS_ADDRESSES", "redis-a:6379, redis-b:6379")
	t.Setenv("RB_CACHE_LISTING_TTL", "10m")
	t.Setenv("RB_SERVER_PORT", "9090")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, cache.BackendRedis, cfg.Cache.Backend)
	assert.Equal(t, []string{"redis-a:6379", "redis-b:6379"}, cfg.Cache.Redis.Addresses)
	assert.Equal(t, 10*time.Minute, cfg.Cache.ListingTTL)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  port: 7070
cache:
  backend: ristretto
  detail_ttl: 90s
store:
  driver: postgres
  postgres:
    dsn: postgres://recipebox@localhost/recipebox
logger:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, cache.BackendRistretto, cfg.Cache.Backend)
	assert.Equal(t, 90*time.Second, cfg.Cache.DetailTTL)
	assert.Equal(t, StorePostgres, cfg.Store.Driver)
	assert.Equal(t, "postgres://recipebox@localhost/recipebox", cfg.Store.Postgres.DSN)
	assert.Equal(t, int32(10), cfg.Store.Postgres.MaxConns)
	assert.Equal(t, "debug", cfg.Logger.Level)
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("unknown cache backend", func(t *testing.T) {
		t.Setenv("RB_CACHE_BACKEND", "memcached")
		_, err := Load(t.TempDir())
		assert.Error(t, err)
	})

	t.Run("postgres without dsn", func(t *testing.T) {
		t.Setenv("RB_STORE_DRIVER", "postgres")
		t.Setenv("RB_STORE_POSTGRES_DSN", "")
		t.Setenv("DATABASE_URL", "")
		_, err := Load(t.TempDir())
		assert.Error(t, err)
	})
}
