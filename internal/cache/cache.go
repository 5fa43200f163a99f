package cache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"recipebox/pkg/models"
)

// Backend stores cache entries. Implementations report a miss as (nil, nil);
// expiry is enforced by ResponseCache, so a backend may return an expired entry.
type Backend interface {
	Get(ctx context.Context, key string) (*models.CacheEntry, error)
	Set(ctx context.Context, entry *models.CacheEntry) error
	Delete(ctx context.Context, keys ...string) error

	// Keys returns a snapshot of the stored keys.
	Keys(ctx context.Context) ([]string, error)
	Clear(ctx context.Context) error
	Size(ctx context.Context) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// Expirer is implemented by backends without native TTL support.
type Expirer interface {
	FlushExpired(ctx context.Context, now time.Time) (int, error)
}

const (
	BackendMemory    = "memory"
	BackendRistretto = "ristretto"
	BackendRedis     = "redis"
)

// CacheConfig configuration for the response cache
type CacheConfig struct {
	Backend       string          `mapstructure:"backend"`
	ListingTTL    time.Duration   `mapstructure:"listing_ttl"`
	DetailTTL     time.Duration   `mapstructure:"detail_ttl"`
	StatsTTL      time.Duration   `mapstructure:"stats_ttl"`
	SweepInterval time.Duration   `mapstructure:"sweep_interval"`
	Ristretto     RistrettoConfig `mapstructure:"ristretto"`
	Redis         RedisConfig     `mapstructure:"redis"`
}

// RistrettoConfig sizes the in-process ristretto backend
type RistrettoConfig struct {
	MaxCost     int64 `mapstructure:"max_cost"`
	NumCounters int64 `mapstructure:"num_counters"`
}

// RedisConfig configuration for the redis backend
type RedisConfig struct {
	Addresses    []string      `mapstructure:"addresses"`
	Password     string        `mapstructure:"password"`
	Database     int           `mapstructure:"database"`
	Namespace    string        `mapstructure:"namespace"`
	MaxRetries   int           `mapstructure:"max_retries"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`
}

// DefaultCacheConfig returns the default configuration
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		Backend:       BackendMemory,
		ListingTTL:    1800 * time.Second,
		DetailTTL:     1800 * time.Second,
		StatsTTL:      5 * time.Minute,
		SweepInterval: time.Minute,
		Ristretto: RistrettoConfig{
			MaxCost:     64 << 20,
			NumCounters: 1e5,
		},
		Redis: *DefaultRedisConfig(),
	}
}

// DefaultRedisConfig returns the default redis backend configuration
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addresses:    []string{"localhost:6379"},
		Password:     "",
		Database:     0,
		Namespace:    "recipebox:cache:",
		MaxRetries:   3,
		PoolSize:     10,
		MinIdleConns: 5,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	}
}

// NewBackend builds the backend selected by config.Backend
func NewBackend(config *CacheConfig, logger *zap.Logger) (Backend, error) {
	if config == nil {
		config = DefaultCacheConfig()
	}

	switch config.Backend {
	case "", BackendMemory:
		return NewMemoryCache(logger), nil
	case BackendRistretto:
		return NewRistrettoCache(&config.Ristretto, logger)
	case BackendRedis:
		return NewRedisCache(&config.Redis, logger)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", config.Backend)
	}
}
