package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"recipebox/internal/cache"
	"recipebox/internal/store"
	"recipebox/internal/store/postgres"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config is the main service configuration
type Config struct {
	Server  ServerConfig      `mapstructure:"server"`
	Cache   cache.CacheConfig `mapstructure:"cache"`
	Store   StoreConfig       `mapstructure:"store"`
	Logger  LoggerConfig      `mapstructure:"logger"`
	Metrics MetricsConfig     `mapstructure:"metrics"`
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	BasePath        string        `mapstructure:"base_path"`
}

// StoreConfig selects and configures the document store
type StoreConfig struct {
	Driver   string              `mapstructure:"driver"`
	Postgres postgres.Config     `mapstructure:"postgres"`
	Breaker  store.BreakerConfig `mapstructure:"breaker"`
}

// LoggerConfig configures the logger
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

// LoadConfig loads the configuration from config.yaml (if present) and RB_*
// environment variables
func LoadConfig() (*Config, error) {
	return Load(".", "./config", "/etc/recipebox")
}

// Load reads config.yaml from the first of paths that has one
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	// RB_CACHE_BACKEND, RB_STORE_POSTGRES_DSN, ...
	v.SetEnvPrefix("RB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// keys without a default are invisible to AutomaticEnv during Unmarshal
	_ = v.BindEnv("cache.redis.password", "RB_CACHE_REDIS_PASSWORD")
	_ = v.BindEnv("store.postgres.dsn", "RB_STORE_POSTGRES_DSN", "DATABASE_URL")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	// RB_CACHE_REDIS_ADDRESSES arrives as a comma separated string
	if addressesStr := v.GetString("cache.redis.addresses"); addressesStr != "" {
		addresses := strings.Split(addressesStr, ",")
		for i, addr := range addresses {
			addresses[i] = strings.TrimSpace(addr)
		}
		config.Cache.Redis.Addresses = addresses
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.base_path", "/api/v1")

	// Cache defaults
	cc := cache.DefaultCacheConfig()
	v.SetDefault("cache.backend", cc.Backend)
	v.SetDefault("cache.listing_ttl", cc.ListingTTL)
	v.SetDefault("cache.detail_ttl", cc.DetailTTL)
	v.SetDefault("cache.stats_ttl", cc.StatsTTL)
	v.SetDefault("cache.sweep_interval", cc.SweepInterval)
	v.SetDefault("cache.ristretto.max_cost", cc.Ristretto.MaxCost)
	v.SetDefault("cache.ristretto.num_counters", cc.Ristretto.NumCounters)
	v.SetDefault("cache.redis.addresses", cc.Redis.Addresses)
	v.SetDefault("cache.redis.database", cc.Redis.Database)
	v.SetDefault("cache.redis.namespace", cc.Redis.Namespace)
	v.SetDefault("cache.redis.max_retries", cc.Redis.MaxRetries)
	v.SetDefault("cache.redis.pool_size", cc.Redis.PoolSize)
	v.SetDefault("cache.redis.min_idle_conns", cc.Redis.MinIdleConns)
	v.SetDefault("cache.redis.dial_timeout", cc.Redis.DialTimeout)
	v.SetDefault("cache.redis.read_timeout", cc.Redis.ReadTimeout)
	v.SetDefault("cache.redis.write_timeout", cc.Redis.WriteTimeout)
	v.SetDefault("cache.redis.pool_timeout", cc.Redis.PoolTimeout)

	// Store defaults
	bc := store.DefaultBreakerConfig()
	v.SetDefault("store.driver", StoreMemory)
	v.SetDefault("store.postgres.max_conns", 10)
	v.SetDefault("store.postgres.min_conns", 2)
	v.SetDefault("store.postgres.max_conn_lifetime", "1h")
	v.SetDefault("store.postgres.max_conn_idle_time", "30m")
	v.SetDefault("store.postgres.health_check", "1m")
	v.SetDefault("store.postgres.auto_migrate", true)
	v.SetDefault("store.breaker.enabled", bc.Enabled)
	v.SetDefault("store.breaker.max_requests", bc.MaxRequests)
	v.SetDefault("store.breaker.interval", bc.Interval)
	v.SetDefault("store.breaker.timeout", bc.Timeout)
	v.SetDefault("store.breaker.failure_threshold", bc.FailureThreshold)
	v.SetDefault("store.breaker.min_requests", bc.MinRequests)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output_path", "stdout")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "recipebox")
}

// Validate rejects configurations the server cannot start with
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case cache.BackendMemory, cache.BackendRistretto, cache.BackendRedis:
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}

	switch c.Store.Driver {
	case StoreMemory:
	case StorePostgres:
		if c.Store.Postgres.DSN == "" {
			return errors.New("store.postgres.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	return nil
}

// GetAddress returns the server listen address
func (sc *ServerConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", sc.Host, sc.Port)
}
