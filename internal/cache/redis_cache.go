package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"recipebox/pkg/models"
)

const scanBatch = 200

// RedisCache implements Backend using Redis. Keys live under a namespace so
// that Clear never touches data it does not own.
type RedisCache struct {
	client redis.UniversalClient
	logger *zap.Logger
	config *RedisConfig
}

// NewRedisCache creates a new instance of RedisCache
func NewRedisCache(config *RedisConfig, logger *zap.Logger) (*RedisCache, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}

	options := &redis.UniversalOptions{
		Addrs:        config.Addresses,
		Password:     config.Password,
		DB:           config.Database,
		MaxRetries:   config.MaxRetries,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		PoolTimeout:  config.PoolTimeout,
	}

	return NewRedisCacheWithClient(redis.NewUniversalClient(options), config, logger)
}

// NewRedisCacheWithClient wraps an existing client and checks the connection
func NewRedisCacheWithClient(client redis.UniversalClient, config *RedisConfig, logger *zap.Logger) (*RedisCache, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{
		client: client,
		logger: logger,
		config: config,
	}, nil
}

func (rc *RedisCache) redisKey(key string) string {
	return rc.config.Namespace + key
}

// Get retrieves an entry from the cache
func (rc *RedisCache) Get(ctx context.Context, key string) (*models.CacheEntry, error) {
	data, err := rc.client.Get(ctx, rc.redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		rc.logger.Error("failed to get cache entry", zap.Error(err), zap.String("key", key))
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		rc.logger.Error("failed to unmarshal cache entry", zap.Error(err), zap.String("key", key))
		return nil, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}

	return &entry, nil
}

// Set stores an entry with the entry's TTL as the native Redis expiry
func (rc *RedisCache) Set(ctx context.Context, entry *models.CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		rc.logger.Error("failed to marshal cache entry", zap.Error(err), zap.String("key", entry.Key))
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	if err := rc.client.Set(ctx, rc.redisKey(entry.Key), data, entry.TTL).Err(); err != nil {
		rc.logger.Error("failed to set cache entry", zap.Error(err), zap.String("key", entry.Key))
		return fmt.Errorf("failed to set cache entry: %w", err)
	}

	rc.logger.Debug("cache entry set successfully",
		zap.String("key", entry.Key),
		zap.Duration("ttl", entry.TTL))
	return nil
}

// Delete removes entries from the cache
func (rc *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	redisKeys := make([]string, len(keys))
	for i, key := range keys {
		redisKeys[i] = rc.redisKey(key)
	}

	if err := rc.client.Del(ctx, redisKeys...).Err(); err != nil {
		rc.logger.Error("failed to delete cache entries", zap.Error(err), zap.Int("count", len(keys)))
		return fmt.Errorf("failed to delete cache entries: %w", err)
	}

	rc.logger.Debug("cache entries deleted successfully", zap.Int("count", len(keys)))
	return nil
}

// Keys returns every key in the namespace, scanned incrementally
func (rc *RedisCache) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := rc.client.Scan(ctx, 0, rc.config.Namespace+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), rc.config.Namespace))
	}
	if err := iter.Err(); err != nil {
		rc.logger.Error("failed to scan keys", zap.Error(err), zap.String("namespace", rc.config.Namespace))
		return nil, fmt.Errorf("failed to scan keys: %w", err)
	}

	return keys, nil
}

// Clear removes every key in the namespace
func (rc *RedisCache) Clear(ctx context.Context) error {
	keys, err := rc.Keys(ctx)
	if err != nil {
		return err
	}

	for start := 0; start < len(keys); start += scanBatch {
		end := start + scanBatch
		if end > len(keys) {
			end = len(keys)
		}
		if err := rc.Delete(ctx, keys[start:end]...); err != nil {
			return err
		}
	}

	rc.logger.Info("cache cleared successfully", zap.Int("count", len(keys)))
	return nil
}

// Size returns the number of keys in the namespace
func (rc *RedisCache) Size(ctx context.Context) (int64, error) {
	keys, err := rc.Keys(ctx)
	if err != nil {
		return 0, err
	}
	return int64(len(keys)), nil
}

// Ping checks the connection to Redis
func (rc *RedisCache) Ping(ctx context.Context) error {
	if err := rc.client.Ping(ctx).Err(); err != nil {
		rc.logger.Error("ping failed", zap.Error(err))
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// Close closes the connection to Redis
func (rc *RedisCache) Close() error {
	if err := rc.client.Close(); err != nil {
		rc.logger.Error("failed to close Redis connection", zap.Error(err))
		return fmt.Errorf("failed to close Redis connection: %w", err)
	}

	rc.logger.Info("Redis connection closed successfully")
	return nil
}
