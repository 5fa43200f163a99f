package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"recipebox/pkg/models"
)

// MemoryCache is an unbounded in-process backend. Expired entries stay until
// they are overwritten, deleted or swept by FlushExpired.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*models.CacheEntry
	logger  *zap.Logger
}

// NewMemoryCache creates an empty in-process backend
func NewMemoryCache(logger *zap.Logger) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]*models.CacheEntry),
		logger:  logger,
	}
}

func (mc *MemoryCache) Get(_ context.Context, key string) (*models.CacheEntry, error) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.entries[key], nil
}

func (mc *MemoryCache) Set(_ context.Context, entry *models.CacheEntry) error {
	mc.mu.Lock()
	mc.entries[entry.Key] = entry
	mc.mu.Unlock()
	return nil
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	for _, key := range keys {
		delete(mc.entries, key)
	}
	mc.mu.Unlock()
	return nil
}

func (mc *MemoryCache) Keys(_ context.Context) ([]string, error) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	keys := make([]string, 0, len(mc.entries))
	for key := range mc.entries {
		keys = append(keys, key)
	}
	return keys, nil
}

func (mc *MemoryCache) Clear(_ context.Context) error {
	mc.mu.Lock()
	mc.entries = make(map[string]*models.CacheEntry)
	mc.mu.Unlock()
	return nil
}

func (mc *MemoryCache) Size(_ context.Context) (int64, error) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return int64(len(mc.entries)), nil
}

// FlushExpired removes every entry expired at now and returns how many were removed
func (mc *MemoryCache) FlushExpired(_ context.Context, now time.Time) (int, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	removed := 0
	for key, entry := range mc.entries {
		if entry.IsExpired(now) {
			delete(mc.entries, key)
			removed++
		}
	}
	if removed > 0 {
		mc.logger.Debug("expired cache entries flushed", zap.Int("count", removed))
	}
	return removed, nil
}

func (mc *MemoryCache) Ping(context.Context) error { return nil }

func (mc *MemoryCache) Close() error { return nil }
