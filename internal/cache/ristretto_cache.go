package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"go.uber.org/zap"

	"recipebox/pkg/models"
)

// RistrettoCache is a bounded in-process backend on top of ristretto.
// Ristretto cannot enumerate its keys, so the backend keeps an index of
// key -> expiry, pruned through the eviction and rejection callbacks.
// Admission may drop a Set; that only costs a later miss.
type RistrettoCache struct {
	c      *ristretto.Cache[string, *models.CacheEntry]
	logger *zap.Logger

	// never held while calling into ristretto: its callbacks take it too
	mu    sync.Mutex
	index map[string]time.Time
}

// NewRistrettoCache creates a ristretto-backed cache. MaxCost is the total
// size of cached payloads in bytes.
func NewRistrettoCache(config *RistrettoConfig, logger *zap.Logger) (*RistrettoCache, error) {
	if config == nil {
		config = &DefaultCacheConfig().Ristretto
	}

	rc := &RistrettoCache{
		logger: logger,
		index:  make(map[string]time.Time),
	}

	counters := config.NumCounters
	if counters <= 0 {
		counters = config.MaxCost / 100 * 10
	}

	c, err := ristretto.NewCache(&ristretto.Config[string, *models.CacheEntry]{
		NumCounters: counters,
		MaxCost:     config.MaxCost,
		BufferItems: 64,
		OnEvict:     rc.forget,
		OnReject:    rc.forget,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ristretto cache: %w", err)
	}
	rc.c = c

	return rc, nil
}

// forget drops an index entry, unless a newer Set for the key replaced it.
func (rc *RistrettoCache) forget(item *ristretto.Item[*models.CacheEntry]) {
	if item == nil || item.Value == nil {
		return
	}
	rc.mu.Lock()
	if exp, ok := rc.index[item.Value.Key]; ok && exp.Equal(item.Value.ExpiresAt) {
		delete(rc.index, item.Value.Key)
	}
	rc.mu.Unlock()
}

func (rc *RistrettoCache) Get(_ context.Context, key string) (*models.CacheEntry, error) {
	entry, found := rc.c.Get(key)
	if !found {
		return nil, nil
	}
	return entry, nil
}

func (rc *RistrettoCache) Set(_ context.Context, entry *models.CacheEntry) error {
	rc.mu.Lock()
	rc.index[entry.Key] = entry.ExpiresAt
	rc.mu.Unlock()

	cost := int64(len(entry.Key) + len(entry.Value))
	if !rc.c.SetWithTTL(entry.Key, entry, cost, entry.TTL) {
		rc.forget(&ristretto.Item[*models.CacheEntry]{Value: entry})
		rc.logger.Debug("ristretto dropped cache entry", zap.String("key", entry.Key))
		return nil
	}

	// make the write visible to the next Get
	rc.c.Wait()
	return nil
}

func (rc *RistrettoCache) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		rc.c.Del(key)
	}

	rc.mu.Lock()
	for _, key := range keys {
		delete(rc.index, key)
	}
	rc.mu.Unlock()

	rc.c.Wait()
	return nil
}

func (rc *RistrettoCache) Keys(_ context.Context) ([]string, error) {
	now := time.Now()

	rc.mu.Lock()
	defer rc.mu.Unlock()

	keys := make([]string, 0, len(rc.index))
	for key, exp := range rc.index {
		if !now.Before(exp) {
			delete(rc.index, key)
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (rc *RistrettoCache) Clear(_ context.Context) error {
	rc.c.Clear()

	rc.mu.Lock()
	rc.index = make(map[string]time.Time)
	rc.mu.Unlock()
	return nil
}

func (rc *RistrettoCache) Size(ctx context.Context) (int64, error) {
	keys, err := rc.Keys(ctx)
	if err != nil {
		return 0, err
	}
	return int64(len(keys)), nil
}

func (rc *RistrettoCache) Ping(context.Context) error { return nil }

func (rc *RistrettoCache) Close() error {
	rc.c.Close()
	rc.logger.Info("ristretto cache closed")
	return nil
}
