package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"recipebox/pkg/models"
)

// LoadFunc produces the payload for a missing key.
type LoadFunc func(ctx context.Context) ([]byte, error)

// Stats is a point-in-time view of the cache counters
type Stats struct {
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
	Loads         uint64 `json:"loads"`
	Errors        uint64 `json:"errors"`
	Invalidations uint64 `json:"invalidations"`
	Size          int64  `json:"size"`
	Suspect       bool   `json:"suspect"`
}

// ResponseCache is a TTL cache of serialized responses in front of the
// document store. It never fails a request: backend errors degrade to misses.
//
// After an invalidation that could not be applied the cache is suspect and
// serves no hits until a full Clear succeeds.
type ResponseCache struct {
	backend Backend
	logger  *zap.Logger
	now     func() time.Time

	group singleflight.Group

	// fence orders load-populated writes against invalidations. Writers of
	// loaded data hold it shared while checking the epoch and storing;
	// invalidations bump the epoch under the exclusive lock.
	fence   sync.RWMutex
	epoch   uint64
	suspect atomic.Bool

	hits          atomic.Uint64
	misses        atomic.Uint64
	loads         atomic.Uint64
	failures      atomic.Uint64
	invalidations atomic.Uint64
}

// Option configures a ResponseCache
type Option func(*ResponseCache)

// WithClock replaces the time source used for expiry decisions
func WithClock(now func() time.Time) Option {
	return func(c *ResponseCache) {
		c.now = now
	}
}

// NewResponseCache creates a cache over backend
func NewResponseCache(backend Backend, logger *zap.Logger, opts ...Option) *ResponseCache {
	c := &ResponseCache{
		backend: backend,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached payload for key if present and unexpired.
// Expired entries are left in place for the caller to refresh.
func (c *ResponseCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c.suspect.Load() {
		c.misses.Add(1)
		return nil, false
	}

	entry, err := c.backend.Get(ctx, key)
	if err != nil {
		c.failures.Add(1)
		c.misses.Add(1)
		c.logger.Warn("cache read failed, treating as miss", zap.Error(err), zap.String("key", key))
		return nil, false
	}

	if entry == nil || entry.IsExpired(c.now()) {
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return entry.Value, true
}

// Set stores value under key for ttl. A non-positive ttl stores nothing.
func (c *ResponseCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		c.logger.Debug("skipping cache write with non-positive ttl", zap.String("key", key))
		return
	}

	data := make([]byte, len(value))
	copy(data, value)

	entry := models.NewCacheEntry(key, data, ttl, c.now())
	if err := c.backend.Set(ctx, entry); err != nil {
		c.failures.Add(1)
		c.logger.Warn("cache write failed", zap.Error(err), zap.String("key", key))
	}
}

// GetOrLoad serves key from the cache or calls load and caches its result.
// Concurrent misses for the same key share one load. The result is not cached
// when ctx was cancelled during the load or when an invalidation ran
// concurrently with it. The boolean reports a cache hit.
func (c *ResponseCache) GetOrLoad(ctx context.Context, key string, ttl time.Duration, load LoadFunc) ([]byte, bool, error) {
	if data, ok := c.Get(ctx, key); ok {
		return data, true, nil
	}

	v, err, shared := c.group.Do(key, func() (interface{}, error) {
		return c.load(ctx, key, ttl, load)
	})
	if err != nil {
		// the request that led the shared load went away; load for this one
		if shared && isContextError(err) && ctx.Err() == nil {
			data, err := c.load(ctx, key, ttl, load)
			return data, false, err
		}
		return nil, false, err
	}

	return v.([]byte), false, nil
}

func (c *ResponseCache) load(ctx context.Context, key string, ttl time.Duration, load LoadFunc) ([]byte, error) {
	c.loads.Add(1)
	start := c.currentEpoch()

	data, err := load(ctx)
	if err != nil {
		return nil, err
	}

	if ctx.Err() != nil {
		c.logger.Debug("request cancelled during load, not caching", zap.String("key", key))
		return data, nil
	}

	c.fence.RLock()
	defer c.fence.RUnlock()

	if c.epoch != start {
		c.logger.Debug("invalidation raced load, not caching", zap.String("key", key))
		return data, nil
	}
	if c.suspect.Load() {
		return data, nil
	}

	c.Set(ctx, key, data, ttl)
	return data, nil
}

func (c *ResponseCache) currentEpoch() uint64 {
	c.fence.RLock()
	defer c.fence.RUnlock()
	return c.epoch
}

func (c *ResponseCache) bumpEpoch() {
	c.fence.Lock()
	c.epoch++
	c.fence.Unlock()
}

// Keys returns a snapshot of the stored keys, expired ones included.
func (c *ResponseCache) Keys(ctx context.Context) ([]string, error) {
	keys, err := c.backend.Keys(ctx)
	if err != nil {
		c.failures.Add(1)
		return nil, fmt.Errorf("failed to list cache keys: %w", err)
	}
	return keys, nil
}

// Invalidate removes every entry whose key satisfies match and returns how
// many were removed. If the removal fails the cache falls back to a full
// Clear; an error is returned only when that fails too, and the cache then
// stays suspect.
func (c *ResponseCache) Invalidate(ctx context.Context, match func(key string) bool) (int, error) {
	c.bumpEpoch()
	c.invalidations.Add(1)

	removed, err := c.invalidate(ctx, match)
	if err == nil {
		return removed, nil
	}

	c.failures.Add(1)
	c.suspect.Store(true)
	c.logger.Warn("cache invalidation failed, clearing cache", zap.Error(err))

	if clearErr := c.Clear(ctx); clearErr != nil {
		return 0, fmt.Errorf("failed to invalidate cache: %w", errors.Join(err, clearErr))
	}
	return removed, nil
}

func (c *ResponseCache) invalidate(ctx context.Context, match func(key string) bool) (int, error) {
	keys, err := c.backend.Keys(ctx)
	if err != nil {
		return 0, err
	}

	var matched []string
	for _, key := range keys {
		if match(key) {
			matched = append(matched, key)
		}
	}
	if len(matched) == 0 {
		return 0, nil
	}

	if err := c.backend.Delete(ctx, matched...); err != nil {
		return 0, err
	}

	c.logger.Debug("cache entries invalidated", zap.Int("count", len(matched)))
	return len(matched), nil
}

// InvalidatePrefix removes every entry whose path lies under one of prefixes
func (c *ResponseCache) InvalidatePrefix(ctx context.Context, prefixes ...string) (int, error) {
	matchers := make([]func(string) bool, len(prefixes))
	for i, prefix := range prefixes {
		matchers[i] = PathPrefix(prefix)
	}

	return c.Invalidate(ctx, func(key string) bool {
		for _, match := range matchers {
			if match(key) {
				return true
			}
		}
		return false
	})
}

// Clear drops every entry. A successful Clear lifts the suspect state.
func (c *ResponseCache) Clear(ctx context.Context) error {
	c.bumpEpoch()

	if err := c.backend.Clear(ctx); err != nil {
		c.failures.Add(1)
		c.suspect.Store(true)
		c.logger.Error("failed to clear cache", zap.Error(err))
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	if c.suspect.Swap(false) {
		c.logger.Info("cache recovered from failed invalidation")
	}
	return nil
}

// FlushExpired sweeps expired entries from backends without native TTL and
// retries recovery of a suspect cache.
func (c *ResponseCache) FlushExpired(ctx context.Context) (int, error) {
	if c.suspect.Load() {
		if err := c.Clear(ctx); err != nil {
			return 0, err
		}
	}

	expirer, ok := c.backend.(Expirer)
	if !ok {
		return 0, nil
	}

	removed, err := expirer.FlushExpired(ctx, c.now())
	if err != nil {
		c.failures.Add(1)
		return 0, fmt.Errorf("failed to flush expired entries: %w", err)
	}
	return removed, nil
}

// Run sweeps expired entries every interval until ctx is done
func (c *ResponseCache) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.FlushExpired(ctx); err != nil {
				c.logger.Warn("cache sweep failed", zap.Error(err))
			}
		}
	}
}

// Counters returns the cache counters without touching the backend
func (c *ResponseCache) Counters() Stats {
	return Stats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Loads:         c.loads.Load(),
		Errors:        c.failures.Load(),
		Invalidations: c.invalidations.Load(),
		Suspect:       c.suspect.Load(),
	}
}

// Stats returns the cache counters and current size
func (c *ResponseCache) Stats(ctx context.Context) Stats {
	stats := c.Counters()

	size, err := c.backend.Size(ctx)
	if err != nil {
		c.logger.Warn("failed to get cache size", zap.Error(err))
		size = -1
	}
	stats.Size = size

	return stats
}

// Ping checks the backend
func (c *ResponseCache) Ping(ctx context.Context) error {
	return c.backend.Ping(ctx)
}

// Shutdown flushes the cache and releases the backend
func (c *ResponseCache) Shutdown(ctx context.Context) error {
	clearErr := c.Clear(ctx)
	if err := c.backend.Close(); err != nil {
		return errors.Join(clearErr, err)
	}
	return clearErr
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
