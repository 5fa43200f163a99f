package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"recipebox/internal/cache"
)

// Stats handles GET /admin/stats
func (a *API) Stats(c *gin.Context) {
	a.serveCached(c, a.config.StatsTTL, func(ctx context.Context) (interface{}, error) {
		return a.store.Stats(ctx)
	})
}

// CacheKeys handles GET /admin/cache/keys. The optional prefix query narrows
// the listing to keys under a path.
func (a *API) CacheKeys(c *gin.Context) {
	keys, err := a.cache.Keys(c.Request.Context())
	if err != nil {
		a.logger.Error("failed to get keys", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get keys"})
		return
	}

	prefix := c.Query("prefix")
	if prefix != "" {
		match := cache.PathPrefix(prefix)
		filtered := keys[:0]
		for _, key := range keys {
			if match(key) {
				filtered = append(filtered, key)
			}
		}
		keys = filtered
	}
	if keys == nil {
		keys = []string{}
	}
	sort.Strings(keys)

	c.JSON(http.StatusOK, gin.H{
		"keys":   keys,
		"count":  len(keys),
		"prefix": prefix,
	})
}

// CacheStats handles GET /admin/cache/stats
func (a *API) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, a.cache.Stats(c.Request.Context()))
}

// ClearCache handles DELETE /admin/cache
func (a *API) ClearCache(c *gin.Context) {
	if err := a.cache.Clear(writeContext(c)); err != nil {
		a.logger.Error("failed to clear cache", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear cache"})
		return
	}

	a.logger.Info("cache cleared via API")
	c.JSON(http.StatusOK, gin.H{"message": "cache cleared successfully"})
}

// Health handles GET /health. The cache is optional for serving, so only a
// store failure makes the service unhealthy.
func (a *API) Health(c *gin.Context) {
	ctx := c.Request.Context()

	cacheStatus := "ok"
	if err := a.cache.Ping(ctx); err != nil {
		a.logger.Warn("cache health check failed", zap.Error(err))
		cacheStatus = "degraded"
	}

	if err := a.store.Ping(ctx); err != nil {
		a.logger.Error("health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"store":  "unavailable",
			"cache":  cacheStatus,
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"store":     "ok",
		"cache":     cacheStatus,
		"timestamp": time.Now(),
	})
}
