// Package handlers implements the recipebox HTTP API on gin.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"recipebox/internal/cache"
	"recipebox/internal/middleware"
	"recipebox/internal/reconciler"
	"recipebox/internal/store"
)

// Config holds the cache lifetimes of the read endpoints
type Config struct {
	BasePath   string
	ListingTTL time.Duration
	DetailTTL  time.Duration
	StatsTTL   time.Duration
}

// API serves the recipebox routes
type API struct {
	store      store.Store
	reconciler *reconciler.Reconciler
	cache      *cache.ResponseCache
	config     Config
	logger     *zap.Logger
}

// NewAPI creates the API handlers
func NewAPI(st store.Store, rec *reconciler.Reconciler, rc *cache.ResponseCache, config Config, logger *zap.Logger) *API {
	if config.BasePath == "" {
		config.BasePath = "/api/v1"
	}
	registerValidators(logger)

	return &API{
		store:      st,
		reconciler: rec,
		cache:      rc,
		config:     config,
		logger:     logger,
	}
}

var registerOnce sync.Once

// registerValidators adds the "quantity" tag to gin's validator
func registerValidators(logger *zap.Logger) {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			logger.Warn("gin validator is not go-playground/validator, quantity tag unavailable")
			return
		}
		err := v.RegisterValidation("quantity", func(fl validator.FieldLevel) bool {
			_, err := reconciler.ValidateQuantity(fl.Field().String())
			return err == nil
		})
		if err != nil {
			logger.Error("failed to register quantity validator", zap.Error(err))
		}
	})
}

// Register mounts every route on router
func (a *API) Register(router gin.IRouter) {
	router.GET("/health", a.Health)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	api := router.Group(a.config.BasePath)
	{
		recipes := api.Group("/recipes")
		{
			recipes.GET("", a.ListRecipes)
			recipes.GET("/:id", a.GetRecipe)
			recipes.GET("/:id/reviews", a.ListReviews)

			owned := recipes.Group("", middleware.Identity())
			owned.POST("", a.CreateRecipe)
			owned.PUT("/:id", a.UpdateRecipe)
			owned.DELETE("/:id", a.DeleteRecipe)
			owned.POST("/:id/reviews", a.CreateReview)
			owned.PUT("/:id/reviews", a.UpdateReview)
			owned.DELETE("/:id/reviews", a.DeleteReview)
		}

		for route, kind := range catalogRoutes {
			group := api.Group("/" + route)
			group.GET("", a.ListCatalog(kind))
			group.POST("", middleware.Identity(), a.CreateCatalogItem(route, kind))
		}

		favorites := api.Group("/favorites", middleware.Identity())
		{
			favorites.GET("", a.ListFavorites)
			favorites.POST("/:recipeId/toggle", a.ToggleFavorite)
		}

		grocery := api.Group("/grocery", middleware.Identity())
		{
			grocery.GET("", a.ListGroceryItems)
			grocery.POST("", a.AddGroceryItem)
			grocery.POST("/:id/toggle", a.ToggleGroceryItem)
			grocery.DELETE("/:id", a.RemoveGroceryItem)
		}

		admin := api.Group("/admin")
		{
			admin.GET("/stats", a.Stats)

			cacheAdmin := admin.Group("/cache", middleware.Identity())
			cacheAdmin.GET("/keys", a.CacheKeys)
			cacheAdmin.GET("/stats", a.CacheStats)
			cacheAdmin.DELETE("", a.ClearCache)
		}
	}
}

// serveCached answers from the response cache, calling load on a miss
func (a *API) serveCached(c *gin.Context, ttl time.Duration, load func(ctx context.Context) (interface{}, error)) {
	key := cache.BuildKey(c.Request.Method, c.Request.URL.Path, c.Request.URL.Query())

	data, hit, err := a.cache.GetOrLoad(c.Request.Context(), key, ttl, func(ctx context.Context) ([]byte, error) {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		a.fail(c, "failed to load "+c.FullPath(), err)
		return
	}

	if hit {
		c.Header("X-Cache", "HIT")
	} else {
		c.Header("X-Cache", "MISS")
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

// invalidate drops cached reads under the given routes after a write
func (a *API) invalidate(ctx context.Context, routes ...string) {
	prefixes := make([]string, len(routes))
	for i, r := range routes {
		prefixes[i] = a.config.BasePath + r
	}
	if _, err := a.cache.InvalidatePrefix(ctx, prefixes...); err != nil {
		a.logger.Error("failed to invalidate cache after write", zap.Error(err), zap.Strings("prefixes", prefixes))
	}
}

// statusOf maps domain errors to HTTP status codes
func statusOf(err error) int {
	var (
		verrs  validator.ValidationErrors
		reqErr *requestError
	)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, reconciler.ErrInvalidFormat), errors.As(err, &verrs), errors.As(err, &reqErr):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the error response for err. Client errors carry the error
// text; server errors only msg.
func (a *API) fail(c *gin.Context, msg string, err error) {
	status := statusOf(err)
	fields := []zap.Field{
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
		zap.String("request_id", c.GetString(middleware.RequestIDKey)),
	}

	if status >= http.StatusInternalServerError {
		a.logger.Error(msg, fields...)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	a.logger.Debug(msg, fields...)
	c.JSON(status, gin.H{"error": err.Error()})
}

// bind decodes the JSON body into req and runs its binding rules
func (a *API) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		a.logger.Warn("invalid request body", zap.Error(err), zap.String("path", c.Request.URL.Path))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// writeContext detaches a write from client cancellation
func writeContext(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}
