package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"recipebox/pkg/models"
)

// BreakerConfig configures the circuit breaker around the store
type BreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	MaxRequests      uint32        `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold float64       `mapstructure:"failure_threshold"`
	MinRequests      uint32        `mapstructure:"min_requests"`
}

// DefaultBreakerConfig returns the default breaker configuration
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Enabled:          true,
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// Guarded decorates a Store with a circuit breaker. While the breaker is open
// every call fails fast with ErrStoreUnavailable. Domain outcomes (not found,
// already exists) and cancelled requests do not count as failures.
type Guarded struct {
	next Store
	cb   *gobreaker.CircuitBreaker
}

// NewGuarded wraps next. onStateChange may be nil.
func NewGuarded(next Store, config BreakerConfig, logger *zap.Logger, onStateChange func(from, to string)) *Guarded {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "document-store",
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= config.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("store circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			if onStateChange != nil {
				onStateChange(from.String(), to.String())
			}
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrNotFound) ||
				errors.Is(err, ErrAlreadyExists) ||
				errors.Is(err, context.Canceled)
		},
	})

	return &Guarded{next: next, cb: cb}
}

// State returns the breaker state name
func (g *Guarded) State() string {
	return g.cb.State().String()
}

func guard[T any](g *Guarded, fn func() (T, error)) (T, error) {
	v, err := g.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		var zero T
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		return zero, err
	}
	return v.(T), nil
}

func guardErr(g *Guarded, fn func() error) error {
	_, err := guard(g, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

type recipePage struct {
	recipes []models.Recipe
	total   int64
}

func (g *Guarded) ListRecipes(ctx context.Context, filter models.RecipeFilter) ([]models.Recipe, int64, error) {
	page, err := guard(g, func() (recipePage, error) {
		recipes, total, err := g.next.ListRecipes(ctx, filter)
		return recipePage{recipes: recipes, total: total}, err
	})
	return page.recipes, page.total, err
}

func (g *Guarded) GetRecipe(ctx context.Context, id string) (*models.Recipe, error) {
	return guard(g, func() (*models.Recipe, error) { return g.next.GetRecipe(ctx, id) })
}

func (g *Guarded) CreateRecipe(ctx context.Context, recipe *models.Recipe) error {
	return guardErr(g, func() error { return g.next.CreateRecipe(ctx, recipe) })
}

func (g *Guarded) UpdateRecipe(ctx context.Context, recipe *models.Recipe) error {
	return guardErr(g, func() error { return g.next.UpdateRecipe(ctx, recipe) })
}

func (g *Guarded) DeleteRecipe(ctx context.Context, id string) error {
	return guardErr(g, func() error { return g.next.DeleteRecipe(ctx, id) })
}

func (g *Guarded) ListCatalog(ctx context.Context, kind models.CatalogKind) ([]models.CatalogItem, error) {
	return guard(g, func() ([]models.CatalogItem, error) { return g.next.ListCatalog(ctx, kind) })
}

func (g *Guarded) FindCatalogByName(ctx context.Context, kind models.CatalogKind, name string) (*models.CatalogItem, error) {
	return guard(g, func() (*models.CatalogItem, error) { return g.next.FindCatalogByName(ctx, kind, name) })
}

func (g *Guarded) CreateCatalogItem(ctx context.Context, item *models.CatalogItem) error {
	return guardErr(g, func() error { return g.next.CreateCatalogItem(ctx, item) })
}

func (g *Guarded) ToggleFavorite(ctx context.Context, ownerID, recipeID string) (bool, error) {
	return guard(g, func() (bool, error) { return g.next.ToggleFavorite(ctx, ownerID, recipeID) })
}

func (g *Guarded) ListFavorites(ctx context.Context, ownerID string) ([]string, error) {
	return guard(g, func() ([]string, error) { return g.next.ListFavorites(ctx, ownerID) })
}

func (g *Guarded) InsertReview(ctx context.Context, review *models.Review) error {
	return guardErr(g, func() error { return g.next.InsertReview(ctx, review) })
}

func (g *Guarded) UpdateReview(ctx context.Context, review *models.Review) error {
	return guardErr(g, func() error { return g.next.UpdateReview(ctx, review) })
}

func (g *Guarded) DeleteReview(ctx context.Context, recipeID, authorID string) (bool, error) {
	return guard(g, func() (bool, error) { return g.next.DeleteReview(ctx, recipeID, authorID) })
}

func (g *Guarded) ListReviews(ctx context.Context, recipeID string) ([]models.Review, error) {
	return guard(g, func() ([]models.Review, error) { return g.next.ListReviews(ctx, recipeID) })
}

func (g *Guarded) RatingSummary(ctx context.Context, recipeID string) (models.RatingSummary, error) {
	return guard(g, func() (models.RatingSummary, error) { return g.next.RatingSummary(ctx, recipeID) })
}

func (g *Guarded) InsertGroceryItem(ctx context.Context, item *models.GroceryListItem) error {
	return guardErr(g, func() error { return g.next.InsertGroceryItem(ctx, item) })
}

func (g *Guarded) ToggleGroceryPurchased(ctx context.Context, ownerID, itemID string) (*models.GroceryListItem, error) {
	return guard(g, func() (*models.GroceryListItem, error) { return g.next.ToggleGroceryPurchased(ctx, ownerID, itemID) })
}

func (g *Guarded) DeleteGroceryItem(ctx context.Context, ownerID, itemID string) (bool, error) {
	return guard(g, func() (bool, error) { return g.next.DeleteGroceryItem(ctx, ownerID, itemID) })
}

func (g *Guarded) ListGroceryItems(ctx context.Context, ownerID string) ([]models.GroceryListItem, error) {
	return guard(g, func() ([]models.GroceryListItem, error) { return g.next.ListGroceryItems(ctx, ownerID) })
}

func (g *Guarded) Stats(ctx context.Context) (*models.Stats, error) {
	return guard(g, func() (*models.Stats, error) { return g.next.Stats(ctx) })
}

func (g *Guarded) Ping(ctx context.Context) error {
	return guardErr(g, func() error { return g.next.Ping(ctx) })
}

func (g *Guarded) Close() error {
	return g.next.Close()
}
