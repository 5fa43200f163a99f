// Package store defines the document store port consumed by the reconciler
// and the HTTP handlers. Adapters live in the memory and postgres subpackages.
package store

import (
	"context"
	"errors"
	"strings"

	"recipebox/pkg/models"
)

var (
	// ErrNotFound indicates the requested document does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a uniqueness constraint rejected an insert.
	ErrAlreadyExists = errors.New("already exists")

	// ErrStoreUnavailable indicates the store cannot serve requests right now.
	// It is never retried by this service.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Store is the document store. Every method is atomic at the document level;
// the conditional writes (ToggleFavorite, InsertReview, InsertGroceryItem,
// ToggleGroceryPurchased) are atomic with respect to concurrent writers of the
// same owner/target pair.
type Store interface {
	ListRecipes(ctx context.Context, filter models.RecipeFilter) ([]models.Recipe, int64, error)
	GetRecipe(ctx context.Context, id string) (*models.Recipe, error)
	CreateRecipe(ctx context.Context, recipe *models.Recipe) error
	UpdateRecipe(ctx context.Context, recipe *models.Recipe) error
	// DeleteRecipe also removes the recipe's favorites and reviews.
	DeleteRecipe(ctx context.Context, id string) error

	ListCatalog(ctx context.Context, kind models.CatalogKind) ([]models.CatalogItem, error)
	FindCatalogByName(ctx context.Context, kind models.CatalogKind, name string) (*models.CatalogItem, error)
	CreateCatalogItem(ctx context.Context, item *models.CatalogItem) error

	// ToggleFavorite removes recipeID from the owner's favorites if present,
	// otherwise adds it, and reports whether it was added.
	ToggleFavorite(ctx context.Context, ownerID, recipeID string) (bool, error)
	ListFavorites(ctx context.Context, ownerID string) ([]string, error)

	// InsertReview fails with ErrAlreadyExists when the author already
	// reviewed the recipe.
	InsertReview(ctx context.Context, review *models.Review) error
	// UpdateReview rewrites rating and comment of the author's review and
	// fills in the stored ID and CreatedAt.
	UpdateReview(ctx context.Context, review *models.Review) error
	DeleteReview(ctx context.Context, recipeID, authorID string) (bool, error)
	ListReviews(ctx context.Context, recipeID string) ([]models.Review, error)
	RatingSummary(ctx context.Context, recipeID string) (models.RatingSummary, error)

	// InsertGroceryItem fails with ErrAlreadyExists for a duplicate
	// (owner, ingredient, recipe).
	InsertGroceryItem(ctx context.Context, item *models.GroceryListItem) error
	ToggleGroceryPurchased(ctx context.Context, ownerID, itemID string) (*models.GroceryListItem, error)
	DeleteGroceryItem(ctx context.Context, ownerID, itemID string) (bool, error)
	ListGroceryItems(ctx context.Context, ownerID string) ([]models.GroceryListItem, error)

	Stats(ctx context.Context) (*models.Stats, error)

	Ping(ctx context.Context) error
	Close() error
}

// CatalogNameMatches is the catalog matching rule: exact name equality,
// ignoring case and surrounding whitespace. Names are unique per kind under
// this rule, so a lookup matches at most one item.
func CatalogNameMatches(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// TopRecipesLimit is how many recipes Stats ranks by favorites.
const TopRecipesLimit = 5
