// Package reconciler owns the user-driven toggle state: favorites, the
// one-review-per-author rule and the grocery list. Every write goes through
// an atomic store primitive and then invalidates the cached reads it affects.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"path"

	"go.uber.org/zap"

	"recipebox/internal/store"
	"recipebox/pkg/models"
)

// ToggleResult reports what a membership toggle did
type ToggleResult string

const (
	Added   ToggleResult = "added"
	Removed ToggleResult = "removed"
)

// Outcome reports what a review write did
type Outcome string

const (
	Created  Outcome = "created"
	Updated  Outcome = "updated"
	Rejected Outcome = "rejected"
)

// Mode selects between creating a review and updating the existing one
type Mode int

const (
	// ModeCreate never overwrites an existing review
	ModeCreate Mode = iota
	// ModeUpdate rewrites the author's existing review
	ModeUpdate
)

// ReviewInput is the caller-supplied part of a review
type ReviewInput struct {
	Rating  int
	Comment string
}

// GroceryInput describes an ingredient being added to a grocery list
type GroceryInput struct {
	IngredientID string
	RecipeID     string
	Quantity     string
}

// Invalidator drops cached responses under the given path prefixes
type Invalidator interface {
	InvalidatePrefix(ctx context.Context, prefixes ...string) (int, error)
}

// Recorder counts reconciler writes by operation and outcome
type Recorder interface {
	RecordToggle(operation, outcome string)
}

// Reconciler applies toggle-state writes to the store
type Reconciler struct {
	store       store.Store
	invalidator Invalidator
	logger      *zap.Logger
	recorder    Recorder
	basePath    string
}

// Option configures a Reconciler
type Option func(*Reconciler)

// WithRecorder reports every write to r
func WithRecorder(r Recorder) Option {
	return func(rc *Reconciler) {
		rc.recorder = r
	}
}

// WithBasePath sets the route prefix of the cached API, "/api/v1" by default
func WithBasePath(p string) Option {
	return func(rc *Reconciler) {
		rc.basePath = p
	}
}

// New creates a reconciler
func New(st store.Store, invalidator Invalidator, logger *zap.Logger, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:       st,
		invalidator: invalidator,
		logger:      logger,
		basePath:    "/api/v1",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reconciler) route(p string) string {
	return path.Join(r.basePath, p)
}

// invalidate runs after a committed write. A failure leaves the cache
// suspect, which already stops it serving stale hits, so the write still
// succeeds.
func (r *Reconciler) invalidate(ctx context.Context, routes ...string) {
	prefixes := make([]string, len(routes))
	for i, p := range routes {
		prefixes[i] = r.route(p)
	}

	if _, err := r.invalidator.InvalidatePrefix(ctx, prefixes...); err != nil {
		r.logger.Error("failed to invalidate cache after write",
			zap.Error(err),
			zap.Strings("prefixes", prefixes),
		)
	}
}

func (r *Reconciler) record(operation, outcome string) {
	if r.recorder != nil {
		r.recorder.RecordToggle(operation, outcome)
	}
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, store.ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrInvalidFormat):
		return "invalid"
	default:
		return "error"
	}
}

// ToggleMembership adds recipeID to the owner's favorites if absent and
// removes it otherwise.
func (r *Reconciler) ToggleMembership(ctx context.Context, ownerID, recipeID string) (ToggleResult, error) {
	ctx = context.WithoutCancel(ctx)

	added, err := r.store.ToggleFavorite(ctx, ownerID, recipeID)
	if err != nil {
		r.record("favorite", outcomeOf(err))
		return "", fmt.Errorf("failed to toggle favorite: %w", err)
	}

	result := Removed
	if added {
		result = Added
	}
	r.record("favorite", string(result))

	r.invalidate(ctx, "/admin/stats")

	r.logger.Debug("favorite toggled",
		zap.String("owner_id", ownerID),
		zap.String("recipe_id", recipeID),
		zap.String("result", string(result)),
	)
	return result, nil
}

// ListFavorites returns the recipe ids the owner favorited
func (r *Reconciler) ListFavorites(ctx context.Context, ownerID string) ([]string, error) {
	ids, err := r.store.ListFavorites(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	return ids, nil
}

// UpsertReview writes the author's review of a recipe. ModeCreate fails with
// store.ErrAlreadyExists (outcome Rejected) when the author already reviewed
// the recipe; ModeUpdate fails with store.ErrNotFound when they did not.
func (r *Reconciler) UpsertReview(ctx context.Context, recipeID, authorID string, in ReviewInput, mode Mode) (*models.Review, Outcome, error) {
	if in.Rating < 1 || in.Rating > 5 {
		r.record("review", "invalid")
		return nil, "", fmt.Errorf("rating %d must be between 1 and 5: %w", in.Rating, ErrInvalidFormat)
	}

	ctx = context.WithoutCancel(ctx)

	review := &models.Review{
		RecipeID: recipeID,
		AuthorID: authorID,
		Rating:   in.Rating,
		Comment:  in.Comment,
	}

	var (
		outcome Outcome
		err     error
	)
	switch mode {
	case ModeCreate:
		outcome = Created
		err = r.store.InsertReview(ctx, review)
	case ModeUpdate:
		outcome = Updated
		err = r.store.UpdateReview(ctx, review)
	default:
		return nil, "", fmt.Errorf("unknown review mode %d", mode)
	}

	if err != nil {
		r.record("review", outcomeOf(err))
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, Rejected, fmt.Errorf("failed to create review: %w", err)
		}
		return nil, "", fmt.Errorf("failed to write review: %w", err)
	}
	r.record("review", string(outcome))

	r.invalidate(ctx, "/recipes", "/admin/stats")

	r.logger.Debug("review written",
		zap.String("recipe_id", recipeID),
		zap.String("author_id", authorID),
		zap.String("outcome", string(outcome)),
	)
	return review, outcome, nil
}

// RemoveReview deletes the author's review of a recipe. A missing review is
// reported as removed=false, not as an error.
func (r *Reconciler) RemoveReview(ctx context.Context, recipeID, authorID string) (bool, error) {
	ctx = context.WithoutCancel(ctx)

	removed, err := r.store.DeleteReview(ctx, recipeID, authorID)
	if err != nil {
		r.record("review_remove", outcomeOf(err))
		return false, fmt.Errorf("failed to remove review: %w", err)
	}

	if !removed {
		r.record("review_remove", "not_found")
		return false, nil
	}
	r.record("review_remove", "removed")

	r.invalidate(ctx, "/recipes", "/admin/stats")
	return true, nil
}

// AddGroceryItem validates the quantity and puts the ingredient on the
// owner's grocery list. The same ingredient from the same recipe can only be
// listed once.
func (r *Reconciler) AddGroceryItem(ctx context.Context, ownerID string, in GroceryInput) (*models.GroceryListItem, error) {
	quantity, err := ValidateQuantity(in.Quantity)
	if err != nil {
		r.record("grocery_add", "invalid")
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)

	if in.RecipeID != "" {
		if _, err := r.store.GetRecipe(ctx, in.RecipeID); err != nil {
			r.record("grocery_add", outcomeOf(err))
			return nil, fmt.Errorf("failed to add grocery item: %w", err)
		}
	}

	item := &models.GroceryListItem{
		OwnerID:      ownerID,
		IngredientID: in.IngredientID,
		RecipeID:     in.RecipeID,
		Quantity:     quantity,
	}
	if err := r.store.InsertGroceryItem(ctx, item); err != nil {
		r.record("grocery_add", outcomeOf(err))
		return nil, fmt.Errorf("failed to add grocery item: %w", err)
	}
	r.record("grocery_add", "created")

	r.invalidate(ctx, "/admin/stats")
	return item, nil
}

// ToggleGroceryPurchased flips the purchased flag of one of the owner's items
func (r *Reconciler) ToggleGroceryPurchased(ctx context.Context, ownerID, itemID string) (*models.GroceryListItem, error) {
	ctx = context.WithoutCancel(ctx)

	item, err := r.store.ToggleGroceryPurchased(ctx, ownerID, itemID)
	if err != nil {
		r.record("grocery_toggle", outcomeOf(err))
		return nil, fmt.Errorf("failed to toggle grocery item: %w", err)
	}

	if item.Purchased {
		r.record("grocery_toggle", "purchased")
	} else {
		r.record("grocery_toggle", "unpurchased")
	}

	r.invalidate(ctx, "/admin/stats")
	return item, nil
}

// RemoveGroceryItem deletes one of the owner's items. Removing an unknown
// item is not an error.
func (r *Reconciler) RemoveGroceryItem(ctx context.Context, ownerID, itemID string) (bool, error) {
	ctx = context.WithoutCancel(ctx)

	removed, err := r.store.DeleteGroceryItem(ctx, ownerID, itemID)
	if err != nil {
		r.record("grocery_remove", outcomeOf(err))
		return false, fmt.Errorf("failed to remove grocery item: %w", err)
	}

	if !removed {
		r.record("grocery_remove", "not_found")
		return false, nil
	}
	r.record("grocery_remove", "removed")

	r.invalidate(ctx, "/admin/stats")
	return true, nil
}

// ListGroceryItems returns the owner's grocery list
func (r *Reconciler) ListGroceryItems(ctx context.Context, ownerID string) ([]models.GroceryListItem, error) {
	items, err := r.store.ListGroceryItems(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list grocery items: %w", err)
	}
	return items, nil
}
