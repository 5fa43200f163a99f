// Package memory implements the document store in process memory. A single
// lock makes every operation, the conditional writes included, atomic.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"recipebox/internal/store"
	"recipebox/pkg/models"
)

// Store is an in-memory document store
type Store struct {
	mu sync.RWMutex

	recipes   map[string]models.Recipe
	catalog   map[models.CatalogKind]map[string]models.CatalogItem
	favorites map[string]map[string]struct{}               // owner -> recipe ids
	reviews   map[string]map[string]models.Review          // recipe -> author -> review
	grocery   map[string]map[string]models.GroceryListItem // owner -> item id -> item

	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// New creates an empty store
func New() *Store {
	return &Store{
		recipes:   make(map[string]models.Recipe),
		catalog:   make(map[models.CatalogKind]map[string]models.CatalogItem),
		favorites: make(map[string]map[string]struct{}),
		reviews:   make(map[string]map[string]models.Review),
		grocery:   make(map[string]map[string]models.GroceryListItem),
		now:       time.Now,
	}
}

func cloneRecipe(r models.Recipe) models.Recipe {
	r.Ingredients = append(make([]models.RecipeIngredient, 0, len(r.Ingredients)), r.Ingredients...)
	return r
}

func matchesFilter(r models.Recipe, f models.RecipeFilter) bool {
	if f.Query != "" && !strings.Contains(strings.ToLower(r.Title), strings.ToLower(f.Query)) {
		return false
	}
	if f.CategoryID != "" && r.CategoryID != f.CategoryID {
		return false
	}
	if f.Area != "" && !strings.EqualFold(r.Area, f.Area) {
		return false
	}
	if f.OwnerID != "" && r.OwnerID != f.OwnerID {
		return false
	}
	if f.IngredientID != "" {
		found := false
		for _, ing := range r.Ingredients {
			if ing.IngredientID == f.IngredientID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (s *Store) ListRecipes(_ context.Context, filter models.RecipeFilter) ([]models.Recipe, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []models.Recipe
	for _, r := range s.recipes {
		if matchesFilter(r, filter) {
			matched = append(matched, r)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := int64(len(matched))
	offset := filter.Offset()
	if offset >= len(matched) {
		return []models.Recipe{}, total, nil
	}
	matched = matched[offset:]
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	result := make([]models.Recipe, len(matched))
	for i, r := range matched {
		result[i] = cloneRecipe(r)
	}
	return result, total, nil
}

func (s *Store) GetRecipe(_ context.Context, id string) (*models.Recipe, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.recipes[id]
	if !ok {
		return nil, fmt.Errorf("get recipe %s: %w", id, store.ErrNotFound)
	}
	r = cloneRecipe(r)
	return &r, nil
}

func (s *Store) CreateRecipe(_ context.Context, recipe *models.Recipe) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if recipe.ID == "" {
		recipe.ID = uuid.NewString()
	}
	if _, ok := s.recipes[recipe.ID]; ok {
		return fmt.Errorf("create recipe %s: %w", recipe.ID, store.ErrAlreadyExists)
	}

	if recipe.Ingredients == nil {
		recipe.Ingredients = []models.RecipeIngredient{}
	}
	now := s.now()
	recipe.CreatedAt = now
	recipe.UpdatedAt = now
	s.recipes[recipe.ID] = cloneRecipe(*recipe)
	return nil
}

func (s *Store) UpdateRecipe(_ context.Context, recipe *models.Recipe) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.recipes[recipe.ID]
	if !ok {
		return fmt.Errorf("update recipe %s: %w", recipe.ID, store.ErrNotFound)
	}

	if recipe.Ingredients == nil {
		recipe.Ingredients = []models.RecipeIngredient{}
	}
	recipe.OwnerID = existing.OwnerID
	recipe.CreatedAt = existing.CreatedAt
	recipe.UpdatedAt = s.now()
	s.recipes[recipe.ID] = cloneRecipe(*recipe)
	return nil
}

func (s *Store) DeleteRecipe(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.recipes[id]; !ok {
		return fmt.Errorf("delete recipe %s: %w", id, store.ErrNotFound)
	}

	delete(s.recipes, id)
	delete(s.reviews, id)
	for _, set := range s.favorites {
		delete(set, id)
	}
	return nil
}

func (s *Store) ListCatalog(_ context.Context, kind models.CatalogKind) ([]models.CatalogItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]models.CatalogItem, 0, len(s.catalog[kind]))
	for _, item := range s.catalog[kind] {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name)
	})
	return items, nil
}

func (s *Store) FindCatalogByName(_ context.Context, kind models.CatalogKind, name string) (*models.CatalogItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, item := range s.catalog[kind] {
		if store.CatalogNameMatches(item.Name, name) {
			found := item
			return &found, nil
		}
	}
	return nil, fmt.Errorf("find %s %q: %w", kind, name, store.ErrNotFound)
}

func (s *Store) CreateCatalogItem(_ context.Context, item *models.CatalogItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, ok := s.catalog[item.Kind]
	if !ok {
		items = make(map[string]models.CatalogItem)
		s.catalog[item.Kind] = items
	}
	for _, existing := range items {
		if store.CatalogNameMatches(existing.Name, item.Name) {
			return fmt.Errorf("create %s %q: %w", item.Kind, item.Name, store.ErrAlreadyExists)
		}
	}

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.Name = strings.TrimSpace(item.Name)
	items[item.ID] = *item
	return nil
}

func (s *Store) ToggleFavorite(_ context.Context, ownerID, recipeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.recipes[recipeID]; !ok {
		return false, fmt.Errorf("toggle favorite %s: %w", recipeID, store.ErrNotFound)
	}

	set, ok := s.favorites[ownerID]
	if !ok {
		set = make(map[string]struct{})
		s.favorites[ownerID] = set
	}

	if _, present := set[recipeID]; present {
		delete(set, recipeID)
		return false, nil
	}
	set[recipeID] = struct{}{}
	return true, nil
}

func (s *Store) ListFavorites(_ context.Context, ownerID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.favorites[ownerID]))
	for id := range s.favorites[ownerID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) InsertReview(_ context.Context, review *models.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.recipes[review.RecipeID]; !ok {
		return fmt.Errorf("insert review on %s: %w", review.RecipeID, store.ErrNotFound)
	}

	byAuthor, ok := s.reviews[review.RecipeID]
	if !ok {
		byAuthor = make(map[string]models.Review)
		s.reviews[review.RecipeID] = byAuthor
	}
	if _, exists := byAuthor[review.AuthorID]; exists {
		return fmt.Errorf("insert review by %s on %s: %w", review.AuthorID, review.RecipeID, store.ErrAlreadyExists)
	}

	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	now := s.now()
	review.CreatedAt = now
	review.UpdatedAt = now
	byAuthor[review.AuthorID] = *review
	return nil
}

func (s *Store) UpdateReview(_ context.Context, review *models.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.reviews[review.RecipeID][review.AuthorID]
	if !ok {
		return fmt.Errorf("update review by %s on %s: %w", review.AuthorID, review.RecipeID, store.ErrNotFound)
	}

	review.ID = existing.ID
	review.CreatedAt = existing.CreatedAt
	review.UpdatedAt = s.now()
	s.reviews[review.RecipeID][review.AuthorID] = *review
	return nil
}

func (s *Store) DeleteReview(_ context.Context, recipeID, authorID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reviews[recipeID][authorID]; !ok {
		return false, nil
	}
	delete(s.reviews[recipeID], authorID)
	return true, nil
}

func (s *Store) ListReviews(_ context.Context, recipeID string) ([]models.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reviews := make([]models.Review, 0, len(s.reviews[recipeID]))
	for _, r := range s.reviews[recipeID] {
		reviews = append(reviews, r)
	}
	sort.Slice(reviews, func(i, j int) bool {
		if !reviews[i].CreatedAt.Equal(reviews[j].CreatedAt) {
			return reviews[i].CreatedAt.After(reviews[j].CreatedAt)
		}
		return reviews[i].ID < reviews[j].ID
	})
	return reviews, nil
}

func (s *Store) RatingSummary(_ context.Context, recipeID string) (models.RatingSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var summary models.RatingSummary
	var sum int
	for _, r := range s.reviews[recipeID] {
		summary.Count++
		sum += r.Rating
	}
	if summary.Count > 0 {
		summary.Average = float64(sum) / float64(summary.Count)
	}
	return summary, nil
}

func (s *Store) InsertGroceryItem(_ context.Context, item *models.GroceryListItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, ok := s.grocery[item.OwnerID]
	if !ok {
		items = make(map[string]models.GroceryListItem)
		s.grocery[item.OwnerID] = items
	}
	for _, existing := range items {
		if existing.IngredientID == item.IngredientID && existing.RecipeID == item.RecipeID {
			return fmt.Errorf("insert grocery item %s: %w", item.IngredientID, store.ErrAlreadyExists)
		}
	}

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.UpdatedAt = s.now()
	items[item.ID] = *item
	return nil
}

func (s *Store) ToggleGroceryPurchased(_ context.Context, ownerID, itemID string) (*models.GroceryListItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.grocery[ownerID][itemID]
	if !ok {
		return nil, fmt.Errorf("toggle grocery item %s: %w", itemID, store.ErrNotFound)
	}

	item.Purchased = !item.Purchased
	item.UpdatedAt = s.now()
	s.grocery[ownerID][itemID] = item
	return &item, nil
}

func (s *Store) DeleteGroceryItem(_ context.Context, ownerID, itemID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.grocery[ownerID][itemID]; !ok {
		return false, nil
	}
	delete(s.grocery[ownerID], itemID)
	return true, nil
}

func (s *Store) ListGroceryItems(_ context.Context, ownerID string) ([]models.GroceryListItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]models.GroceryListItem, 0, len(s.grocery[ownerID]))
	for _, item := range s.grocery[ownerID] {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].UpdatedAt.Equal(items[j].UpdatedAt) {
			return items[i].UpdatedAt.Before(items[j].UpdatedAt)
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

func (s *Store) Stats(_ context.Context) (*models.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &models.Stats{
		Recipes:     int64(len(s.recipes)),
		Categories:  int64(len(s.catalog[models.KindCategory])),
		Areas:       int64(len(s.catalog[models.KindArea])),
		Ingredients: int64(len(s.catalog[models.KindIngredient])),
		TopRecipes:  []models.RecipePopularity{},
	}

	var ratingSum int
	for _, byAuthor := range s.reviews {
		for _, r := range byAuthor {
			stats.Reviews++
			ratingSum += r.Rating
		}
	}
	if stats.Reviews > 0 {
		stats.AverageRating = float64(ratingSum) / float64(stats.Reviews)
	}

	popularity := make(map[string]int64)
	for _, set := range s.favorites {
		for id := range set {
			stats.Favorites++
			popularity[id]++
		}
	}
	for _, items := range s.grocery {
		stats.GroceryItems += int64(len(items))
	}

	for id, count := range popularity {
		stats.TopRecipes = append(stats.TopRecipes, models.RecipePopularity{
			RecipeID:  id,
			Title:     s.recipes[id].Title,
			Favorites: count,
		})
	}
	sort.Slice(stats.TopRecipes, func(i, j int) bool {
		a, b := stats.TopRecipes[i], stats.TopRecipes[j]
		if a.Favorites != b.Favorites {
			return a.Favorites > b.Favorites
		}
		return a.RecipeID < b.RecipeID
	})
	if len(stats.TopRecipes) > store.TopRecipesLimit {
		stats.TopRecipes = stats.TopRecipes[:store.TopRecipesLimit]
	}

	return stats, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
