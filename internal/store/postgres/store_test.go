package postgres

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipebox/internal/store"
	"recipebox/pkg/models"
)

func setupStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping postgres tests")
	}

	ctx := context.Background()
	require.NoError(t, RunMigrations(ctx, dsn))

	pool, err := NewPool(ctx, Config{DSN: dsn, MaxConns: 8})
	require.NoError(t, err)

	s := NewStore(pool)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createRecipe(t *testing.T, s *Store, title string) *models.Recipe {
	t.Helper()

	recipe := &models.Recipe{
		Title:   title,
		Area:    "Italian",
		OwnerID: "owner-" + uuid.NewString(),
		Ingredients: []models.RecipeIngredient{
			{IngredientID: "ing-" + title, Name: "Flour", Measure: "200 g"},
		},
	}
	require.NoError(t, s.CreateRecipe(context.Background(), recipe))
	t.Cleanup(func() { _ = s.DeleteRecipe(context.Background(), recipe.ID) })
	return recipe
}

func TestStore_RecipeLifecycle(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	recipe := createRecipe(t, s, "pasta-"+uuid.NewString())

	got, err := s.GetRecipe(ctx, recipe.ID)
	require.NoError(t, err)
	assert.Equal(t, recipe.Title, got.Title)
	require.Len(t, got.Ingredients, 1)

	recipes, total, err := s.ListRecipes(ctx, models.RecipeFilter{IngredientID: "ing-" + recipe.Title, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, recipes, 1)
	assert.Equal(t, recipe.ID, recipes[0].ID)

	recipe.Title = recipe.Title + "-v2"
	require.NoError(t, s.UpdateRecipe(ctx, recipe))

	require.NoError(t, s.DeleteRecipe(ctx, recipe.ID))
	_, err = s.GetRecipe(ctx, recipe.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_ToggleFavorite(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	recipe := createRecipe(t, s, "soup-"+uuid.NewString())
	owner := "user-" + uuid.NewString()

	added, err := s.ToggleFavorite(ctx, owner, recipe.ID)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.ToggleFavorite(ctx, owner, recipe.ID)
	require.NoError(t, err)
	assert.False(t, added)

	_, err = s.ToggleFavorite(ctx, owner, "missing-"+uuid.NewString())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_ConcurrentReviewInsert(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	recipe := createRecipe(t, s, "cake-"+uuid.NewString())
	author := "user-" + uuid.NewString()

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.InsertReview(ctx, &models.Review{RecipeID: recipe.ID, AuthorID: author, Rating: 4})
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.ErrorIs(t, err, store.ErrAlreadyExists)
	}
	assert.Equal(t, 1, created)

	reviews, err := s.ListReviews(ctx, recipe.ID)
	require.NoError(t, err)
	assert.Len(t, reviews, 1)
}

func TestStore_GroceryToggle(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	owner := "user-" + uuid.NewString()
	item := &models.GroceryListItem{OwnerID: owner, IngredientID: "ing-" + uuid.NewString(), Quantity: "2 kg"}
	require.NoError(t, s.InsertGroceryItem(ctx, item))

	dup := &models.GroceryListItem{OwnerID: owner, IngredientID: item.IngredientID, Quantity: "1 kg"}
	assert.ErrorIs(t, s.InsertGroceryItem(ctx, dup), store.ErrAlreadyExists)

	toggled, err := s.ToggleGroceryPurchased(ctx, owner, item.ID)
	require.NoError(t, err)
	assert.True(t, toggled.Purchased)

	_, err = s.ToggleGroceryPurchased(ctx, "someone-else", item.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	removed, err := s.DeleteGroceryItem(ctx, owner, item.ID)
	require.NoError(t, err)
	assert.True(t, removed)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\% off\_now`, escapeLike("50% off_now"))
	assert.Equal(t, `a\\b`, escapeLike(`a\b`))
}

func TestExecExpectOne(t *testing.T) {
	err := execExpectOne(pgconn.NewCommandTag("DELETE 0"), nil, "delete recipe %s", "%d%w")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, "delete recipe %d%w: not found", err.Error())

	cause := errors.New("conn reset")
	err = execExpectOne(pgconn.CommandTag{}, cause, "delete recipe %s", "50%")
	assert.ErrorIs(t, err, cause)

	assert.NoError(t, execExpectOne(pgconn.NewCommandTag("DELETE 1"), nil, "delete recipe %s", "r1"))
}
