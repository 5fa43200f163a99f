package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"recipebox/internal/cache"
	"recipebox/internal/reconciler"
	"recipebox/internal/store"
	"recipebox/internal/store/memory"
	"recipebox/pkg/models"
)

type testServer struct {
	router *gin.Engine
	store  *memory.Store
	cache  *cache.ResponseCache
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	return setupTestServerWithStore(t, memory.New())
}

func setupTestServerWithStore(t *testing.T, st store.Store) *testServer {
	t.Helper()

	logger := zaptest.NewLogger(t)
	rc := cache.NewResponseCache(cache.NewMemoryCache(logger), logger)
	rec := reconciler.New(st, rc, logger)

	gin.SetMode(gin.TestMode)
	router := gin.New()

	api := NewAPI(st, rec, rc, Config{
		ListingTTL: time.Hour,
		DetailTTL:  time.Hour,
		StatsTTL:   time.Hour,
	}, logger)
	api.Register(router)

	ms, _ := st.(*memory.Store)
	return &testServer{router: router, store: ms, cache: rc}
}

func (s *testServer) do(t *testing.T, method, path, user string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func (s *testServer) seedRecipe(t *testing.T, owner, title string) *models.Recipe {
	t.Helper()
	recipe := &models.Recipe{Title: title, Area: "Italian", OwnerID: owner}
	require.NoError(t, s.store.CreateRecipe(context.Background(), recipe))
	return recipe
}

func TestAPI_HealthAndPing(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var health map[string]interface{}
	decode(t, w, &health)
	assert.Equal(t, "healthy", health["status"])

	w = s.do(t, http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"pong"}`, w.Body.String())
}

func TestAPI_RecipeListingIsCached(t *testing.T) {
	s := setupTestServer(t)
	s.seedRecipe(t, "chef", "Risotto")

	w := s.do(t, http.MethodGet, "/api/v1/recipes?page=1&limit=10", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

	var page models.RecipePage
	decode(t, w, &page)
	assert.Equal(t, int64(1), page.Total)

	// same query, parameters reordered
	w = s.do(t, http.MethodGet, "/api/v1/recipes?limit=10&page=1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
}

func TestAPI_RecipeListingRejectsHugePage(t *testing.T) {
	s := setupTestServer(t)
	s.seedRecipe(t, "chef", "Risotto")

	w := s.do(t, http.MethodGet, "/api/v1/recipes?page=9223372036854775807&limit=20", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/recipes?page=%d&limit=100", maxPage), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page models.RecipePage
	decode(t, w, &page)
	assert.Equal(t, int64(1), page.Total)
	assert.Empty(t, page.Recipes)
}

func TestAPI_RepeatedQueryValuesAreNotConflated(t *testing.T) {
	s := setupTestServer(t)
	s.seedRecipe(t, "chef", "Pasta")
	tacos := &models.Recipe{Title: "Tacos", Area: "Mexican", OwnerID: "chef"}
	require.NoError(t, s.store.CreateRecipe(context.Background(), tacos))

	w := s.do(t, http.MethodGet, "/api/v1/recipes?area=Italian&area=Mexican", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	var page models.RecipePage
	decode(t, w, &page)
	require.Len(t, page.Recipes, 1)
	assert.Equal(t, "Pasta", page.Recipes[0].Title)

	w = s.do(t, http.MethodGet, "/api/v1/recipes?area=Mexican&area=Italian", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	page = models.RecipePage{}
	decode(t, w, &page)
	require.Len(t, page.Recipes, 1)
	assert.Equal(t, "Tacos", page.Recipes[0].Title)
}

func TestAPI_RecipeWriteInvalidatesListing(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/recipes", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/recipes", "chef", map[string]interface{}{
		"title": "Carbonara",
		"area":  "Italian",
		"ingredients": []map[string]string{
			{"ingredient_id": "guanciale", "name": "Guanciale", "measure": "150 g"},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created models.Recipe
	decode(t, w, &created)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "chef", created.OwnerID)

	w = s.do(t, http.MethodGet, "/api/v1/recipes", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

	var page models.RecipePage
	decode(t, w, &page)
	require.Len(t, page.Recipes, 1)
	assert.Equal(t, "Carbonara", page.Recipes[0].Title)
}

func TestAPI_RecipeFilters(t *testing.T) {
	s := setupTestServer(t)
	ctx := context.Background()

	category := &models.CatalogItem{Kind: models.KindCategory, Name: "Dessert"}
	require.NoError(t, s.store.CreateCatalogItem(ctx, category))

	cake := &models.Recipe{Title: "Chocolate Cake", CategoryID: category.ID, Area: "French"}
	require.NoError(t, s.store.CreateRecipe(ctx, cake))
	s.seedRecipe(t, "chef", "Lasagna")

	w := s.do(t, http.MethodGet, "/api/v1/recipes?category=dessert", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var page models.RecipePage
	decode(t, w, &page)
	require.Len(t, page.Recipes, 1)
	assert.Equal(t, cake.ID, page.Recipes[0].ID)

	w = s.do(t, http.MethodGet, "/api/v1/recipes?q=lasa", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &page)
	require.Len(t, page.Recipes, 1)
	assert.Equal(t, "Lasagna", page.Recipes[0].Title)

	w = s.do(t, http.MethodGet, "/api/v1/recipes?limit=0", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPI_CreateRecipeResolvesCategoryName(t *testing.T) {
	s := setupTestServer(t)
	ctx := context.Background()

	category := &models.CatalogItem{Kind: models.KindCategory, Name: "Seafood"}
	require.NoError(t, s.store.CreateCatalogItem(ctx, category))

	w := s.do(t, http.MethodPost, "/api/v1/recipes", "chef", map[string]interface{}{
		"title":    "Paella",
		"category": " seafood ",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created models.Recipe
	decode(t, w, &created)
	assert.Equal(t, category.ID, created.CategoryID)

	w = s.do(t, http.MethodPost, "/api/v1/recipes", "chef", map[string]interface{}{
		"title":    "Mystery",
		"category": "Unknown",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPI_RecipeOwnership(t *testing.T) {
	s := setupTestServer(t)
	recipe := s.seedRecipe(t, "chef", "Gnocchi")
	path := "/api/v1/recipes/" + recipe.ID

	w := s.do(t, http.MethodPut, path, "intruder", map[string]interface{}{"title": "Stolen"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodDelete, path, "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPut, path, "chef", map[string]interface{}{"title": "Potato Gnocchi"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodDelete, path, "chef", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPI_RecipeDetailNotFoundIsNotCached(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/recipes/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	keys, err := s.cache.Keys(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestAPI_ReviewLifecycle(t *testing.T) {
	s := setupTestServer(t)
	recipe := s.seedRecipe(t, "chef", "Tiramisu")
	reviews := "/api/v1/recipes/" + recipe.ID + "/reviews"
	detail := "/api/v1/recipes/" + recipe.ID

	// warm the detail cache
	w := s.do(t, http.MethodGet, detail, "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, reviews, "alice", map[string]interface{}{"rating": 5, "comment": "perfect"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodPost, reviews, "alice", map[string]interface{}{"rating": 1})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPut, reviews, "bob", map[string]interface{}{"rating": 3})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPut, reviews, "alice", map[string]interface{}{"rating": 4})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, reviews, "bob", map[string]interface{}{"rating": 9})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, detail, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

	var got models.RecipeDetail
	decode(t, w, &got)
	assert.Equal(t, int64(1), got.Rating.Count)
	assert.Equal(t, 4.0, got.Rating.Average)

	w = s.do(t, http.MethodDelete, reviews, "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"removed":true}`, w.Body.String())

	w = s.do(t, http.MethodDelete, reviews, "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"removed":false}`, w.Body.String())
}

func TestAPI_FavoriteToggle(t *testing.T) {
	s := setupTestServer(t)
	recipe := s.seedRecipe(t, "chef", "Pad Thai")
	toggle := "/api/v1/favorites/" + recipe.ID + "/toggle"

	for _, want := range []string{"added", "removed", "added"} {
		w := s.do(t, http.MethodPost, toggle, "alice", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var body map[string]string
		decode(t, w, &body)
		assert.Equal(t, want, body["result"])
	}

	w := s.do(t, http.MethodGet, "/api/v1/favorites", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var favorites struct {
		RecipeIDs []string `json:"recipe_ids"`
	}
	decode(t, w, &favorites)
	assert.Equal(t, []string{recipe.ID}, favorites.RecipeIDs)

	w = s.do(t, http.MethodPost, "/api/v1/favorites/missing/toggle", "alice", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodPost, toggle, "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAPI_FavoriteInvalidatesStats(t *testing.T) {
	s := setupTestServer(t)
	recipe := s.seedRecipe(t, "chef", "Bibimbap")

	w := s.do(t, http.MethodGet, "/api/v1/admin/stats", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodGet, "/api/v1/admin/stats", "", nil)
	require.Equal(t, "HIT", w.Header().Get("X-Cache"))

	w = s.do(t, http.MethodPost, "/api/v1/favorites/"+recipe.ID+"/toggle", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/admin/stats", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

	var stats models.Stats
	decode(t, w, &stats)
	assert.Equal(t, int64(1), stats.Favorites)
	require.Len(t, stats.TopRecipes, 1)
	assert.Equal(t, recipe.ID, stats.TopRecipes[0].RecipeID)
}

func TestAPI_Grocery(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/grocery", "alice", map[string]string{
		"ingredient_id": "flour",
		"quantity":      "2kg",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var item models.GroceryListItem
	decode(t, w, &item)
	assert.Equal(t, "2 kg", item.Quantity)

	w = s.do(t, http.MethodPost, "/api/v1/grocery", "alice", map[string]string{
		"ingredient_id": "flour",
		"quantity":      "1 kg",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/grocery", "alice", map[string]string{
		"ingredient_id": "sugar",
		"quantity":      "kg2",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/grocery/"+item.ID+"/toggle", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &item)
	assert.True(t, item.Purchased)

	w = s.do(t, http.MethodPost, "/api/v1/grocery/"+item.ID+"/toggle", "bob", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/grocery", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Items []models.GroceryListItem `json:"items"`
		Count int                      `json:"count"`
	}
	decode(t, w, &list)
	assert.Equal(t, 1, list.Count)

	w = s.do(t, http.MethodDelete, "/api/v1/grocery/"+item.ID, "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"removed":true}`, w.Body.String())
}

func TestAPI_Catalog(t *testing.T) {
	s := setupTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/areas", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

	w = s.do(t, http.MethodPost, "/api/v1/areas", "admin", map[string]string{"name": "Mexican"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/areas", "admin", map[string]string{"name": "mexican "})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/areas", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

	var body struct {
		Items []models.CatalogItem `json:"items"`
	}
	decode(t, w, &body)
	require.Len(t, body.Items, 1)
	assert.Equal(t, "Mexican", body.Items[0].Name)
}

func TestAPI_CacheAdmin(t *testing.T) {
	s := setupTestServer(t)
	s.seedRecipe(t, "chef", "Falafel")

	for _, path := range []string{"/api/v1/recipes", "/api/v1/categories", "/api/v1/admin/stats"} {
		w := s.do(t, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := s.do(t, http.MethodGet, "/api/v1/admin/cache/keys", "ops", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var keys struct {
		Keys  []string `json:"keys"`
		Count int      `json:"count"`
	}
	decode(t, w, &keys)
	assert.Equal(t, 3, keys.Count)

	w = s.do(t, http.MethodGet, "/api/v1/admin/cache/keys?prefix=/api/v1/recipes", "ops", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &keys)
	assert.Equal(t, []string{"GET /api/v1/recipes"}, keys.Keys)

	w = s.do(t, http.MethodDelete, "/api/v1/admin/cache", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodDelete, "/api/v1/admin/cache", "ops", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/admin/cache/keys", "ops", nil)
	decode(t, w, &keys)
	assert.Equal(t, 0, keys.Count)

	w = s.do(t, http.MethodGet, "/api/v1/admin/cache/stats", "ops", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats cache.Stats
	decode(t, w, &stats)
	assert.False(t, stats.Suspect)
	assert.Equal(t, uint64(3), stats.Loads)
}

type unavailableStore struct {
	store.Store
}

func (unavailableStore) ListRecipes(context.Context, models.RecipeFilter) ([]models.Recipe, int64, error) {
	return nil, 0, fmt.Errorf("list recipes: %w", store.ErrStoreUnavailable)
}

func (unavailableStore) Ping(context.Context) error {
	return store.ErrStoreUnavailable
}

func TestAPI_StoreUnavailable(t *testing.T) {
	s := setupTestServerWithStore(t, unavailableStore{})

	w := s.do(t, http.MethodGet, "/api/v1/recipes", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", store.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("x: %w", store.ErrAlreadyExists), http.StatusConflict},
		{fmt.Errorf("x: %w", reconciler.ErrInvalidFormat), http.StatusBadRequest},
		{fmt.Errorf("x: %w", store.ErrStoreUnavailable), http.StatusServiceUnavailable},
		{&requestError{msg: "bad"}, http.StatusBadRequest},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, statusOf(tt.err), tt.err.Error())
	}
}
