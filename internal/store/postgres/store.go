package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"recipebox/internal/store"
	"recipebox/pkg/models"
)

// Store implements store.Store on a pgx pool. Conditional writes rely on
// unique constraints and single-statement updates; the favorites toggle
// serializes per owner with a transaction-scoped advisory lock.
type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// NewStore creates a store over pool
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const recipeColumns = `id, title, description, category_id, area, ingredients,
	instructions, thumb, owner_id, created_at, updated_at`

func scanRecipe(row scannable) (models.Recipe, error) {
	var r models.Recipe
	var ingredients []byte
	if err := row.Scan(
		&r.ID, &r.Title, &r.Description, &r.CategoryID, &r.Area, &ingredients,
		&r.Instructions, &r.Thumb, &r.OwnerID, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return r, err
	}
	if err := json.Unmarshal(ingredients, &r.Ingredients); err != nil {
		return r, fmt.Errorf("decode ingredients of %s: %w", r.ID, err)
	}
	r.Ingredients = orEmpty(r.Ingredients)
	return r, nil
}

func recipeWhere(f models.RecipeFilter) (string, []any) {
	conds := []string{"TRUE"}
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Query != "" {
		add("title ILIKE $%d", "%"+escapeLike(f.Query)+"%")
	}
	if f.CategoryID != "" {
		add("category_id = $%d", f.CategoryID)
	}
	if f.Area != "" {
		add("lower(area) = lower($%d)", f.Area)
	}
	if f.OwnerID != "" {
		add("owner_id = $%d", f.OwnerID)
	}
	if f.IngredientID != "" {
		add("ingredients @> jsonb_build_array(jsonb_build_object('ingredient_id', $%d::text))", f.IngredientID)
	}

	return strings.Join(conds, " AND "), args
}

func (s *Store) ListRecipes(ctx context.Context, filter models.RecipeFilter) ([]models.Recipe, int64, error) {
	where, args := recipeWhere(filter)

	var total int64
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM recipes WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count recipes: %w", err)
	}

	var limit any
	if filter.Limit > 0 {
		limit = filter.Limit
	}
	q := fmt.Sprintf(`SELECT %s FROM recipes WHERE %s
		ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		recipeColumns, where, len(args)+1, len(args)+2)
	args = append(args, limit, filter.Offset())

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list recipes: %w", err)
	}
	defer rows.Close()

	var result []models.Recipe
	for rows.Next() {
		r, err := scanRecipe(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan recipe: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list recipes: %w", err)
	}
	return orEmpty(result), total, nil
}

func (s *Store) GetRecipe(ctx context.Context, id string) (*models.Recipe, error) {
	r, err := scanRecipe(s.pool.QueryRow(ctx, "SELECT "+recipeColumns+" FROM recipes WHERE id = $1", id))
	if err != nil {
		return nil, notFoundWrap(err, "get recipe %s", id)
	}
	return &r, nil
}

func (s *Store) CreateRecipe(ctx context.Context, recipe *models.Recipe) error {
	if recipe.ID == "" {
		recipe.ID = uuid.NewString()
	}
	ingredients, err := json.Marshal(orEmpty(recipe.Ingredients))
	if err != nil {
		return fmt.Errorf("encode ingredients: %w", err)
	}

	const q = `INSERT INTO recipes
		(id, title, description, category_id, area, ingredients, instructions, thumb, owner_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`
	err = s.pool.QueryRow(ctx, q,
		recipe.ID, recipe.Title, recipe.Description, recipe.CategoryID, recipe.Area,
		ingredients, recipe.Instructions, recipe.Thumb, recipe.OwnerID,
	).Scan(&recipe.CreatedAt, &recipe.UpdatedAt)
	if err != nil {
		return constraintWrap(err, "create recipe %s", recipe.ID)
	}
	return nil
}

func (s *Store) UpdateRecipe(ctx context.Context, recipe *models.Recipe) error {
	ingredients, err := json.Marshal(orEmpty(recipe.Ingredients))
	if err != nil {
		return fmt.Errorf("encode ingredients: %w", err)
	}

	const q = `UPDATE recipes SET
		title=$2, description=$3, category_id=$4, area=$5, ingredients=$6,
		instructions=$7, thumb=$8, updated_at=now()
		WHERE id=$1
		RETURNING owner_id, created_at, updated_at`
	err = s.pool.QueryRow(ctx, q,
		recipe.ID, recipe.Title, recipe.Description, recipe.CategoryID, recipe.Area,
		ingredients, recipe.Instructions, recipe.Thumb,
	).Scan(&recipe.OwnerID, &recipe.CreatedAt, &recipe.UpdatedAt)
	if err != nil {
		return notFoundWrap(err, "update recipe %s", recipe.ID)
	}
	return nil
}

func (s *Store) DeleteRecipe(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM recipes WHERE id = $1", id)
	return execExpectOne(tag, err, "delete recipe %s", id)
}

func (s *Store) ListCatalog(ctx context.Context, kind models.CatalogKind) ([]models.CatalogItem, error) {
	const q = `SELECT id, kind, name, description, thumb FROM catalog_items
		WHERE kind = $1 ORDER BY lower(name)`
	rows, err := s.pool.Query(ctx, q, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	defer rows.Close()

	var items []models.CatalogItem
	for rows.Next() {
		var item models.CatalogItem
		if err := rows.Scan(&item.ID, &item.Kind, &item.Name, &item.Description, &item.Thumb); err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind, err)
		}
		items = append(items, item)
	}
	return orEmpty(items), rows.Err()
}

func (s *Store) FindCatalogByName(ctx context.Context, kind models.CatalogKind, name string) (*models.CatalogItem, error) {
	const q = `SELECT id, kind, name, description, thumb FROM catalog_items
		WHERE kind = $1 AND lower(name) = lower(btrim($2))`
	var item models.CatalogItem
	err := s.pool.QueryRow(ctx, q, string(kind), name).Scan(
		&item.ID, &item.Kind, &item.Name, &item.Description, &item.Thumb,
	)
	if err != nil {
		return nil, notFoundWrap(err, "find %s %q", kind, name)
	}
	return &item, nil
}

func (s *Store) CreateCatalogItem(ctx context.Context, item *models.CatalogItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.Name = strings.TrimSpace(item.Name)

	const q = `INSERT INTO catalog_items (id, kind, name, description, thumb)
		VALUES ($1,$2,$3,$4,$5)`
	_, err := s.pool.Exec(ctx, q, item.ID, string(item.Kind), item.Name, item.Description, item.Thumb)
	if err != nil {
		return constraintWrap(err, "create %s %q", item.Kind, item.Name)
	}
	return nil
}

func (s *Store) ToggleFavorite(ctx context.Context, ownerID, recipeID string) (added bool, err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin toggle favorite: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1, hashtext($2))", lockClassFavorites, ownerID); err != nil {
		return false, fmt.Errorf("lock favorites of %s: %w", ownerID, err)
	}

	tag, err := tx.Exec(ctx, "DELETE FROM favorites WHERE owner_id = $1 AND recipe_id = $2", ownerID, recipeID)
	if err != nil {
		return false, fmt.Errorf("remove favorite %s: %w", recipeID, err)
	}

	if tag.RowsAffected() == 0 {
		_, err = tx.Exec(ctx,
			"INSERT INTO favorites (owner_id, recipe_id) VALUES ($1, $2) ON CONFLICT DO NOTHING",
			ownerID, recipeID)
		if err != nil {
			return false, constraintWrap(err, "add favorite %s", recipeID)
		}
		added = true
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit toggle favorite: %w", err)
	}
	return added, nil
}

func (s *Store) ListFavorites(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT recipe_id FROM favorites WHERE owner_id = $1 ORDER BY recipe_id", ownerID)
	if err != nil {
		return nil, fmt.Errorf("list favorites of %s: %w", ownerID, err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list favorites of %s: %w", ownerID, err)
	}
	return orEmpty(ids), nil
}

const reviewColumns = "id, recipe_id, author_id, rating, comment, created_at, updated_at"

func scanReview(row scannable) (models.Review, error) {
	var r models.Review
	err := row.Scan(&r.ID, &r.RecipeID, &r.AuthorID, &r.Rating, &r.Comment, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func (s *Store) InsertReview(ctx context.Context, review *models.Review) error {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}

	const q = `INSERT INTO reviews (id, recipe_id, author_id, rating, comment)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (recipe_id, author_id) DO NOTHING
		RETURNING created_at, updated_at`
	err := s.pool.QueryRow(ctx, q,
		review.ID, review.RecipeID, review.AuthorID, review.Rating, review.Comment,
	).Scan(&review.CreatedAt, &review.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("insert review by %s on %s: %w", review.AuthorID, review.RecipeID, store.ErrAlreadyExists)
	}
	if err != nil {
		return constraintWrap(err, "insert review on %s", review.RecipeID)
	}
	return nil
}

func (s *Store) UpdateReview(ctx context.Context, review *models.Review) error {
	const q = `UPDATE reviews SET rating=$3, comment=$4, updated_at=now()
		WHERE recipe_id=$1 AND author_id=$2
		RETURNING id, created_at, updated_at`
	err := s.pool.QueryRow(ctx, q,
		review.RecipeID, review.AuthorID, review.Rating, review.Comment,
	).Scan(&review.ID, &review.CreatedAt, &review.UpdatedAt)
	if err != nil {
		return notFoundWrap(err, "update review by %s on %s", review.AuthorID, review.RecipeID)
	}
	return nil
}

func (s *Store) DeleteReview(ctx context.Context, recipeID, authorID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM reviews WHERE recipe_id = $1 AND author_id = $2", recipeID, authorID)
	if err != nil {
		return false, fmt.Errorf("delete review by %s on %s: %w", authorID, recipeID, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) ListReviews(ctx context.Context, recipeID string) ([]models.Review, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+reviewColumns+" FROM reviews WHERE recipe_id = $1 ORDER BY created_at DESC, id", recipeID)
	if err != nil {
		return nil, fmt.Errorf("list reviews of %s: %w", recipeID, err)
	}
	defer rows.Close()

	var reviews []models.Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, r)
	}
	return orEmpty(reviews), rows.Err()
}

func (s *Store) RatingSummary(ctx context.Context, recipeID string) (models.RatingSummary, error) {
	var summary models.RatingSummary
	err := s.pool.QueryRow(ctx,
		"SELECT count(*), coalesce(avg(rating), 0)::float8 FROM reviews WHERE recipe_id = $1", recipeID,
	).Scan(&summary.Count, &summary.Average)
	if err != nil {
		return summary, fmt.Errorf("rating summary of %s: %w", recipeID, err)
	}
	return summary, nil
}

const groceryColumns = "id, owner_id, ingredient_id, recipe_id, quantity, purchased, updated_at"

func scanGroceryItem(row scannable) (models.GroceryListItem, error) {
	var item models.GroceryListItem
	err := row.Scan(&item.ID, &item.OwnerID, &item.IngredientID, &item.RecipeID,
		&item.Quantity, &item.Purchased, &item.UpdatedAt)
	return item, err
}

func (s *Store) InsertGroceryItem(ctx context.Context, item *models.GroceryListItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}

	const q = `INSERT INTO grocery_items (id, owner_id, ingredient_id, recipe_id, quantity, purchased)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING updated_at`
	err := s.pool.QueryRow(ctx, q,
		item.ID, item.OwnerID, item.IngredientID, item.RecipeID, item.Quantity, item.Purchased,
	).Scan(&item.UpdatedAt)
	if err != nil {
		return constraintWrap(err, "insert grocery item %s", item.IngredientID)
	}
	return nil
}

func (s *Store) ToggleGroceryPurchased(ctx context.Context, ownerID, itemID string) (*models.GroceryListItem, error) {
	const q = `UPDATE grocery_items SET purchased = NOT purchased, updated_at = now()
		WHERE id = $1 AND owner_id = $2
		RETURNING ` + groceryColumns
	item, err := scanGroceryItem(s.pool.QueryRow(ctx, q, itemID, ownerID))
	if err != nil {
		return nil, notFoundWrap(err, "toggle grocery item %s", itemID)
	}
	return &item, nil
}

func (s *Store) DeleteGroceryItem(ctx context.Context, ownerID, itemID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM grocery_items WHERE id = $1 AND owner_id = $2", itemID, ownerID)
	if err != nil {
		return false, fmt.Errorf("delete grocery item %s: %w", itemID, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) ListGroceryItems(ctx context.Context, ownerID string) ([]models.GroceryListItem, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+groceryColumns+" FROM grocery_items WHERE owner_id = $1 ORDER BY updated_at, id", ownerID)
	if err != nil {
		return nil, fmt.Errorf("list grocery items of %s: %w", ownerID, err)
	}
	defer rows.Close()

	var items []models.GroceryListItem
	for rows.Next() {
		item, err := scanGroceryItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan grocery item: %w", err)
		}
		items = append(items, item)
	}
	return orEmpty(items), rows.Err()
}

func (s *Store) Stats(ctx context.Context) (*models.Stats, error) {
	const q = `SELECT
		(SELECT count(*) FROM recipes),
		(SELECT count(*) FROM catalog_items WHERE kind = 'category'),
		(SELECT count(*) FROM catalog_items WHERE kind = 'area'),
		(SELECT count(*) FROM catalog_items WHERE kind = 'ingredient'),
		(SELECT count(*) FROM reviews),
		(SELECT count(*) FROM favorites),
		(SELECT count(*) FROM grocery_items),
		(SELECT coalesce(avg(rating), 0)::float8 FROM reviews)`

	stats := &models.Stats{}
	err := s.pool.QueryRow(ctx, q).Scan(
		&stats.Recipes, &stats.Categories, &stats.Areas, &stats.Ingredients,
		&stats.Reviews, &stats.Favorites, &stats.GroceryItems, &stats.AverageRating,
	)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}

	const top = `SELECT f.recipe_id, r.title, count(*) FROM favorites f
		JOIN recipes r ON r.id = f.recipe_id
		GROUP BY f.recipe_id, r.title
		ORDER BY count(*) DESC, f.recipe_id
		LIMIT $1`
	rows, err := s.pool.Query(ctx, top, store.TopRecipesLimit)
	if err != nil {
		return nil, fmt.Errorf("top recipes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p models.RecipePopularity
		if err := rows.Scan(&p.RecipeID, &p.Title, &p.Favorites); err != nil {
			return nil, fmt.Errorf("scan top recipe: %w", err)
		}
		stats.TopRecipes = append(stats.TopRecipes, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("top recipes: %w", err)
	}
	stats.TopRecipes = orEmpty(stats.TopRecipes)

	return stats, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
