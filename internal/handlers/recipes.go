package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"recipebox/internal/middleware"
	"recipebox/internal/store"
	"recipebox/pkg/models"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
	maxPage          = 1_000_000
)

type ingredientRequest struct {
	IngredientID string `json:"ingredient_id" binding:"required"`
	Name         string `json:"name" binding:"max=200"`
	Measure      string `json:"measure" binding:"max=100"`
}

type recipeRequest struct {
	Title        string              `json:"title" binding:"required,max=200"`
	Description  string              `json:"description" binding:"max=2000"`
	Category     string              `json:"category" binding:"max=200"`
	Area         string              `json:"area" binding:"max=100"`
	Ingredients  []ingredientRequest `json:"ingredients" binding:"dive"`
	Instructions string              `json:"instructions"`
	Thumb        string              `json:"thumb" binding:"omitempty,url"`
}

// ListRecipes handles GET /recipes
func (a *API) ListRecipes(c *gin.Context) {
	filter, err := parseRecipeFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	a.serveCached(c, a.config.ListingTTL, func(ctx context.Context) (interface{}, error) {
		if filter.CategoryID != "" {
			filter.CategoryID = a.resolveCategoryFilter(ctx, filter.CategoryID)
		}

		recipes, total, err := a.store.ListRecipes(ctx, filter)
		if err != nil {
			return nil, err
		}
		return models.RecipePage{
			Recipes: recipes,
			Total:   total,
			Page:    filter.Page,
			Limit:   filter.Limit,
		}, nil
	})
}

func parseRecipeFilter(c *gin.Context) (models.RecipeFilter, error) {
	filter := models.RecipeFilter{
		Query:        strings.TrimSpace(c.Query("q")),
		CategoryID:   strings.TrimSpace(c.Query("category")),
		Area:         strings.TrimSpace(c.Query("area")),
		IngredientID: strings.TrimSpace(c.Query("ingredient")),
		OwnerID:      strings.TrimSpace(c.Query("owner")),
		Page:         1,
		Limit:        defaultPageLimit,
	}

	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 || page > maxPage {
			return filter, fmt.Errorf("invalid page %q, must be between 1 and %d", raw, maxPage)
		}
		filter.Page = page
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxPageLimit {
			return filter, fmt.Errorf("invalid limit %q, must be between 1 and %d", raw, maxPageLimit)
		}
		filter.Limit = limit
	}

	return filter, nil
}

// resolveCategoryFilter accepts a category name where an id is expected
func (a *API) resolveCategoryFilter(ctx context.Context, category string) string {
	item, err := a.store.FindCatalogByName(ctx, models.KindCategory, category)
	if err != nil {
		return category
	}
	return item.ID
}

// GetRecipe handles GET /recipes/:id
func (a *API) GetRecipe(c *gin.Context) {
	id := c.Param("id")

	a.serveCached(c, a.config.DetailTTL, func(ctx context.Context) (interface{}, error) {
		recipe, err := a.store.GetRecipe(ctx, id)
		if err != nil {
			return nil, err
		}
		rating, err := a.store.RatingSummary(ctx, id)
		if err != nil {
			return nil, err
		}
		return models.RecipeDetail{Recipe: *recipe, Rating: rating}, nil
	})
}

// toRecipe resolves the request's category name and builds the document
func (a *API) toRecipe(ctx context.Context, req *recipeRequest) (*models.Recipe, error) {
	recipe := &models.Recipe{
		Title:        strings.TrimSpace(req.Title),
		Description:  req.Description,
		Area:         strings.TrimSpace(req.Area),
		Instructions: req.Instructions,
		Thumb:        req.Thumb,
		Ingredients:  make([]models.RecipeIngredient, 0, len(req.Ingredients)),
	}
	for _, ing := range req.Ingredients {
		recipe.Ingredients = append(recipe.Ingredients, models.RecipeIngredient{
			IngredientID: ing.IngredientID,
			Name:         ing.Name,
			Measure:      ing.Measure,
		})
	}

	if req.Category != "" {
		category, err := a.store.FindCatalogByName(ctx, models.KindCategory, req.Category)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, &requestError{msg: fmt.Sprintf("unknown category %q", req.Category)}
			}
			return nil, err
		}
		recipe.CategoryID = category.ID
	}

	return recipe, nil
}

// requestError is a client error detected by a handler
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

// CreateRecipe handles POST /recipes
func (a *API) CreateRecipe(c *gin.Context) {
	var req recipeRequest
	if !a.bind(c, &req) {
		return
	}

	ctx := writeContext(c)
	recipe, err := a.toRecipe(ctx, &req)
	if err != nil {
		a.fail(c, "failed to create recipe", err)
		return
	}
	recipe.OwnerID = middleware.UserID(c)

	if err := a.store.CreateRecipe(ctx, recipe); err != nil {
		a.fail(c, "failed to create recipe", err)
		return
	}
	a.invalidate(ctx, "/recipes", "/admin/stats")

	a.logger.Info("recipe created", zap.String("recipe_id", recipe.ID), zap.String("owner_id", recipe.OwnerID))
	c.JSON(http.StatusCreated, recipe)
}

// UpdateRecipe handles PUT /recipes/:id
func (a *API) UpdateRecipe(c *gin.Context) {
	var req recipeRequest
	if !a.bind(c, &req) {
		return
	}

	ctx := writeContext(c)
	id := c.Param("id")
	if !a.authorizeOwner(ctx, c, id) {
		return
	}

	recipe, err := a.toRecipe(ctx, &req)
	if err != nil {
		a.fail(c, "failed to update recipe", err)
		return
	}
	recipe.ID = id

	if err := a.store.UpdateRecipe(ctx, recipe); err != nil {
		a.fail(c, "failed to update recipe", err)
		return
	}
	a.invalidate(ctx, "/recipes", "/admin/stats")

	a.logger.Info("recipe updated", zap.String("recipe_id", id))
	c.JSON(http.StatusOK, recipe)
}

// DeleteRecipe handles DELETE /recipes/:id
func (a *API) DeleteRecipe(c *gin.Context) {
	ctx := writeContext(c)
	id := c.Param("id")
	if !a.authorizeOwner(ctx, c, id) {
		return
	}

	if err := a.store.DeleteRecipe(ctx, id); err != nil {
		a.fail(c, "failed to delete recipe", err)
		return
	}
	a.invalidate(ctx, "/recipes", "/admin/stats")

	a.logger.Info("recipe deleted", zap.String("recipe_id", id))
	c.JSON(http.StatusOK, gin.H{"message": "recipe deleted successfully"})
}

// authorizeOwner lets only the recipe's owner change it. Recipes without an
// owner are open to every caller.
func (a *API) authorizeOwner(ctx context.Context, c *gin.Context, id string) bool {
	existing, err := a.store.GetRecipe(ctx, id)
	if err != nil {
		a.fail(c, "failed to load recipe", err)
		return false
	}
	if existing.OwnerID != "" && existing.OwnerID != middleware.UserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the recipe owner can change it"})
		return false
	}
	return true
}
