package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"recipebox/internal/middleware"
	"recipebox/internal/reconciler"
)

// Favorites and grocery lists belong to one user, so none of these routes
// go through the response cache.

type groceryRequest struct {
	IngredientID string `json:"ingredient_id" binding:"required"`
	RecipeID     string `json:"recipe_id"`
	Quantity     string `json:"quantity" binding:"required,quantity"`
}

// ListFavorites handles GET /favorites
func (a *API) ListFavorites(c *gin.Context) {
	ids, err := a.reconciler.ListFavorites(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		a.fail(c, "failed to list favorites", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"recipe_ids": ids, "count": len(ids)})
}

// ToggleFavorite handles POST /favorites/:recipeId/toggle
func (a *API) ToggleFavorite(c *gin.Context) {
	recipeID := c.Param("recipeId")

	result, err := a.reconciler.ToggleMembership(c.Request.Context(), middleware.UserID(c), recipeID)
	if err != nil {
		a.fail(c, "failed to toggle favorite", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"recipe_id": recipeID, "result": result})
}

// ListGroceryItems handles GET /grocery
func (a *API) ListGroceryItems(c *gin.Context) {
	items, err := a.reconciler.ListGroceryItems(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		a.fail(c, "failed to list grocery items", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

// AddGroceryItem handles POST /grocery
func (a *API) AddGroceryItem(c *gin.Context) {
	var req groceryRequest
	if !a.bind(c, &req) {
		return
	}

	item, err := a.reconciler.AddGroceryItem(c.Request.Context(), middleware.UserID(c), reconciler.GroceryInput{
		IngredientID: req.IngredientID,
		RecipeID:     req.RecipeID,
		Quantity:     req.Quantity,
	})
	if err != nil {
		a.fail(c, "failed to add grocery item", err)
		return
	}

	c.JSON(http.StatusCreated, item)
}

// ToggleGroceryItem handles POST /grocery/:id/toggle
func (a *API) ToggleGroceryItem(c *gin.Context) {
	item, err := a.reconciler.ToggleGroceryPurchased(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		a.fail(c, "failed to toggle grocery item", err)
		return
	}

	c.JSON(http.StatusOK, item)
}

// RemoveGroceryItem handles DELETE /grocery/:id
func (a *API) RemoveGroceryItem(c *gin.Context) {
	removed, err := a.reconciler.RemoveGroceryItem(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		a.fail(c, "failed to remove grocery item", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"removed": removed})
}
