package models

import (
	"math"
	"time"
)

// RecipeIngredient is one line of a recipe's ingredient list
type RecipeIngredient struct {
	IngredientID string `json:"ingredient_id"`
	Name         string `json:"name"`
	Measure      string `json:"measure"`
}

// Recipe is the recipe document
type Recipe struct {
	ID           string             `json:"id"`
	Title        string             `json:"title"`
	Description  string             `json:"description"`
	CategoryID   string             `json:"category_id"`
	Area         string             `json:"area"`
	Ingredients  []RecipeIngredient `json:"ingredients"`
	Instructions string             `json:"instructions"`
	Thumb        string             `json:"thumb"`
	OwnerID      string             `json:"owner_id"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// RatingSummary aggregates the reviews of a recipe
type RatingSummary struct {
	Count   int64   `json:"count"`
	Average float64 `json:"average"`
}

// RecipeDetail is a recipe with its rating summary
type RecipeDetail struct {
	Recipe
	Rating RatingSummary `json:"rating"`
}

// RecipeFilter narrows a recipe listing
type RecipeFilter struct {
	Query        string
	CategoryID   string
	Area         string
	IngredientID string
	OwnerID      string
	Page         int
	Limit        int
}

// Offset returns the number of recipes skipped by the filter's page
func (f RecipeFilter) Offset() int {
	if f.Page <= 1 || f.Limit <= 0 {
		return 0
	}
	if f.Page-1 > math.MaxInt/f.Limit {
		return math.MaxInt
	}
	return (f.Page - 1) * f.Limit
}

// RecipePage is one page of a recipe listing
type RecipePage struct {
	Recipes []Recipe `json:"recipes"`
	Total   int64    `json:"total"`
	Page    int      `json:"page"`
	Limit   int      `json:"limit"`
}
