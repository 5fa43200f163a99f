package models

import "time"

// GroceryListItem is an ingredient on a user's grocery list
type GroceryListItem struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	IngredientID string    `json:"ingredient_id"`
	RecipeID     string    `json:"recipe_id,omitempty"`
	Quantity     string    `json:"quantity"`
	Purchased    bool      `json:"purchased"`
	UpdatedAt    time.Time `json:"updated_at"`
}
