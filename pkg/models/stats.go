package models

// RecipePopularity counts how many users favorited a recipe
type RecipePopularity struct {
	RecipeID  string `json:"recipe_id"`
	Title     string `json:"title"`
	Favorites int64  `json:"favorites"`
}

// Stats is the admin dashboard aggregate
type Stats struct {
	Recipes       int64              `json:"recipes"`
	Categories    int64              `json:"categories"`
	Areas         int64              `json:"areas"`
	Ingredients   int64              `json:"ingredients"`
	Reviews       int64              `json:"reviews"`
	Favorites     int64              `json:"favorites"`
	GroceryItems  int64              `json:"grocery_items"`
	AverageRating float64            `json:"average_rating"`
	TopRecipes    []RecipePopularity `json:"top_recipes"`
}
