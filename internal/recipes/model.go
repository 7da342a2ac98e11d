package recipes

import (
	"time"

	"github.com/Direwen/MealMate/internal/catalog"
)

// Recipe is owned by its creator. Deleting one must go through the grocery
// engine's cascade so recipe-ingredient links and grocery sources are cleaned
// up with it.
type Recipe struct {
	ID              string    `json:"id"`
	CreatorID       string    `json:"creatorId"`
	Title           string    `json:"title"`
	Instructions    string    `json:"instructions"`
	PreparationTime int       `json:"preparationTime"` // minutes
	Servings        int       `json:"servings"`
	ImagePath       string    `json:"imagePath,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// RecipeIngredient records that a recipe requires some amount of an
// ingredient. Amount is a free-form quantity string ("3 cups").
type RecipeIngredient struct {
	ID           string `json:"id"`
	RecipeID     string `json:"recipeId"`
	IngredientID string `json:"ingredientId"`
	Amount       string `json:"amount"`
}

// IngredientInput is what recipe authoring forms submit. Category is
// optional; when present the ingredient is filed under that aisle category.
type IngredientInput struct {
	Name     string `json:"name"`
	Amount   string `json:"amount"`
	Category string `json:"category,omitempty"`
}

// Detail pairs a requirement with its resolved ingredient, the shape the
// grocery importer consumes.
type Detail struct {
	RecipeIngredient RecipeIngredient   `json:"recipeIngredient"`
	Ingredient       catalog.Ingredient `json:"ingredient"`
}

// Fields are the scalar recipe fields an update can change.
type Fields struct {
	Title           string `json:"title"`
	Instructions    string `json:"instructions"`
	PreparationTime int    `json:"preparationTime"`
	Servings        int    `json:"servings"`
}
