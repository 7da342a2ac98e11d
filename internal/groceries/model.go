// Package groceries consolidates the ingredient requirements of imported
// recipes into one de-duplicated shopping list per user, and keeps that list
// consistent as recipes are imported, edited and deleted. The source ledger
// (one Source per imported requirement) is what makes consolidation
// reversible.
package groceries

// List is a user's single grocery list, lazily created on first use.
type List struct {
	ID        string `json:"id"`
	CreatorID string `json:"creatorId"`
}

// Item is the consolidated shopping entry for one ingredient within one
// list. At most one Item exists per (groceryListId, ingredientId) pair.
type Item struct {
	ID            string `json:"id"`
	GroceryListID string `json:"groceryListId"`
	IngredientID  string `json:"ingredientId"`
	Purchased     bool   `json:"purchased"`
}

// Source is the provenance record linking an Item to one recipe-ingredient
// requirement that contributed to it. An item with zero sources is an orphan
// and is removed by the next read or by explicit cleanup.
type Source struct {
	ID                 string `json:"id"`
	GroceryListID      string `json:"groceryListId"`
	GroceryItemID      string `json:"groceryItemId"`
	RecipeIngredientID string `json:"recipeIngredientId"`
}

// Contribution is one recipe's share of an item, for display.
type Contribution struct {
	RecipeTitle string `json:"recipeTitle"`
	Amount      string `json:"amount"`
}

// ItemView is one display row of the shopping list.
type ItemView struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Purchased     bool           `json:"purchased"`
	Contributions []Contribution `json:"contributions"`
}

const (
	listCollection   = "groceryLists"
	itemCollection   = "groceryItems"
	sourceCollection = "groceryItemSources"
)
