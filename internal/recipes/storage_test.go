package recipes

import (
	"context"
	"errors"
	"testing"

	"github.com/Direwen/MealMate/internal/catalog"
	"github.com/Direwen/MealMate/internal/docstore"
)

type recordingCleaner struct {
	removed []string
}

func (r *recordingCleaner) RemoveRecipeIngredient(_ context.Context, recipeIngredientID string) error {
	r.removed = append(r.removed, recipeIngredientID)
	return nil
}

func newTestStorage() (*Storage, *catalog.Catalog) {
	store := docstore.NewMemory()
	cat := catalog.New(store)
	return NewStorage(store, cat), cat
}

func TestCreateWithIngredients(t *testing.T) {
	ctx := t.Context()
	storage, cat := newTestStorage()

	recipe, err := storage.CreateWithIngredients(ctx, "user-1", Fields{
		Title:           "Pancakes",
		Instructions:    "Mix and fry.",
		PreparationTime: 20,
		Servings:        4,
	}, []IngredientInput{
		{Name: "Flour", Amount: "2 cups", Category: "Baking"},
		{Name: "Eggs", Amount: "2"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if recipe.ID == "" || recipe.CreatorID != "user-1" {
		t.Fatalf("unexpected recipe: %+v", recipe)
	}
	if recipe.CreatedAt.IsZero() || !recipe.UpdatedAt.Equal(recipe.CreatedAt) {
		t.Fatalf("expected matching timestamps, got %v / %v", recipe.CreatedAt, recipe.UpdatedAt)
	}

	_, details, err := storage.GetWithIngredients(ctx, recipe.ID)
	if err != nil {
		t.Fatalf("get with ingredients: %v", err)
	}
	if len(details) != 2 {
		t.Fatalf("expected 2 requirements, got %d", len(details))
	}

	flour, err := cat.GetOrCreate(ctx, "Flour")
	if err != nil {
		t.Fatalf("lookup flour: %v", err)
	}
	if flour.CategoryID == "" {
		t.Fatal("expected flour filed under its category")
	}
}

func TestCreateSharesCatalogIngredients(t *testing.T) {
	ctx := t.Context()
	storage, cat := newTestStorage()

	a, err := storage.CreateWithIngredients(ctx, "user-1", Fields{Title: "A"}, []IngredientInput{{Name: "Flour", Amount: "2 cups"}})
	if err != nil {
		t.Fatalf("create a: %v", err)
	}
	b, err := storage.CreateWithIngredients(ctx, "user-1", Fields{Title: "B"}, []IngredientInput{{Name: "Flour", Amount: "1 cup"}})
	if err != nil {
		t.Fatalf("create b: %v", err)
	}

	linksA, err := storage.Ingredients(ctx, a.ID)
	if err != nil {
		t.Fatalf("links a: %v", err)
	}
	linksB, err := storage.Ingredients(ctx, b.ID)
	if err != nil {
		t.Fatalf("links b: %v", err)
	}
	if linksA[0].IngredientID != linksB[0].IngredientID {
		t.Fatalf("expected both recipes to share one catalog entry, got %s and %s", linksA[0].IngredientID, linksB[0].IngredientID)
	}

	all, err := cat.GetByIDs(ctx, []string{linksA[0].IngredientID})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(all) != 1 || all[0].Name != "Flour" {
		t.Fatalf("unexpected catalog state: %+v", all)
	}
}

func TestUpdateWithIngredientsAmountInPlace(t *testing.T) {
	ctx := t.Context()
	storage, _ := newTestStorage()

	recipe, err := storage.CreateWithIngredients(ctx, "user-1", Fields{Title: "Pancakes"}, []IngredientInput{
		{Name: "Flour", Amount: "2 cups"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	before, err := storage.Ingredients(ctx, recipe.ID)
	if err != nil {
		t.Fatalf("links: %v", err)
	}

	cleaner := &recordingCleaner{}
	err = storage.UpdateWithIngredients(ctx, recipe.ID, Fields{Title: "Pancakes"}, []IngredientInput{
		{Name: "Flour", Amount: "3 cups"},
	}, cleaner)
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	after, err := storage.Ingredients(ctx, recipe.ID)
	if err != nil {
		t.Fatalf("links: %v", err)
	}
	if len(after) != 1 {
		t.Fatalf("expected 1 link, got %d", len(after))
	}
	if after[0].ID != before[0].ID {
		t.Fatalf("amount change must keep the link, got new id %s", after[0].ID)
	}
	if after[0].Amount != "3 cups" {
		t.Fatalf("expected updated amount, got %q", after[0].Amount)
	}
	if len(cleaner.removed) != 0 {
		t.Fatalf("amount change must not clean grocery sources, cleaned %v", cleaner.removed)
	}
}

func TestUpdateWithIngredientsAddAndRemove(t *testing.T) {
	ctx := t.Context()
	storage, cat := newTestStorage()

	recipe, err := storage.CreateWithIngredients(ctx, "user-1", Fields{Title: "Cake"}, []IngredientInput{
		{Name: "Flour", Amount: "2 cups"},
		{Name: "Sugar", Amount: "1 cup"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	before, err := storage.Ingredients(ctx, recipe.ID)
	if err != nil {
		t.Fatalf("links: %v", err)
	}

	cleaner := &recordingCleaner{}
	err = storage.UpdateWithIngredients(ctx, recipe.ID, Fields{Title: "Salted Cake"}, []IngredientInput{
		{Name: "Flour", Amount: "2 cups"},
		{Name: "Salt", Amount: "1 tsp"},
	}, cleaner)
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	updated, err := storage.GetByID(ctx, recipe.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if updated.Title != "Salted Cake" {
		t.Fatalf("expected title updated, got %q", updated.Title)
	}
	if updated.UpdatedAt.Before(updated.CreatedAt) {
		t.Fatalf("expected updatedAt to advance, got %v", updated.UpdatedAt)
	}

	after, err := storage.Ingredients(ctx, recipe.ID)
	if err != nil {
		t.Fatalf("links: %v", err)
	}
	if len(after) != 2 {
		t.Fatalf("expected 2 links, got %d", len(after))
	}

	names := make(map[string]bool)
	ingredients, err := cat.GetByIDs(ctx, []string{after[0].IngredientID, after[1].IngredientID})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	for _, ing := range ingredients {
		names[ing.Name] = true
	}
	if !names["Flour"] || !names["Salt"] || names["Sugar"] {
		t.Fatalf("expected flour and salt only, got %v", names)
	}

	// The removed sugar link must have had its grocery sources cleaned.
	sugarLink := ""
	for _, ri := range before {
		found := false
		for _, now := range after {
			if now.ID == ri.ID {
				found = true
			}
		}
		if !found {
			sugarLink = ri.ID
		}
	}
	if len(cleaner.removed) != 1 || cleaner.removed[0] != sugarLink {
		t.Fatalf("expected cleaner called for %s, got %v", sugarLink, cleaner.removed)
	}
}

func TestUpdateMissingRecipe(t *testing.T) {
	storage, _ := newTestStorage()
	err := storage.UpdateWithIngredients(t.Context(), "nope", Fields{Title: "x"}, nil, nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetByCreatorID(t *testing.T) {
	ctx := t.Context()
	storage, _ := newTestStorage()

	if _, err := storage.CreateWithIngredients(ctx, "user-1", Fields{Title: "A"}, nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := storage.CreateWithIngredients(ctx, "user-1", Fields{Title: "B"}, nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := storage.CreateWithIngredients(ctx, "user-2", Fields{Title: "C"}, nil); err != nil {
		t.Fatalf("create: %v", err)
	}

	mine, err := storage.GetByCreatorID(ctx, "user-1")
	if err != nil {
		t.Fatalf("get by creator: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("expected 2 recipes, got %d", len(mine))
	}
}

func TestDeleteLinks(t *testing.T) {
	ctx := t.Context()
	storage, _ := newTestStorage()

	recipe, err := storage.CreateWithIngredients(ctx, "user-1", Fields{Title: "Cake"}, []IngredientInput{
		{Name: "Flour", Amount: "2 cups"},
		{Name: "Sugar", Amount: "1 cup"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := storage.DeleteLinks(ctx, recipe.ID); err != nil {
		t.Fatalf("delete links: %v", err)
	}
	links, err := storage.Ingredients(ctx, recipe.ID)
	if err != nil {
		t.Fatalf("links: %v", err)
	}
	if len(links) != 0 {
		t.Fatalf("expected no links, got %d", len(links))
	}
}
