package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/Direwen/MealMate/internal/catalog"
	"github.com/Direwen/MealMate/internal/docstore"
	"github.com/Direwen/MealMate/internal/groceries"
	"github.com/Direwen/MealMate/internal/recipes"
)

func seedStore(t *testing.T) (docstore.Store, *groceries.Engine) {
	t.Helper()
	ctx := context.Background()
	store := docstore.NewMemory()

	seed := []struct {
		collection string
		id         string
		doc        any
	}{
		{"groceryItems", "gi-live", groceries.Item{ID: "gi-live", GroceryListID: "list-1", IngredientID: "ing-flour"}},
		{"groceryItems", "gi-orphan", groceries.Item{ID: "gi-orphan", GroceryListID: "list-1", IngredientID: "ing-sugar"}},
		{"groceryItemSources", "src-1", groceries.Source{ID: "src-1", GroceryListID: "list-1", GroceryItemID: "gi-live", RecipeIngredientID: "ri-1"}},
	}
	for _, s := range seed {
		if err := store.Set(ctx, s.collection, s.id, s.doc); err != nil {
			t.Fatalf("seed %s/%s: %v", s.collection, s.id, err)
		}
	}

	cat := catalog.New(store)
	return store, groceries.NewEngine(store, recipes.NewStorage(store, cat), cat)
}

func TestSweepOrphanItemsApply(t *testing.T) {
	ctx := context.Background()
	store, engine := seedStore(t)

	stats, err := sweepOrphanItems(ctx, engine, true, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("sweep orphan items: %v", err)
	}
	if stats.Found != 1 || stats.Deleted != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.WouldDelete != 0 || stats.DeleteErrors != 0 {
		t.Fatalf("unexpected dry-run/delete errors stats: %+v", stats)
	}

	if _, err := store.Get(ctx, "groceryItems", "gi-live"); err != nil {
		t.Fatalf("expected referenced item to remain: %v", err)
	}
	if _, err := store.Get(ctx, "groceryItems", "gi-orphan"); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("expected orphan removed, got err=%v", err)
	}
}

func TestSweepOrphanItemsDryRun(t *testing.T) {
	ctx := context.Background()
	store, engine := seedStore(t)

	stats, err := sweepOrphanItems(ctx, engine, false, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("sweep orphan items: %v", err)
	}
	if stats.Found != 1 || stats.WouldDelete != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.Deleted != 0 || stats.DeleteErrors != 0 {
		t.Fatalf("unexpected apply/delete errors stats: %+v", stats)
	}

	if _, err := store.Get(ctx, "groceryItems", "gi-orphan"); err != nil {
		t.Fatalf("expected orphan to remain in dry-run: %v", err)
	}
}
