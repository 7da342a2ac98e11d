package groceries

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"sort"

	"github.com/samber/lo"

	"github.com/Direwen/MealMate/internal/catalog"
	"github.com/Direwen/MealMate/internal/docstore"
	"github.com/Direwen/MealMate/internal/recipes"
)

var ErrItemNotFound = errors.New("grocery item not found")

// Engine runs the consolidation algorithms across lists, items and sources.
// None of its multi-step sequences are transactional; within one import,
// deletions are strictly ordered before creations, and orphans left by a
// partial failure are healed on the next read.
type Engine struct {
	store   docstore.Store
	lists   *Lists
	sources *Sources
	recipes *recipes.Storage
	catalog *catalog.Catalog
}

var _ recipes.SourceCleaner = (*Engine)(nil)

func NewEngine(store docstore.Store, recipeStore *recipes.Storage, cat *catalog.Catalog) *Engine {
	return &Engine{
		store:   store,
		lists:   NewLists(store),
		sources: NewSources(store),
		recipes: recipeStore,
		catalog: cat,
	}
}

func (e *Engine) Lists() *Lists { return e.lists }

// itemID derives the grocery item id from its (list, ingredient) identity,
// so two racing imports of the same ingredient converge on the same document
// and the create below is an idempotent upsert.
func itemID(listID, ingredientID string) string {
	h := fnv.New64a()
	lo.Must(io.WriteString(h, listID))
	lo.Must(io.WriteString(h, "/"))
	lo.Must(io.WriteString(h, ingredientID))
	return fmt.Sprintf("gi-%016x", h.Sum64())
}

func (e *Engine) getOrCreateItem(ctx context.Context, listID, ingredientID string) (*Item, error) {
	docs, err := e.store.Query(ctx, itemCollection, []docstore.Filter{
		docstore.Eq("groceryListId", listID),
		docstore.Eq("ingredientId", ingredientID),
	}, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to look up grocery item: %w", err)
	}
	if len(docs) > 0 {
		return docstore.Decode[Item](docs[0])
	}

	item := &Item{
		ID:            itemID(listID, ingredientID),
		GroceryListID: listID,
		IngredientID:  ingredientID,
		Purchased:     false,
	}
	if err := e.store.Set(ctx, itemCollection, item.ID, item); err != nil {
		return nil, fmt.Errorf("failed to create grocery item: %w", err)
	}
	return item, nil
}

// Import adds a recipe's requirements to a list. Re-importing replaces the
// recipe's prior contribution: existing sources for these requirements are
// removed first (with orphan cleanup), then one fresh source is written per
// requirement against the list's consolidated item for that ingredient.
func (e *Engine) Import(ctx context.Context, listID string, details []recipes.Detail) error {
	if len(details) == 0 {
		return nil
	}

	riIDs := lo.Map(details, func(d recipes.Detail, _ int) string { return d.RecipeIngredient.ID })
	existing, err := e.sources.ByRecipeIngredientIDs(ctx, listID, riIDs)
	if err != nil {
		return err
	}

	if len(existing) > 0 {
		if err := e.sources.DeleteBatch(ctx, lo.Map(existing, func(s Source, _ int) string { return s.ID })); err != nil {
			return err
		}
		// Items whose last source was just removed must go before anything
		// is recreated, or a stale purchased flag could outlive its entry.
		touched := lo.Uniq(lo.Map(existing, func(s Source, _ int) string { return s.GroceryItemID }))
		for _, id := range touched {
			remaining, err := e.sources.ByItem(ctx, id)
			if err != nil {
				return err
			}
			if len(remaining) > 0 {
				continue
			}
			if err := e.store.Delete(ctx, itemCollection, id); err != nil {
				return fmt.Errorf("failed to delete orphaned grocery item %s: %w", id, err)
			}
		}
	}

	for _, detail := range details {
		item, err := e.getOrCreateItem(ctx, listID, detail.Ingredient.ID)
		if err != nil {
			return err
		}
		if _, err := e.sources.Create(ctx, listID, item.ID, detail.RecipeIngredient.ID); err != nil {
			return err
		}
	}

	slog.InfoContext(ctx, "imported recipe ingredients", "list", listID, "count", len(details), "replaced", len(existing))
	return nil
}

// All returns the display rows for a list: one row per surviving item with
// its per-recipe contributions. Items found with zero sources are deleted on
// the spot; rows whose ingredient no longer resolves are dropped with a
// logged error rather than failing the read.
func (e *Engine) All(ctx context.Context, listID string) ([]ItemView, error) {
	docs, err := e.store.Query(ctx, itemCollection, []docstore.Filter{docstore.Eq("groceryListId", listID)}, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to query grocery items: %w", err)
	}
	items, err := docstore.DecodeAll[Item](docs)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	sources, err := e.sources.ByList(ctx, listID)
	if err != nil {
		return nil, err
	}
	sourcesByItem := lo.GroupBy(sources, func(s Source) string { return s.GroceryItemID })

	// Self-healing sweep: partial failures elsewhere can strand items.
	items = lo.Filter(items, func(item Item, _ int) bool {
		if len(sourcesByItem[item.ID]) > 0 {
			return true
		}
		slog.WarnContext(ctx, "deleting orphaned grocery item", "item", item.ID, "list", listID)
		if err := e.store.Delete(ctx, itemCollection, item.ID); err != nil {
			slog.ErrorContext(ctx, "failed to delete orphaned grocery item", "item", item.ID, "error", err)
		}
		return false
	})

	links, err := e.recipes.LinksByIDs(ctx, lo.Map(sources, func(s Source, _ int) string { return s.RecipeIngredientID }))
	if err != nil {
		return nil, err
	}
	linkByID := lo.SliceToMap(links, func(ri recipes.RecipeIngredient) (string, recipes.RecipeIngredient) { return ri.ID, ri })

	recipeDocs, err := e.recipes.GetByIDs(ctx, lo.Map(links, func(ri recipes.RecipeIngredient, _ int) string { return ri.RecipeID }))
	if err != nil {
		return nil, err
	}
	recipeByID := lo.SliceToMap(recipeDocs, func(r recipes.Recipe) (string, recipes.Recipe) { return r.ID, r })

	ingredients, err := e.catalog.GetByIDs(ctx, lo.Map(items, func(i Item, _ int) string { return i.IngredientID }))
	if err != nil {
		return nil, err
	}
	ingredientByID := lo.SliceToMap(ingredients, func(i catalog.Ingredient) (string, catalog.Ingredient) { return i.ID, i })

	views := make([]ItemView, 0, len(items))
	for _, item := range items {
		ingredient, ok := ingredientByID[item.IngredientID]
		if !ok {
			slog.ErrorContext(ctx, "grocery item references missing ingredient", "item", item.ID, "ingredientId", item.IngredientID)
			continue
		}

		var contributions []Contribution
		for _, source := range sourcesByItem[item.ID] {
			link, ok := linkByID[source.RecipeIngredientID]
			if !ok {
				slog.WarnContext(ctx, "source references missing recipe ingredient", "source", source.ID, "recipeIngredientId", source.RecipeIngredientID)
				continue
			}
			recipe, ok := recipeByID[link.RecipeID]
			if !ok {
				slog.WarnContext(ctx, "source references missing recipe", "source", source.ID, "recipeId", link.RecipeID)
				continue
			}
			contributions = append(contributions, Contribution{RecipeTitle: recipe.Title, Amount: link.Amount})
		}
		sort.Slice(contributions, func(i, j int) bool { return contributions[i].RecipeTitle < contributions[j].RecipeTitle })

		views = append(views, ItemView{
			ID:            item.ID,
			Name:          ingredient.Name,
			Purchased:     item.Purchased,
			Contributions: contributions,
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Name < views[j].Name })
	return views, nil
}

// Orphans scans every list for items no source references. Normal reads heal
// these lazily per list; this is the bulk variant for offline sweeps.
func (e *Engine) Orphans(ctx context.Context) ([]Item, error) {
	docs, err := e.store.Query(ctx, itemCollection, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to query grocery items: %w", err)
	}
	items, err := docstore.DecodeAll[Item](docs)
	if err != nil {
		return nil, err
	}

	sourceDocs, err := e.store.Query(ctx, sourceCollection, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to query grocery item sources: %w", err)
	}
	sources, err := docstore.DecodeAll[Source](sourceDocs)
	if err != nil {
		return nil, err
	}

	referenced := lo.SliceToMap(sources, func(s Source) (string, struct{}) { return s.GroceryItemID, struct{}{} })
	orphans := lo.Filter(items, func(item Item, _ int) bool {
		_, ok := referenced[item.ID]
		return !ok
	})
	sort.Slice(orphans, func(i, j int) bool { return orphans[i].ID < orphans[j].ID })
	return orphans, nil
}

// Item fetches one grocery item.
func (e *Engine) Item(ctx context.Context, itemID string) (*Item, error) {
	raw, err := e.store.Get(ctx, itemCollection, itemID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}
	return docstore.Decode[Item](raw)
}

// TogglePurchased flips the purchased flag. No cross-entity effects.
func (e *Engine) TogglePurchased(ctx context.Context, itemID string) error {
	raw, err := e.store.Get(ctx, itemCollection, itemID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrItemNotFound
		}
		return err
	}
	item, err := docstore.Decode[Item](raw)
	if err != nil {
		return err
	}
	return e.store.Update(ctx, itemCollection, itemID, map[string]any{"purchased": !item.Purchased})
}

// DeleteItem removes the bare item document.
func (e *Engine) DeleteItem(ctx context.Context, itemID string) error {
	return e.store.Delete(ctx, itemCollection, itemID)
}

// DeleteItemAndSources removes an item and its whole provenance; sources go
// first so no read ever needs to heal a dangling source.
func (e *Engine) DeleteItemAndSources(ctx context.Context, itemID string) error {
	sources, err := e.sources.ByItem(ctx, itemID)
	if err != nil {
		return err
	}
	if err := e.sources.DeleteBatch(ctx, lo.Map(sources, func(s Source, _ int) string { return s.ID })); err != nil {
		return err
	}
	return e.DeleteItem(ctx, itemID)
}

// RemoveRecipeIngredient erases a requirement's contribution from every list
// that imported it, deleting items left with no remaining source. Called when
// a recipe sheds an ingredient or is deleted.
func (e *Engine) RemoveRecipeIngredient(ctx context.Context, recipeIngredientID string) error {
	sources, err := e.sources.ByRecipeIngredient(ctx, recipeIngredientID)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return nil
	}

	if err := e.sources.DeleteBatch(ctx, lo.Map(sources, func(s Source, _ int) string { return s.ID })); err != nil {
		return err
	}

	for _, id := range lo.Uniq(lo.Map(sources, func(s Source, _ int) string { return s.GroceryItemID })) {
		remaining, err := e.sources.ByItem(ctx, id)
		if err != nil {
			return err
		}
		if len(remaining) > 0 {
			continue
		}
		if err := e.store.Delete(ctx, itemCollection, id); err != nil {
			return fmt.Errorf("failed to delete orphaned grocery item %s: %w", id, err)
		}
	}
	return nil
}

// DeleteRecipeCascade is the one way to delete a recipe: grocery sources and
// orphaned items first, then the requirement links, then the recipe document.
// Failing partway leaves everything retryable and nothing dangling that a
// list read cannot heal.
func (e *Engine) DeleteRecipeCascade(ctx context.Context, recipeID string) error {
	links, err := e.recipes.Ingredients(ctx, recipeID)
	if err != nil {
		return err
	}
	for _, link := range links {
		if err := e.RemoveRecipeIngredient(ctx, link.ID); err != nil {
			return fmt.Errorf("failed to remove grocery contribution of %s: %w", link.ID, err)
		}
	}
	if err := e.recipes.DeleteLinks(ctx, recipeID); err != nil {
		return fmt.Errorf("failed to delete recipe ingredients: %w", err)
	}
	if err := e.recipes.Delete(ctx, recipeID); err != nil {
		return fmt.Errorf("failed to delete recipe: %w", err)
	}
	slog.InfoContext(ctx, "deleted recipe with cascade", "recipe", recipeID, "links", len(links))
	return nil
}
