package groceries

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/Direwen/MealMate/internal/docstore"
)

// Sources is the provenance ledger: one record per (list, recipe-ingredient)
// contribution. Every consolidation decision reads through it.
type Sources struct {
	store docstore.Store
}

func NewSources(store docstore.Store) *Sources {
	return &Sources{store: store}
}

func (s *Sources) Create(ctx context.Context, listID, itemID, recipeIngredientID string) (*Source, error) {
	source := &Source{
		ID:                 uuid.NewString(),
		GroceryListID:      listID,
		GroceryItemID:      itemID,
		RecipeIngredientID: recipeIngredientID,
	}
	if err := s.store.Set(ctx, sourceCollection, source.ID, source); err != nil {
		return nil, fmt.Errorf("failed to create grocery item source: %w", err)
	}
	return source, nil
}

func (s *Sources) ByList(ctx context.Context, listID string) ([]Source, error) {
	docs, err := s.store.Query(ctx, sourceCollection, []docstore.Filter{docstore.Eq("groceryListId", listID)}, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources for list %s: %w", listID, err)
	}
	return docstore.DecodeAll[Source](docs)
}

func (s *Sources) ByItem(ctx context.Context, itemID string) ([]Source, error) {
	docs, err := s.store.Query(ctx, sourceCollection, []docstore.Filter{docstore.Eq("groceryItemId", itemID)}, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources for item %s: %w", itemID, err)
	}
	return docstore.DecodeAll[Source](docs)
}

// ByRecipeIngredient finds the sources a requirement produced in every list
// that imported it, the index used when a recipe sheds an ingredient.
func (s *Sources) ByRecipeIngredient(ctx context.Context, recipeIngredientID string) ([]Source, error) {
	docs, err := s.store.Query(ctx, sourceCollection, []docstore.Filter{docstore.Eq("recipeIngredientId", recipeIngredientID)}, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources for recipe ingredient %s: %w", recipeIngredientID, err)
	}
	return docstore.DecodeAll[Source](docs)
}

// ByRecipeIngredientIDs finds this list's sources for any of the given
// requirements, chunking to the store's "in" limit.
func (s *Sources) ByRecipeIngredientIDs(ctx context.Context, listID string, recipeIngredientIDs []string) ([]Source, error) {
	ids := lo.Uniq(recipeIngredientIDs)
	if len(ids) == 0 {
		return nil, nil
	}

	chunks := lo.Chunk(ids, docstore.MaxInValues)
	results := make([][]Source, len(chunks))

	g, ctx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		g.Go(func() error {
			docs, err := s.store.QueryIn(ctx, sourceCollection, "recipeIngredientId", chunk, docstore.Eq("groceryListId", listID))
			if err != nil {
				return fmt.Errorf("failed to fetch source chunk: %w", err)
			}
			results[i], err = docstore.DecodeAll[Source](docs)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return lo.Flatten(results), nil
}

// DeleteBatch removes a set of sources atomically.
func (s *Sources) DeleteBatch(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.store.BatchDelete(ctx, sourceCollection, ids); err != nil {
		return fmt.Errorf("failed to batch delete sources: %w", err)
	}
	return nil
}
