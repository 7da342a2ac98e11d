package recipes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/Direwen/MealMate/internal/catalog"
	"github.com/Direwen/MealMate/internal/docstore"
)

const (
	recipeCollection = "recipes"
	linkCollection   = "recipeIngredients"
)

var ErrNotFound = errors.New("recipe not found")

// SourceCleaner removes the grocery-list provenance of a recipe-ingredient
// link in every list that imported it, garbage-collecting grocery items left
// with no remaining source. Implemented by the grocery engine.
type SourceCleaner interface {
	RemoveRecipeIngredient(ctx context.Context, recipeIngredientID string) error
}

type Storage struct {
	store   docstore.Store
	catalog *catalog.Catalog
}

func NewStorage(store docstore.Store, cat *catalog.Catalog) *Storage {
	return &Storage{store: store, catalog: cat}
}

// CreateWithIngredients commits the recipe document first, then links its
// ingredients one by one. A failed link is logged and skipped rather than
// failing the whole recipe; the document is already committed.
func (s *Storage) CreateWithIngredients(ctx context.Context, creatorID string, fields Fields, inputs []IngredientInput) (*Recipe, error) {
	now := time.Now().UTC()
	recipe := &Recipe{
		ID:              uuid.NewString(),
		CreatorID:       creatorID,
		Title:           fields.Title,
		Instructions:    fields.Instructions,
		PreparationTime: fields.PreparationTime,
		Servings:        fields.Servings,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.store.Set(ctx, recipeCollection, recipe.ID, recipe); err != nil {
		return nil, fmt.Errorf("failed to create recipe: %w", err)
	}

	for _, input := range inputs {
		if err := s.link(ctx, recipe.ID, input); err != nil {
			slog.ErrorContext(ctx, "failed to link ingredient, skipping", "recipe", recipe.ID, "ingredient", input.Name, "error", err)
		}
	}
	return recipe, nil
}

func (s *Storage) link(ctx context.Context, recipeID string, input IngredientInput) error {
	ingredient, err := s.catalog.GetOrCreate(ctx, input.Name)
	if err != nil {
		return err
	}
	if input.Category != "" && ingredient.CategoryID == "" {
		if err := s.categorize(ctx, ingredient, input.Category); err != nil {
			slog.WarnContext(ctx, "failed to categorize ingredient", "ingredient", ingredient.ID, "category", input.Category, "error", err)
		}
	}
	link := &RecipeIngredient{
		ID:           uuid.NewString(),
		RecipeID:     recipeID,
		IngredientID: ingredient.ID,
		Amount:       input.Amount,
	}
	if err := s.store.Set(ctx, linkCollection, link.ID, link); err != nil {
		return fmt.Errorf("failed to create recipe ingredient: %w", err)
	}
	return nil
}

func (s *Storage) categorize(ctx context.Context, ingredient *catalog.Ingredient, categoryName string) error {
	category, err := s.catalog.EnsureCategory(ctx, categoryName)
	if err != nil {
		return err
	}
	return s.catalog.AssignCategory(ctx, ingredient.ID, category.ID)
}

// UpdateWithIngredients patches the scalar fields and diffs the ingredient
// set by resolved name. Removed names lose their link and their grocery
// sources everywhere; added names get a fresh link (NOT auto-imported into
// any grocery list); kept names with a new amount are updated in place.
func (s *Storage) UpdateWithIngredients(ctx context.Context, recipeID string, fields Fields, inputs []IngredientInput, cleaner SourceCleaner) error {
	updates := map[string]any{
		"title":           fields.Title,
		"instructions":    fields.Instructions,
		"preparationTime": fields.PreparationTime,
		"servings":        fields.Servings,
		"updatedAt":       time.Now().UTC(),
	}
	if err := s.store.Update(ctx, recipeCollection, recipeID, updates); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update recipe: %w", err)
	}

	current, err := s.Ingredients(ctx, recipeID)
	if err != nil {
		return err
	}
	ingredients, err := s.catalog.GetByIDs(ctx, lo.Map(current, func(ri RecipeIngredient, _ int) string { return ri.IngredientID }))
	if err != nil {
		return err
	}
	nameByID := lo.SliceToMap(ingredients, func(i catalog.Ingredient) (string, string) { return i.ID, i.Name })

	currentByName := make(map[string]RecipeIngredient, len(current))
	for _, ri := range current {
		name, ok := nameByID[ri.IngredientID]
		if !ok {
			slog.WarnContext(ctx, "recipe ingredient references unknown ingredient", "recipe", recipeID, "ingredientId", ri.IngredientID)
			continue
		}
		currentByName[name] = ri
	}
	inputByName := lo.SliceToMap(inputs, func(in IngredientInput) (string, IngredientInput) { return in.Name, in })

	// Removals first, so a concurrent reader never sees a duplicate entry.
	for name, ri := range currentByName {
		if _, keep := inputByName[name]; keep {
			continue
		}
		if err := s.store.Delete(ctx, linkCollection, ri.ID); err != nil {
			return fmt.Errorf("failed to delete recipe ingredient %s: %w", ri.ID, err)
		}
		if cleaner == nil {
			continue
		}
		if err := cleaner.RemoveRecipeIngredient(ctx, ri.ID); err != nil {
			// Best-effort: a stale source is healed by the next list read.
			slog.ErrorContext(ctx, "failed to clean grocery sources", "recipeIngredient", ri.ID, "error", err)
		}
	}

	for name, input := range inputByName {
		existing, ok := currentByName[name]
		if !ok {
			if err := s.link(ctx, recipeID, input); err != nil {
				slog.ErrorContext(ctx, "failed to link ingredient, skipping", "recipe", recipeID, "ingredient", input.Name, "error", err)
			}
			continue
		}
		if existing.Amount != input.Amount {
			if err := s.store.Update(ctx, linkCollection, existing.ID, map[string]any{"amount": input.Amount}); err != nil {
				return fmt.Errorf("failed to update amount for %s: %w", existing.ID, err)
			}
		}
	}
	return nil
}

func (s *Storage) GetByID(ctx context.Context, id string) (*Recipe, error) {
	raw, err := s.store.Get(ctx, recipeCollection, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return docstore.Decode[Recipe](raw)
}

// GetWithIngredients loads a recipe and its requirements enriched with the
// resolved ingredients. Links whose ingredient no longer resolves are dropped
// with a logged error.
func (s *Storage) GetWithIngredients(ctx context.Context, id string) (*Recipe, []Detail, error) {
	recipe, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	links, err := s.Ingredients(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	ingredients, err := s.catalog.GetByIDs(ctx, lo.Map(links, func(ri RecipeIngredient, _ int) string { return ri.IngredientID }))
	if err != nil {
		return nil, nil, err
	}
	byID := lo.SliceToMap(ingredients, func(i catalog.Ingredient) (string, catalog.Ingredient) { return i.ID, i })

	details := make([]Detail, 0, len(links))
	for _, ri := range links {
		ingredient, ok := byID[ri.IngredientID]
		if !ok {
			slog.ErrorContext(ctx, "recipe ingredient references missing ingredient", "recipe", id, "ingredientId", ri.IngredientID)
			continue
		}
		details = append(details, Detail{RecipeIngredient: ri, Ingredient: ingredient})
	}
	return recipe, details, nil
}

// Ingredients returns the raw requirement links for a recipe.
func (s *Storage) Ingredients(ctx context.Context, recipeID string) ([]RecipeIngredient, error) {
	docs, err := s.store.Query(ctx, linkCollection, []docstore.Filter{docstore.Eq("recipeId", recipeID)}, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to query recipe ingredients: %w", err)
	}
	return docstore.DecodeAll[RecipeIngredient](docs)
}

func (s *Storage) GetByCreatorID(ctx context.Context, creatorID string) ([]Recipe, error) {
	docs, err := s.store.Query(ctx, recipeCollection, []docstore.Filter{docstore.Eq("creatorId", creatorID)}, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to query recipes for %s: %w", creatorID, err)
	}
	return docstore.DecodeAll[Recipe](docs)
}

// GetByIDs batch-fetches recipes, chunked to the store's "in" limit.
func (s *Storage) GetByIDs(ctx context.Context, ids []string) ([]Recipe, error) {
	ids = lo.Uniq(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	chunks := lo.Chunk(ids, docstore.MaxInValues)
	results := make([][]Recipe, len(chunks))

	g, ctx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		g.Go(func() error {
			docs, err := s.store.QueryIn(ctx, recipeCollection, "id", chunk)
			if err != nil {
				return fmt.Errorf("failed to fetch recipe chunk: %w", err)
			}
			results[i], err = docstore.DecodeAll[Recipe](docs)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return lo.Flatten(results), nil
}

// LinksByIDs batch-fetches requirement links by id, chunked like GetByIDs.
func (s *Storage) LinksByIDs(ctx context.Context, ids []string) ([]RecipeIngredient, error) {
	ids = lo.Uniq(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	chunks := lo.Chunk(ids, docstore.MaxInValues)
	results := make([][]RecipeIngredient, len(chunks))

	g, ctx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		g.Go(func() error {
			docs, err := s.store.QueryIn(ctx, linkCollection, "id", chunk)
			if err != nil {
				return fmt.Errorf("failed to fetch recipe ingredient chunk: %w", err)
			}
			results[i], err = docstore.DecodeAll[RecipeIngredient](docs)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return lo.Flatten(results), nil
}

// Delete removes the bare recipe document. Callers want the grocery engine's
// cascade, not this.
func (s *Storage) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, recipeCollection, id)
}

// DeleteLinks removes every requirement link of a recipe in one atomic batch.
func (s *Storage) DeleteLinks(ctx context.Context, recipeID string) error {
	links, err := s.Ingredients(ctx, recipeID)
	if err != nil {
		return err
	}
	if len(links) == 0 {
		return nil
	}
	ids := lo.Map(links, func(ri RecipeIngredient, _ int) string { return ri.ID })
	return s.store.BatchDelete(ctx, linkCollection, ids)
}

// SetImagePath records where the recipe photo was stored.
func (s *Storage) SetImagePath(ctx context.Context, recipeID, path string) error {
	return s.store.Update(ctx, recipeCollection, recipeID, map[string]any{"imagePath": path})
}
