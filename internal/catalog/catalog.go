// Package catalog holds the canonical ingredient names shared by every
// recipe and grocery list, plus the aisle categories they belong to.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/Direwen/MealMate/internal/docstore"
)

const (
	ingredientCollection = "ingredients"
	categoryCollection   = "categories"
)

// Ingredient is a canonical named food item. Ingredients are shared across
// recipes and users and are never deleted by the core flows.
type Ingredient struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CategoryID string `json:"categoryId,omitempty"`
}

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Catalog struct {
	store docstore.Store
}

func New(store docstore.Store) *Catalog {
	return &Catalog{store: store}
}

// GetOrCreate returns the ingredient with the given name, creating it on
// first use. Query-then-create; two racing callers can mint two ids for the
// same name, which later lookups tolerate because matching is by exact name.
func (c *Catalog) GetOrCreate(ctx context.Context, name string) (*Ingredient, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("ingredient name is required")
	}

	docs, err := c.store.Query(ctx, ingredientCollection, []docstore.Filter{docstore.Eq("name", name)}, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to look up ingredient %q: %w", name, err)
	}
	if len(docs) > 0 {
		return docstore.Decode[Ingredient](docs[0])
	}

	ingredient := &Ingredient{
		ID:   uuid.NewString(),
		Name: name,
	}
	if err := c.store.Set(ctx, ingredientCollection, ingredient.ID, ingredient); err != nil {
		return nil, fmt.Errorf("failed to create ingredient %q: %w", name, err)
	}
	slog.DebugContext(ctx, "created ingredient", "id", ingredient.ID, "name", name)
	return ingredient, nil
}

func (c *Catalog) GetByID(ctx context.Context, id string) (*Ingredient, error) {
	raw, err := c.store.Get(ctx, ingredientCollection, id)
	if err != nil {
		return nil, err
	}
	return docstore.Decode[Ingredient](raw)
}

// GetByIDs batch-fetches ingredients, splitting the id set into chunks the
// store's "in" filter can take and fetching the chunks concurrently.
func (c *Catalog) GetByIDs(ctx context.Context, ids []string) ([]Ingredient, error) {
	ids = lo.Uniq(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	chunks := lo.Chunk(ids, docstore.MaxInValues)
	results := make([][]Ingredient, len(chunks))

	g, ctx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		g.Go(func() error {
			docs, err := c.store.QueryIn(ctx, ingredientCollection, "id", chunk)
			if err != nil {
				return fmt.Errorf("failed to fetch ingredient chunk: %w", err)
			}
			results[i], err = docstore.DecodeAll[Ingredient](docs)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return lo.Flatten(results), nil
}

// EnsureCategory is get-or-create for aisle categories, same race caveat as
// GetOrCreate.
func (c *Catalog) EnsureCategory(ctx context.Context, name string) (*Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("category name is required")
	}

	docs, err := c.store.Query(ctx, categoryCollection, []docstore.Filter{docstore.Eq("name", name)}, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to look up category %q: %w", name, err)
	}
	if len(docs) > 0 {
		return docstore.Decode[Category](docs[0])
	}

	category := &Category{ID: uuid.NewString(), Name: name}
	if err := c.store.Set(ctx, categoryCollection, category.ID, category); err != nil {
		return nil, fmt.Errorf("failed to create category %q: %w", name, err)
	}
	return category, nil
}

func (c *Catalog) Categories(ctx context.Context) ([]Category, error) {
	docs, err := c.store.Query(ctx, categoryCollection, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return docstore.DecodeAll[Category](docs)
}

// AssignCategory files an ingredient under a category.
func (c *Catalog) AssignCategory(ctx context.Context, ingredientID, categoryID string) error {
	return c.store.Update(ctx, ingredientCollection, ingredientID, map[string]any{"categoryId": categoryID})
}
