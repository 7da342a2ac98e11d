package groceries

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Direwen/MealMate/internal/docstore"
)

// Lists stores the one-per-user grocery lists.
type Lists struct {
	store docstore.Store
}

func NewLists(store docstore.Store) *Lists {
	return &Lists{store: store}
}

// GetOrCreate returns the creator's list, creating it on first access.
// Query-then-create, same race window as ingredient get-or-create.
func (l *Lists) GetOrCreate(ctx context.Context, creatorID string) (*List, error) {
	if creatorID == "" {
		return nil, fmt.Errorf("creator id is required")
	}

	docs, err := l.store.Query(ctx, listCollection, []docstore.Filter{docstore.Eq("creatorId", creatorID)}, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to look up grocery list: %w", err)
	}
	if len(docs) > 0 {
		return docstore.Decode[List](docs[0])
	}

	list := &List{ID: uuid.NewString(), CreatorID: creatorID}
	if err := l.store.Set(ctx, listCollection, list.ID, list); err != nil {
		return nil, fmt.Errorf("failed to create grocery list: %w", err)
	}
	slog.InfoContext(ctx, "created grocery list", "id", list.ID, "creator", creatorID)
	return list, nil
}
