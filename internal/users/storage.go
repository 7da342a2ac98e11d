package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Direwen/MealMate/internal/docstore"
)

const userCollection = "users"

var ErrNotFound = errors.New("user not found")

// User ids come from the identity provider, not from us, which is why
// CreateIfNotExists keys on the id instead of minting one.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

type Storage struct {
	store docstore.Store
}

func NewStorage(store docstore.Store) *Storage {
	return &Storage{store: store}
}

func (s *Storage) GetByID(ctx context.Context, id string) (*User, error) {
	raw, err := s.store.Get(ctx, userCollection, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return docstore.Decode[User](raw)
}

// CreateIfNotExists writes the user document on first authenticated request
// and returns the stored document on every later one.
func (s *Storage) CreateIfNotExists(ctx context.Context, id, name, email string) (*User, error) {
	user, err := s.GetByID(ctx, id)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	newUser := &User{
		ID:        id,
		Name:      name,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.Set(ctx, userCollection, newUser.ID, newUser); err != nil {
		return nil, fmt.Errorf("failed to store new user: %w", err)
	}
	return newUser, nil
}
