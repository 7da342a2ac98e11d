package catalog

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Direwen/MealMate/internal/users"
)

// UserSource resolves the authenticated user behind a request.
type UserSource interface {
	CurrentUser(r *http.Request) (*users.User, error)
}

type server struct {
	catalog *Catalog
	auth    UserSource
}

func NewHandler(cat *Catalog, auth UserSource) *server {
	return &server{catalog: cat, auth: auth}
}

func (s *server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /categories", s.handleCategories)
}

func (s *server) handleCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	currentUser, err := s.auth.CurrentUser(r)
	if err != nil || currentUser == nil {
		if err != nil && !errors.Is(err, users.ErrNotFound) {
			slog.ErrorContext(ctx, "failed to resolve user", "error", err)
		}
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	categories, err := s.catalog.Categories(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list categories", "error", err)
		http.Error(w, "failed to list categories", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(categories); err != nil {
		slog.ErrorContext(ctx, "failed to encode categories", "error", err)
	}
}
