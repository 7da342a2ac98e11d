package groceries

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/samber/lo"

	"github.com/Direwen/MealMate/internal/recipes"
	"github.com/Direwen/MealMate/internal/users"
)

// UserSource resolves the authenticated user behind a request.
type UserSource interface {
	CurrentUser(r *http.Request) (*users.User, error)
}

type server struct {
	engine  *Engine
	recipes *recipes.Storage
	auth    UserSource
}

func NewHandler(engine *Engine, recipeStore *recipes.Storage, auth UserSource) *server {
	return &server{engine: engine, recipes: recipeStore, auth: auth}
}

func (s *server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /groceries", s.handleList)
	mux.HandleFunc("POST /groceries/import", s.handleImport)
	mux.HandleFunc("POST /groceries/{id}/toggle", s.handleToggle)
	mux.HandleFunc("DELETE /groceries/{id}", s.handleDelete)
}

type groceryListResponse struct {
	Items          []ItemView `json:"items"`
	TotalItems     int        `json:"totalItems"`
	PurchasedCount int        `json:"purchasedCount"`
}

func (s *server) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	currentUser, list, ok := s.requireList(w, r)
	if !ok {
		return
	}

	items, err := s.engine.All(ctx, list.ID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load groceries", "list", list.ID, "user", currentUser.ID, "error", err)
		http.Error(w, "failed to load groceries", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, groceryListResponse{
		Items:          items,
		TotalItems:     len(items),
		PurchasedCount: lo.CountBy(items, func(i ItemView) bool { return i.Purchased }),
	})
}

type importRequest struct {
	RecipeID string `json:"recipeId"`
}

func (s *server) handleImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	currentUser, list, ok := s.requireList(w, r)
	if !ok {
		return
	}

	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RecipeID == "" {
		http.Error(w, "recipeId is required", http.StatusBadRequest)
		return
	}

	recipe, details, err := s.recipes.GetWithIngredients(ctx, req.RecipeID)
	if err != nil {
		if errors.Is(err, recipes.ErrNotFound) {
			http.Error(w, "recipe not found", http.StatusNotFound)
			return
		}
		slog.ErrorContext(ctx, "failed to load recipe for import", "recipe", req.RecipeID, "error", err)
		http.Error(w, "failed to load recipe", http.StatusInternalServerError)
		return
	}
	if recipe.CreatorID != currentUser.ID {
		http.Error(w, "recipe not found", http.StatusNotFound)
		return
	}

	if err := s.engine.Import(ctx, list.ID, details); err != nil {
		slog.ErrorContext(ctx, "failed to import recipe", "recipe", req.RecipeID, "list", list.ID, "error", err)
		http.Error(w, "failed to import recipe", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleToggle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, list, ok := s.requireList(w, r)
	if !ok {
		return
	}

	itemID := r.PathValue("id")
	if !s.itemInList(w, r, itemID, list.ID) {
		return
	}

	if err := s.engine.TogglePurchased(ctx, itemID); err != nil {
		if errors.Is(err, ErrItemNotFound) {
			http.Error(w, "item not found", http.StatusNotFound)
			return
		}
		slog.ErrorContext(ctx, "failed to toggle item", "item", itemID, "error", err)
		http.Error(w, "failed to toggle item", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	_, list, ok := s.requireList(w, r)
	if !ok {
		return
	}

	itemID := r.PathValue("id")
	if !s.itemInList(w, r, itemID, list.ID) {
		return
	}

	if err := s.engine.DeleteItemAndSources(ctx, itemID); err != nil {
		slog.ErrorContext(ctx, "failed to delete item", "item", itemID, "error", err)
		http.Error(w, "failed to delete item", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) requireList(w http.ResponseWriter, r *http.Request) (*users.User, *List, bool) {
	currentUser, err := s.auth.CurrentUser(r)
	if err != nil || currentUser == nil {
		if err != nil && !errors.Is(err, users.ErrNotFound) {
			slog.ErrorContext(r.Context(), "failed to resolve user", "error", err)
		}
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return nil, nil, false
	}

	list, err := s.engine.Lists().GetOrCreate(r.Context(), currentUser.ID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to load grocery list", "user", currentUser.ID, "error", err)
		http.Error(w, "failed to load grocery list", http.StatusInternalServerError)
		return nil, nil, false
	}
	return currentUser, list, true
}

func (s *server) itemInList(w http.ResponseWriter, r *http.Request, itemID, listID string) bool {
	item, err := s.engine.Item(r.Context(), itemID)
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			http.Error(w, "item not found", http.StatusNotFound)
			return false
		}
		slog.ErrorContext(r.Context(), "failed to load item", "item", itemID, "error", err)
		http.Error(w, "failed to load item", http.StatusInternalServerError)
		return false
	}
	if item.GroceryListID != listID {
		http.Error(w, "item not found", http.StatusNotFound)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
