package recipes

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/Direwen/MealMate/internal/images"
	"github.com/Direwen/MealMate/internal/users"
)

// UserSource resolves the authenticated user behind a request.
type UserSource interface {
	CurrentUser(r *http.Request) (*users.User, error)
}

// CascadeDeleter deletes a recipe together with its grocery provenance.
// Implemented by the grocery engine.
type CascadeDeleter interface {
	DeleteRecipeCascade(ctx context.Context, recipeID string) error
}

type server struct {
	storage *Storage
	auth    UserSource
	cascade CascadeDeleter
	cleaner SourceCleaner
	images  images.Store
}

// NewHandler wires the recipe routes. The cascade deleter and source cleaner
// both come from the grocery engine so edits and deletes keep every list
// consistent.
func NewHandler(storage *Storage, auth UserSource, cascade CascadeDeleter, cleaner SourceCleaner, imageStore images.Store) *server {
	return &server{storage: storage, auth: auth, cascade: cascade, cleaner: cleaner, images: imageStore}
}

func (s *server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /recipes", s.handleList)
	mux.HandleFunc("POST /recipes", s.handleCreate)
	mux.HandleFunc("GET /recipes/{id}", s.handleGet)
	mux.HandleFunc("PUT /recipes/{id}", s.handleUpdate)
	mux.HandleFunc("DELETE /recipes/{id}", s.handleDelete)
	mux.HandleFunc("PUT /recipes/{id}/image", s.handlePutImage)
	mux.HandleFunc("GET /recipes/{id}/image", s.handleGetImage)
}

type recipeRequest struct {
	Fields
	Ingredients []IngredientInput `json:"ingredients"`
}

type recipeResponse struct {
	Recipe      *Recipe  `json:"recipe"`
	Ingredients []Detail `json:"ingredients,omitempty"`
}

func (s *server) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	currentUser, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	list, err := s.storage.GetByCreatorID(ctx, currentUser.ID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list recipes", "user", currentUser.ID, "error", err)
		http.Error(w, "failed to list recipes", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *server) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	currentUser, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var req recipeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		http.Error(w, "title is required", http.StatusBadRequest)
		return
	}

	recipe, err := s.storage.CreateWithIngredients(ctx, currentUser.ID, req.Fields, req.Ingredients)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create recipe", "user", currentUser.ID, "error", err)
		http.Error(w, "failed to create recipe", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, recipeResponse{Recipe: recipe})
}

func (s *server) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	currentUser, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	recipe, details, err := s.storage.GetWithIngredients(ctx, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "recipe not found", http.StatusNotFound)
			return
		}
		slog.ErrorContext(ctx, "failed to load recipe", "id", r.PathValue("id"), "error", err)
		http.Error(w, "failed to load recipe", http.StatusInternalServerError)
		return
	}
	if recipe.CreatorID != currentUser.ID {
		http.Error(w, "recipe not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, recipeResponse{Recipe: recipe, Ingredients: details})
}

func (s *server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	currentUser, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	recipeID := r.PathValue("id")
	if !s.ownedBy(w, r, recipeID, currentUser.ID) {
		return
	}

	var req recipeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.storage.UpdateWithIngredients(ctx, recipeID, req.Fields, req.Ingredients, s.cleaner); err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "recipe not found", http.StatusNotFound)
			return
		}
		slog.ErrorContext(ctx, "failed to update recipe", "id", recipeID, "error", err)
		http.Error(w, "failed to update recipe", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	currentUser, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	recipeID := r.PathValue("id")
	if !s.ownedBy(w, r, recipeID, currentUser.ID) {
		return
	}

	if err := s.cascade.DeleteRecipeCascade(ctx, recipeID); err != nil {
		slog.ErrorContext(ctx, "failed to delete recipe", "id", recipeID, "error", err)
		http.Error(w, "failed to delete recipe", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handlePutImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	currentUser, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	recipeID := r.PathValue("id")
	if !s.ownedBy(w, r, recipeID, currentUser.ID) {
		return
	}

	key := "recipes/" + recipeID
	if err := s.images.Put(ctx, key, r.Body); err != nil {
		slog.ErrorContext(ctx, "failed to store recipe image", "id", recipeID, "error", err)
		http.Error(w, "failed to store image", http.StatusInternalServerError)
		return
	}
	if err := s.storage.SetImagePath(ctx, recipeID, key); err != nil {
		slog.ErrorContext(ctx, "failed to record image path", "id", recipeID, "error", err)
		http.Error(w, "failed to store image", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleGetImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	currentUser, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	recipeID := r.PathValue("id")
	recipe, err := s.storage.GetByID(ctx, recipeID)
	if err != nil || recipe.CreatorID != currentUser.ID || recipe.ImagePath == "" {
		http.Error(w, "image not found", http.StatusNotFound)
		return
	}

	stream, err := s.images.Get(ctx, recipe.ImagePath)
	if err != nil {
		if errors.Is(err, images.ErrNotFound) {
			http.Error(w, "image not found", http.StatusNotFound)
			return
		}
		slog.ErrorContext(ctx, "failed to load recipe image", "id", recipeID, "error", err)
		http.Error(w, "failed to load image", http.StatusInternalServerError)
		return
	}
	defer stream.Close()
	if _, err := io.Copy(w, stream); err != nil {
		slog.ErrorContext(ctx, "failed to stream recipe image", "id", recipeID, "error", err)
	}
}

func (s *server) requireUser(w http.ResponseWriter, r *http.Request) (*users.User, bool) {
	currentUser, err := s.auth.CurrentUser(r)
	if err != nil || currentUser == nil {
		if err != nil && !errors.Is(err, users.ErrNotFound) {
			slog.ErrorContext(r.Context(), "failed to resolve user", "error", err)
		}
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return nil, false
	}
	return currentUser, true
}

func (s *server) ownedBy(w http.ResponseWriter, r *http.Request, recipeID, userID string) bool {
	recipe, err := s.storage.GetByID(r.Context(), recipeID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "recipe not found", http.StatusNotFound)
			return false
		}
		slog.ErrorContext(r.Context(), "failed to load recipe", "id", recipeID, "error", err)
		http.Error(w, "failed to load recipe", http.StatusInternalServerError)
		return false
	}
	if recipe.CreatorID != userID {
		http.Error(w, "recipe not found", http.StatusNotFound)
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
