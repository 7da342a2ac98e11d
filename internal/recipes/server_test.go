package recipes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Direwen/MealMate/internal/catalog"
	"github.com/Direwen/MealMate/internal/docstore"
	"github.com/Direwen/MealMate/internal/images"
	"github.com/Direwen/MealMate/internal/users"
)

type fakeAuth struct {
	user *users.User
}

func (f *fakeAuth) CurrentUser(*http.Request) (*users.User, error) {
	return f.user, nil
}

type fakeCascade struct {
	storage *Storage
	deleted []string
}

func (f *fakeCascade) DeleteRecipeCascade(ctx context.Context, recipeID string) error {
	f.deleted = append(f.deleted, recipeID)
	if err := f.storage.DeleteLinks(ctx, recipeID); err != nil {
		return err
	}
	return f.storage.Delete(ctx, recipeID)
}

func newTestServer(t *testing.T, user *users.User) (*http.ServeMux, *Storage, *fakeCascade) {
	t.Helper()
	store := docstore.NewMemory()
	storage := NewStorage(store, catalog.New(store))
	cascade := &fakeCascade{storage: storage}

	mux := http.NewServeMux()
	NewHandler(storage, &fakeAuth{user: user}, cascade, &recordingCleaner{}, images.NewFileStore(t.TempDir())).Register(mux)
	return mux, storage, cascade
}

func TestServerRequiresUser(t *testing.T) {
	mux, _, _ := newTestServer(t, nil)

	for _, tc := range []struct{ method, path string }{
		{"GET", "/recipes"},
		{"POST", "/recipes"},
		{"GET", "/recipes/r1"},
		{"DELETE", "/recipes/r1"},
	} {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d", tc.method, tc.path, rec.Code)
		}
	}
}

func TestServerCreateAndGet(t *testing.T) {
	alice := &users.User{ID: "user-1", Name: "Alice"}
	mux, _, _ := newTestServer(t, alice)

	body := `{"title":"Pancakes","servings":4,"ingredients":[{"name":"Flour","amount":"2 cups"}]}`
	req := httptest.NewRequest("POST", "/recipes", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var created recipeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Recipe.Title != "Pancakes" || created.Recipe.CreatorID != "user-1" {
		t.Fatalf("unexpected recipe: %+v", created.Recipe)
	}

	req = httptest.NewRequest("GET", "/recipes/"+created.Recipe.ID, nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rec.Code)
	}
	var got recipeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Ingredients) != 1 || got.Ingredients[0].Ingredient.Name != "Flour" {
		t.Fatalf("expected resolved flour requirement, got %+v", got.Ingredients)
	}
}

func TestServerCreateRequiresTitle(t *testing.T) {
	mux, _, _ := newTestServer(t, &users.User{ID: "user-1"})

	req := httptest.NewRequest("POST", "/recipes", strings.NewReader(`{"servings":2}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestServerHidesForeignRecipes(t *testing.T) {
	mux, storage, _ := newTestServer(t, &users.User{ID: "user-1"})

	other, err := storage.CreateWithIngredients(t.Context(), "user-2", Fields{Title: "Secret"}, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	for _, tc := range []struct{ method, path string }{
		{"GET", "/recipes/" + other.ID},
		{"PUT", "/recipes/" + other.ID},
		{"DELETE", "/recipes/" + other.ID},
	} {
		req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(`{"title":"x"}`))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s %s: expected 404, got %d", tc.method, tc.path, rec.Code)
		}
	}
}

func TestServerUpdate(t *testing.T) {
	mux, storage, _ := newTestServer(t, &users.User{ID: "user-1"})

	recipe, err := storage.CreateWithIngredients(t.Context(), "user-1", Fields{Title: "Cake"}, []IngredientInput{
		{Name: "Flour", Amount: "2 cups"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	body := `{"title":"Better Cake","ingredients":[{"name":"Flour","amount":"3 cups"}]}`
	req := httptest.NewRequest("PUT", "/recipes/"+recipe.ID, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	updated, err := storage.GetByID(t.Context(), recipe.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if updated.Title != "Better Cake" {
		t.Fatalf("expected title updated, got %q", updated.Title)
	}
}

func TestServerDeleteUsesCascade(t *testing.T) {
	mux, storage, cascade := newTestServer(t, &users.User{ID: "user-1"})

	recipe, err := storage.CreateWithIngredients(t.Context(), "user-1", Fields{Title: "Cake"}, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	req := httptest.NewRequest("DELETE", "/recipes/"+recipe.ID, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if len(cascade.deleted) != 1 || cascade.deleted[0] != recipe.ID {
		t.Fatalf("expected cascade for %s, got %v", recipe.ID, cascade.deleted)
	}
}

func TestServerImageRoundtrip(t *testing.T) {
	mux, storage, _ := newTestServer(t, &users.User{ID: "user-1"})

	recipe, err := storage.CreateWithIngredients(t.Context(), "user-1", Fields{Title: "Cake"}, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	payload := []byte("fake-png-bytes")
	req := httptest.NewRequest("PUT", "/recipes/"+recipe.ID+"/image", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("put image: expected 204, got %d", rec.Code)
	}

	req = httptest.NewRequest("GET", "/recipes/"+recipe.ID+"/image", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get image: expected 200, got %d", rec.Code)
	}
	if !bytes.Equal(rec.Body.Bytes(), payload) {
		t.Fatalf("image bytes mismatch: got %q", rec.Body.Bytes())
	}
}

func TestServerImageMissing(t *testing.T) {
	mux, storage, _ := newTestServer(t, &users.User{ID: "user-1"})

	recipe, err := storage.CreateWithIngredients(t.Context(), "user-1", Fields{Title: "Cake"}, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	req := httptest.NewRequest("GET", "/recipes/"+recipe.ID+"/image", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for recipe without image, got %d", rec.Code)
	}
}
