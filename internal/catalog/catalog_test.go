package catalog

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Direwen/MealMate/internal/docstore"
	"github.com/Direwen/MealMate/internal/users"
)

func TestGetOrCreateReusesExisting(t *testing.T) {
	ctx := t.Context()
	cat := New(docstore.NewMemory())

	first, err := cat.GetOrCreate(ctx, "Flour")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := cat.GetOrCreate(ctx, "Flour")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected one ingredient, got ids %s and %s", first.ID, second.ID)
	}

	other, err := cat.GetOrCreate(ctx, "Sugar")
	if err != nil {
		t.Fatalf("create other: %v", err)
	}
	if other.ID == first.ID {
		t.Fatalf("distinct names must not share an id")
	}
}

func TestGetOrCreateTrimsAndRejectsEmpty(t *testing.T) {
	ctx := t.Context()
	cat := New(docstore.NewMemory())

	first, err := cat.GetOrCreate(ctx, "  Flour  ")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.Name != "Flour" {
		t.Fatalf("expected trimmed name, got %q", first.Name)
	}

	if _, err := cat.GetOrCreate(ctx, "   "); err == nil {
		t.Fatal("expected error for blank name")
	}
}

func TestGetByIDsChunksLargeSets(t *testing.T) {
	ctx := t.Context()
	cat := New(docstore.NewMemory())

	var ids []string
	for i := range 25 {
		ing, err := cat.GetOrCreate(ctx, fmt.Sprintf("ingredient-%02d", i))
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		ids = append(ids, ing.ID)
	}
	// Duplicates must not inflate the result.
	ids = append(ids, ids[0], ids[1])

	got, err := cat.GetByIDs(ctx, ids)
	if err != nil {
		t.Fatalf("get by ids: %v", err)
	}
	if len(got) != 25 {
		t.Fatalf("expected 25 ingredients, got %d", len(got))
	}
}

func TestGetByIDsEmpty(t *testing.T) {
	cat := New(docstore.NewMemory())
	got, err := cat.GetByIDs(t.Context(), nil)
	if err != nil {
		t.Fatalf("get by ids: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected nothing, got %d", len(got))
	}
}

func TestCategories(t *testing.T) {
	ctx := t.Context()
	cat := New(docstore.NewMemory())

	baking, err := cat.EnsureCategory(ctx, "Baking")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	again, err := cat.EnsureCategory(ctx, "Baking")
	if err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if baking.ID != again.ID {
		t.Fatalf("expected one category, got ids %s and %s", baking.ID, again.ID)
	}

	flour, err := cat.GetOrCreate(ctx, "Flour")
	if err != nil {
		t.Fatalf("create ingredient: %v", err)
	}
	if err := cat.AssignCategory(ctx, flour.ID, baking.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}

	got, err := cat.GetByID(ctx, flour.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CategoryID != baking.ID {
		t.Fatalf("expected category %s, got %q", baking.ID, got.CategoryID)
	}

	all, err := cat.Categories(ctx)
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 category, got %d", len(all))
	}
}

type staticAuth struct {
	user *users.User
}

func (s *staticAuth) CurrentUser(*http.Request) (*users.User, error) {
	return s.user, nil
}

func TestHandleCategories(t *testing.T) {
	ctx := t.Context()
	cat := New(docstore.NewMemory())
	if _, err := cat.EnsureCategory(ctx, "Baking"); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	mux := http.NewServeMux()
	NewHandler(cat, &staticAuth{user: &users.User{ID: "u-1"}}).Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/categories", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got []Category
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Baking" {
		t.Fatalf("unexpected categories: %+v", got)
	}

	mux = http.NewServeMux()
	NewHandler(cat, &staticAuth{}).Register(mux)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/categories", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
