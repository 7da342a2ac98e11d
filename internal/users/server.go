package users

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// UserSource resolves the authenticated user behind a request.
type UserSource interface {
	CurrentUser(r *http.Request) (*User, error)
}

type server struct {
	auth UserSource
}

func NewHandler(auth UserSource) *server {
	return &server{auth: auth}
}

func (s *server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /user", s.handleUser)
	mux.HandleFunc("POST /user/logout", s.handleLogout)
}

func (s *server) handleUser(w http.ResponseWriter, r *http.Request) {
	currentUser, err := s.auth.CurrentUser(r)
	if err != nil || currentUser == nil {
		if err != nil && !errors.Is(err, ErrNotFound) {
			slog.ErrorContext(r.Context(), "failed to resolve user", "error", err)
		}
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(currentUser); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode user", "error", err)
	}
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	ClearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}
