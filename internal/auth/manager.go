// Package auth resolves the user behind an incoming request. Real sessions
// are clerk tokens verified against the instance JWKS; offline/mock mode
// falls back to the local cookie so the app runs with no external identity
// provider.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/clerk/clerk-sdk-go/v2"
	"github.com/clerk/clerk-sdk-go/v2/jwks"
	"github.com/clerk/clerk-sdk-go/v2/jwt"
	"github.com/clerk/clerk-sdk-go/v2/user"

	"github.com/Direwen/MealMate/internal/config"
	"github.com/Direwen/MealMate/internal/users"
)

const clerkSessionCookie = "__session"

type Manager struct {
	store      *users.Storage
	enabled    bool
	mockUserID string
	jwksClient *jwks.Client
	jwkCache   *jwkCache
}

type jwkCache struct {
	mu   sync.RWMutex
	keys map[string]*clerk.JSONWebKey
}

func (c *jwkCache) get(keyID string) *clerk.JSONWebKey {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.keys[keyID]
}

func (c *jwkCache) set(keyID string, key *clerk.JSONWebKey) {
	if key == nil || keyID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys[keyID] = key
}

func NewManager(cfg *config.Config, store *users.Storage) *Manager {
	m := &Manager{
		store:      store,
		enabled:    !cfg.Mocks.Enable && cfg.Clerk.Enabled(),
		mockUserID: cfg.Mocks.UserID,
		jwkCache:   &jwkCache{keys: make(map[string]*clerk.JSONWebKey)},
	}
	if !m.enabled {
		return m
	}
	clerk.SetKey(cfg.Clerk.SecretKey)
	m.jwksClient = jwks.NewClient(&clerk.ClientConfig{})
	return m
}

func (m *Manager) Enabled() bool {
	return m.enabled
}

// CurrentUser resolves and, on first sight, provisions the user behind the
// request. Returns users.ErrNotFound when the request carries no valid
// session.
func (m *Manager) CurrentUser(r *http.Request) (*users.User, error) {
	if !m.enabled {
		return m.offlineUser(r)
	}

	token := sessionTokenFromRequest(r)
	if token == "" {
		return nil, users.ErrNotFound
	}

	claims, err := m.verifySession(r.Context(), token)
	if err != nil {
		return nil, fmt.Errorf("invalid session: %w", err)
	}
	if claims.Subject == "" {
		return nil, users.ErrNotFound
	}
	return m.ensureUser(r.Context(), claims.Subject)
}

func (m *Manager) offlineUser(r *http.Request) (*users.User, error) {
	current, err := users.FromRequest(r, m.store)
	if err != nil {
		return nil, err
	}
	if current != nil {
		return current, nil
	}
	if m.mockUserID == "" {
		return nil, users.ErrNotFound
	}
	return m.store.CreateIfNotExists(r.Context(), m.mockUserID, "Local User", m.mockUserID+"@localhost")
}

func (m *Manager) verifySession(ctx context.Context, token string) (*clerk.SessionClaims, error) {
	unverified, err := jwt.Decode(ctx, &jwt.DecodeParams{Token: token})
	if err != nil {
		return nil, fmt.Errorf("decode session token: %w", err)
	}

	var jwk *clerk.JSONWebKey
	if unverified != nil && unverified.KeyID != "" {
		jwk = m.jwkCache.get(unverified.KeyID)
		if jwk == nil {
			jwk, err = jwt.GetJSONWebKey(ctx, &jwt.GetJSONWebKeyParams{
				KeyID:      unverified.KeyID,
				JWKSClient: m.jwksClient,
			})
			if err != nil {
				return nil, fmt.Errorf("fetch jwk: %w", err)
			}
			m.jwkCache.set(unverified.KeyID, jwk)
		}
	}

	if jwk != nil {
		return jwt.Verify(ctx, &jwt.VerifyParams{Token: token, JWK: jwk})
	}
	return jwt.Verify(ctx, &jwt.VerifyParams{Token: token, JWKSClient: m.jwksClient})
}

func (m *Manager) ensureUser(ctx context.Context, clerkUserID string) (*users.User, error) {
	existing, err := m.store.GetByID(ctx, clerkUserID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, users.ErrNotFound) {
		return nil, err
	}

	clerkUser, err := user.Get(ctx, clerkUserID)
	if err != nil {
		return nil, fmt.Errorf("load clerk user: %w", err)
	}
	return m.store.CreateIfNotExists(ctx, clerkUserID, displayName(clerkUser), primaryEmail(clerkUser))
}

func displayName(clerkUser *clerk.User) string {
	if clerkUser == nil {
		return ""
	}
	var parts []string
	if clerkUser.FirstName != nil && *clerkUser.FirstName != "" {
		parts = append(parts, *clerkUser.FirstName)
	}
	if clerkUser.LastName != nil && *clerkUser.LastName != "" {
		parts = append(parts, *clerkUser.LastName)
	}
	return strings.Join(parts, " ")
}

func primaryEmail(clerkUser *clerk.User) string {
	if clerkUser == nil {
		return ""
	}
	if clerkUser.PrimaryEmailAddressID != nil {
		for _, addr := range clerkUser.EmailAddresses {
			if addr != nil && addr.ID == *clerkUser.PrimaryEmailAddressID && addr.EmailAddress != "" {
				return addr.EmailAddress
			}
		}
	}
	for _, addr := range clerkUser.EmailAddresses {
		if addr != nil && addr.EmailAddress != "" {
			return addr.EmailAddress
		}
	}
	return ""
}

func sessionTokenFromRequest(r *http.Request) string {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		return strings.TrimSpace(authHeader[len("bearer "):])
	}
	if cookie, err := r.Cookie(clerkSessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return ""
}
