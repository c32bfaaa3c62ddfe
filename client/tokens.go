package client

import (
	"encoding/json"
	"sync"

	"github.com/kariteco/storefront-core/internal/users"
)

const userStorageKey = "karite.user"

// TokenStore holds the authenticated session. The user profile is persisted
// so the UI can render an account immediately after restart; the access and
// refresh tokens are deliberately memory-only and die with the process.
type TokenStore struct {
	storage Storage

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	user         *users.UserDTO
}

// NewTokenStore builds a store and rehydrates any persisted user profile.
// A restored profile without tokens means "logged in but needs refresh";
// the first authenticated request will 401 and walk the refresh path.
func NewTokenStore(storage Storage) *TokenStore {
	s := &TokenStore{storage: storage}
	if storage != nil {
		if raw, err := storage.Get(userStorageKey); err == nil {
			var user users.UserDTO
			if err := json.Unmarshal([]byte(raw), &user); err == nil {
				s.user = &user
			}
		}
	}
	return s
}

// SetSession installs a full session after login, signup, or refresh.
func (s *TokenStore) SetSession(accessToken, refreshToken string, user *users.UserDTO) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accessToken = accessToken
	s.refreshToken = refreshToken
	if user != nil {
		s.user = user
		s.persistUser(user)
	}
}

// UpdateTokens swaps the token pair without touching the profile. Used by
// the refresh flow, which does not return the user.
func (s *TokenStore) UpdateTokens(accessToken, refreshToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accessToken = accessToken
	s.refreshToken = refreshToken
}

// ClearSession drops tokens and the persisted profile.
func (s *TokenStore) ClearSession() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accessToken = ""
	s.refreshToken = ""
	s.user = nil
	if s.storage != nil {
		_ = s.storage.Delete(userStorageKey)
	}
}

func (s *TokenStore) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

func (s *TokenStore) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// User returns the signed-in profile, or nil for guests.
func (s *TokenStore) User() *users.UserDTO {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// IsAuthenticated reports whether a profile is present. Tokens may still be
// missing or stale; authentication is ultimately decided by the server.
func (s *TokenStore) IsAuthenticated() bool {
	return s.User() != nil
}

func (s *TokenStore) persistUser(user *users.UserDTO) {
	if s.storage == nil {
		return
	}
	payload, err := json.Marshal(user)
	if err != nil {
		return
	}
	_ = s.storage.Set(userStorageKey, string(payload))
}
