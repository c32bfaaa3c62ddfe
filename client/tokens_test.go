package client

import (
	"testing"

	"github.com/google/uuid"

	"github.com/kariteco/storefront-core/internal/users"
)

func TestTokenStorePersistsOnlyUser(t *testing.T) {
	t.Parallel()

	storage := NewMemoryStorage()
	store := NewTokenStore(storage)

	user := &users.UserDTO{ID: uuid.New(), Email: "shopper@example.com"}
	store.SetSession("access-1", "refresh-1", user)

	// A fresh store over the same storage restores the profile but never
	// the tokens.
	reloaded := NewTokenStore(storage)
	if got := reloaded.User(); got == nil || got.Email != "shopper@example.com" {
		t.Fatalf("expected persisted user, got %+v", got)
	}
	if reloaded.AccessToken() != "" || reloaded.RefreshToken() != "" {
		t.Fatal("tokens must not survive a restart")
	}
	if !reloaded.IsAuthenticated() {
		t.Fatal("restored profile should read as authenticated")
	}
}

func TestTokenStoreUpdateTokensKeepsUser(t *testing.T) {
	t.Parallel()

	store := NewTokenStore(NewMemoryStorage())
	store.SetSession("access-1", "refresh-1", &users.UserDTO{ID: uuid.New(), Email: "a@example.com"})

	store.UpdateTokens("access-2", "refresh-2")
	if store.AccessToken() != "access-2" || store.RefreshToken() != "refresh-2" {
		t.Fatal("expected rotated token pair")
	}
	if store.User() == nil {
		t.Fatal("rotation must not drop the profile")
	}
}

func TestTokenStoreClearSession(t *testing.T) {
	t.Parallel()

	storage := NewMemoryStorage()
	store := NewTokenStore(storage)
	store.SetSession("access-1", "refresh-1", &users.UserDTO{ID: uuid.New(), Email: "a@example.com"})

	store.ClearSession()
	if store.AccessToken() != "" || store.RefreshToken() != "" || store.User() != nil {
		t.Fatal("expected all session state to be gone")
	}
	if _, err := storage.Get("karite.user"); err == nil {
		t.Fatal("expected persisted profile to be deleted")
	}
	if store.IsAuthenticated() {
		t.Fatal("cleared store should read as guest")
	}
}
