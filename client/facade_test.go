package client

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
)

func newTestStorefront(t *testing.T, api *fakeAPI) (*Storefront, *MemoryStorage) {
	t.Helper()
	storage := NewMemoryStorage()
	sf, err := NewStorefront(StorefrontConfig{
		BaseURL: api.server.URL,
		Storage: storage,
	})
	if err != nil {
		t.Fatalf("building storefront: %v", err)
	}
	return sf, storage
}

func TestStorefrontGuestThenLogin(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	sf, _ := newTestStorefront(t, api)
	ctx := context.Background()

	// Anonymous shopping goes to the guest store.
	if sf.User() != nil {
		t.Fatal("expected a guest storefront initially")
	}
	if err := sf.Cart().AddItem(ctx, api.butter().ID, 2); err != nil {
		t.Fatalf("guest add: %v", err)
	}
	if err := sf.Cart().AddItem(ctx, api.soap().ID, 1); err != nil {
		t.Fatalf("guest add: %v", err)
	}
	if got := sf.TotalItems(); got != 3 {
		t.Fatalf("expected badge count 3, got %d", got)
	}

	// Login migrates the guest cart and switches the active store.
	if err := sf.Login(ctx, "shopper@example.com", "hunter2hunter2"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if sf.User() == nil {
		t.Fatal("expected a signed-in storefront")
	}
	if sf.Cart() != CartStore(sf.userCart) {
		t.Fatal("expected the account cart to be active")
	}

	snapshot := sf.Cart().Snapshot()
	if snapshot.Count != 2 {
		t.Fatalf("expected the migrated cart to hold 2 lines, got %d", snapshot.Count)
	}
	if want := decimal.RequireFromString("45"); !sf.TotalPrice().Equal(want) {
		t.Fatalf("expected total 45, got %s", sf.TotalPrice())
	}
	if got := api.bulkCount(); got != 1 {
		t.Fatalf("expected one bulk merge, got %d", got)
	}
}

func TestStorefrontLoginSurfacesMigrationFailure(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	sf, _ := newTestStorefront(t, api)
	ctx := context.Background()

	session := sf.Client().GuestSession().SessionID()
	api.seedGuestItems(session, guestLine(api.butter(), 2))
	api.mu.Lock()
	api.bulkFails = true
	api.mu.Unlock()

	// The login itself succeeds even though the cart merge does not.
	if err := sf.Login(ctx, "shopper@example.com", "hunter2hunter2"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if sf.User() == nil {
		t.Fatal("expected a signed-in storefront")
	}

	// The failure is recorded, not swallowed.
	if sf.Err() == nil {
		t.Fatal("expected the migration failure to surface on the cart store")
	}
	if sf.userCart.SyncErr() == nil {
		t.Fatal("expected the sync slot to hold the migration error")
	}

	// The guest cart survives server-side for a later retry.
	api.mu.Lock()
	_, kept := api.guestDocs[session]
	api.mu.Unlock()
	if !kept {
		t.Fatal("expected the guest cart to be left intact")
	}

	// A later successful merge clears the record.
	api.mu.Lock()
	api.bulkFails = false
	api.mu.Unlock()
	if err := sf.afterAuth(ctx); err != nil {
		t.Fatalf("retrying migration: %v", err)
	}
	if sf.Err() != nil {
		t.Fatalf("expected a clean slate after the retry, got %v", sf.Err())
	}
	if sf.Cart().Snapshot().Count != 1 {
		t.Fatalf("expected the merged line to land, got %d", sf.Cart().Snapshot().Count)
	}
}

func TestStorefrontLogoutReturnsToEmptyGuest(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	sf, _ := newTestStorefront(t, api)
	ctx := context.Background()

	if err := sf.Login(ctx, "shopper@example.com", "hunter2hunter2"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := sf.Cart().AddItem(ctx, api.butter().ID, 1); err != nil {
		t.Fatalf("account add: %v", err)
	}

	if err := sf.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if sf.User() != nil {
		t.Fatal("expected a guest storefront after logout")
	}
	if got := sf.TotalItems(); got != 0 {
		t.Fatalf("expected an empty cart after logout, got %d items", got)
	}
}

func TestStorefrontSessionExpiryParksReturnPath(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	storage := NewMemoryStorage()

	navigated := false
	sf, err := NewStorefront(StorefrontConfig{
		BaseURL:         api.server.URL,
		Storage:         storage,
		CurrentPath:     func() string { return "/products/raw-shea-butter" },
		NavigateToLogin: func() { navigated = true },
	})
	if err != nil {
		t.Fatalf("building storefront: %v", err)
	}
	ctx := context.Background()

	if err := sf.Login(ctx, "shopper@example.com", "hunter2hunter2"); err != nil {
		t.Fatalf("login: %v", err)
	}

	// Kill the session server-side and make every cart call 401.
	api.mu.Lock()
	api.accessToken = ""
	api.refreshToken = ""
	api.cartAlways401 = true
	api.mu.Unlock()

	if err := sf.Cart().Refresh(ctx); err == nil {
		t.Fatal("expected the refresh to fail once the session is dead")
	}
	if !navigated {
		t.Fatal("expected a redirect to login")
	}
	if sf.User() != nil {
		t.Fatal("expected session state to be cleared")
	}

	path, ok := sf.ConsumeReturnPath()
	if !ok || path != "/products/raw-shea-butter" {
		t.Fatalf("expected parked return path, got %q (ok=%v)", path, ok)
	}
	if _, ok := sf.ConsumeReturnPath(); ok {
		t.Fatal("return path must be consumed once")
	}
}

func TestStorefrontAuthOperationsTrackIndependently(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	sf, _ := newTestStorefront(t, api)
	ctx := context.Background()

	// A failed login lands in the login slot only.
	if err := sf.Login(ctx, "shopper@example.com", "wrong-password"); err == nil {
		t.Fatal("expected the login to fail")
	}
	if _, err := sf.LoginState(); err == nil {
		t.Fatal("expected the login error to be recorded")
	}
	if _, err := sf.SignupState(); err != nil {
		t.Fatalf("signup slot must stay clean, got %v", err)
	}

	// A successful signup clears its own slot and leaves login's untouched.
	if err := sf.Signup(ctx, RegisterInput{
		Email:     "shopper@example.com",
		Password:  "hunter2hunter2",
		FirstName: "Ama",
		LastName:  "Mensah",
	}); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if _, err := sf.SignupState(); err != nil {
		t.Fatalf("signup slot: %v", err)
	}
	if _, err := sf.LoginState(); err == nil {
		t.Fatal("signup must not clobber the login error")
	}

	// Logout resets every slot.
	if err := sf.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := sf.LoginState(); err != nil {
		t.Fatalf("expected a clean login slot after logout, got %v", err)
	}
	if loading, err := sf.LogoutState(); loading || err != nil {
		t.Fatalf("logout slot: loading=%v err=%v", loading, err)
	}
}

func TestStorefrontDoesNotParkAuthPages(t *testing.T) {
	t.Parallel()

	for _, path := range []string{"", "/", "/login", "/signup"} {
		if shouldParkReturnPath(path) {
			t.Fatalf("path %q must not be parked", path)
		}
	}
	if !shouldParkReturnPath("/cart") {
		t.Fatal("expected /cart to be parked")
	}
}
