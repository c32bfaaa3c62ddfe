package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/kariteco/storefront-core/internal/users"
	"github.com/kariteco/storefront-core/pkg/types"
)

const returnPathStorageKey = "karite.return_path"

// StorefrontConfig configures the high-level storefront facade.
type StorefrontConfig struct {
	BaseURL    string
	Storage    Storage
	HTTPClient *http.Client

	// CurrentPath reports the route the shopper is on, used to park a return
	// path when the session expires mid-browse. Optional.
	CurrentPath func() string

	// NavigateToLogin sends the shopper to the login screen after a session
	// expires. Optional.
	NavigateToLogin func()

	// OnSessionExpired runs after local session state is cleared. Optional.
	OnSessionExpired func()
}

// Storefront is the single entry point a UI talks to. It routes cart
// operations to the guest or account store depending on who is signed in,
// and owns the login/signup/logout transitions between the two.
type Storefront struct {
	client  *Client
	storage Storage

	guestCart *GuestCartStore
	userCart  *UserCartStore

	currentPath     func() string
	navigateToLogin func()

	loginOp  opState
	signupOp opState
	logoutOp opState
}

func NewStorefront(cfg StorefrontConfig) (*Storefront, error) {
	s := &Storefront{
		storage:         cfg.Storage,
		currentPath:     cfg.CurrentPath,
		navigateToLogin: cfg.NavigateToLogin,
	}

	apiClient, err := New(Config{
		BaseURL:    cfg.BaseURL,
		Storage:    cfg.Storage,
		HTTPClient: cfg.HTTPClient,
		OnSessionExpired: func() {
			s.handleSessionExpired()
			if cfg.OnSessionExpired != nil {
				cfg.OnSessionExpired()
			}
		},
	})
	if err != nil {
		return nil, err
	}

	s.client = apiClient
	s.guestCart = NewGuestCartStore(apiClient)
	s.userCart = NewUserCartStore(apiClient)
	return s, nil
}

// Client exposes the underlying API client.
func (s *Storefront) Client() *Client { return s.client }

// User returns the signed-in profile, or nil for guests.
func (s *Storefront) User() *users.UserDTO { return s.client.Tokens().User() }

// Cart returns the store for whoever is currently shopping.
func (s *Storefront) Cart() CartStore {
	if s.client.Tokens().IsAuthenticated() {
		return s.userCart
	}
	return s.guestCart
}

// Items returns the active cart's lines.
func (s *Storefront) Items() []types.CartItemView {
	return s.Cart().Snapshot().Items
}

// TotalItems sums quantities across lines, for the cart badge.
func (s *Storefront) TotalItems() int {
	total := 0
	for _, item := range s.Cart().Snapshot().Items {
		total += item.Quantity
	}
	return total
}

// TotalPrice returns the active cart's total.
func (s *Storefront) TotalPrice() decimal.Decimal {
	return s.Cart().Snapshot().Total
}

func (s *Storefront) IsLoading() bool { return s.Cart().IsLoading() }

func (s *Storefront) Err() error { return s.Cart().Err() }

// Login authenticates, folds the guest cart into the account, and loads the
// account cart. A migration failure does not fail the login; the guest cart
// is left intact for a later retry and the error is recorded on the account
// cart store's sync slot, where Err() surfaces it.
func (s *Storefront) Login(ctx context.Context, email, password string) error {
	s.loginOp.begin()
	if _, err := s.client.Login(ctx, email, password); err != nil {
		s.loginOp.finish(err)
		return err
	}
	err := s.afterAuth(ctx)
	s.loginOp.finish(err)
	return err
}

// Signup registers an account and carries the guest cart into it.
func (s *Storefront) Signup(ctx context.Context, input RegisterInput) error {
	s.signupOp.begin()
	if _, err := s.client.Register(ctx, input); err != nil {
		s.signupOp.finish(err)
		return err
	}
	err := s.afterAuth(ctx)
	s.signupOp.finish(err)
	return err
}

// LoginState reports the login operation's in-flight flag and last error.
func (s *Storefront) LoginState() (bool, error) { return s.loginOp.IsLoading(), s.loginOp.Err() }

// SignupState reports the signup operation's in-flight flag and last error.
func (s *Storefront) SignupState() (bool, error) { return s.signupOp.IsLoading(), s.signupOp.Err() }

// LogoutState reports the logout operation's in-flight flag and last error.
func (s *Storefront) LogoutState() (bool, error) { return s.logoutOp.IsLoading(), s.logoutOp.Err() }

func (s *Storefront) afterAuth(ctx context.Context) error {
	s.userCart.beginSync()
	if _, err := s.client.MigrateGuestCart(ctx); err != nil {
		s.userCart.finishSync(err)
		// Still load whatever the account cart holds.
		if refreshErr := s.userCart.Refresh(ctx); refreshErr != nil {
			return fmt.Errorf("after login: %w", refreshErr)
		}
		return nil
	}
	s.userCart.finishSync(nil)
	s.guestCart.reset()
	return s.userCart.Refresh(ctx)
}

// Logout revokes the session and returns the shopper to a fresh guest
// context with an empty cart.
func (s *Storefront) Logout(ctx context.Context) error {
	s.logoutOp.begin()
	err := s.client.Logout(ctx)
	s.userCart.reset()
	s.guestCart.reset()
	s.client.GuestSession().Reset()
	// The session is gone either way; stale login/signup errors go with it.
	s.loginOp.reset()
	s.signupOp.reset()
	s.logoutOp.finish(err)
	return err
}

// ConsumeReturnPath pops the route parked by an expired session, if any.
func (s *Storefront) ConsumeReturnPath() (string, bool) {
	if s.storage == nil {
		return "", false
	}
	path, err := s.storage.Get(returnPathStorageKey)
	if err != nil {
		return "", false
	}
	_ = s.storage.Delete(returnPathStorageKey)
	return path, true
}

func (s *Storefront) handleSessionExpired() {
	s.userCart.reset()
	s.loginOp.reset()
	s.signupOp.reset()
	s.logoutOp.reset()

	if s.currentPath != nil && s.storage != nil {
		if path := s.currentPath(); shouldParkReturnPath(path) {
			_ = s.storage.Set(returnPathStorageKey, path)
		}
	}
	if s.navigateToLogin != nil {
		s.navigateToLogin()
	}
}

// shouldParkReturnPath filters out routes that would bounce the shopper
// straight back to login.
func shouldParkReturnPath(path string) bool {
	switch path {
	case "", "/", "/login", "/signup":
		return false
	}
	return true
}
