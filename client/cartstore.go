package client

import (
	"context"
	"sync"

	pkgerrors "github.com/kariteco/storefront-core/pkg/errors"
	"github.com/kariteco/storefront-core/pkg/types"
)

// CartStore is the reactive cart surface the UI binds to. The snapshot is
// replaced wholesale after every server round trip; the store never patches
// individual lines locally. Fetch, add, update, remove, clear, and sync each
// keep their own loading/error slot so a failed add is still visible after a
// later successful refresh.
type CartStore interface {
	Snapshot() types.CartSnapshot
	IsLoading() bool
	Err() error

	Refresh(ctx context.Context) error
	AddItem(ctx context.Context, productID string, quantity int) error
	UpdateItemQuantity(ctx context.Context, itemID string, quantity int) error
	RemoveItem(ctx context.Context, itemID string) error
	Clear(ctx context.Context) error
}

func errQuantityTooLow() error {
	return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
}

// cartState holds the shared snapshot plus one state slot per operation.
type cartState struct {
	mu       sync.RWMutex
	snapshot types.CartSnapshot

	fetchOp  opState
	addOp    opState
	updateOp opState
	removeOp opState
	clearOp  opState
	syncOp   opState
}

func newCartState() cartState {
	return cartState{snapshot: types.EmptyCartSnapshot()}
}

func (s *cartState) Snapshot() types.CartSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

func (s *cartState) slots() []*opState {
	return []*opState{&s.fetchOp, &s.addOp, &s.updateOp, &s.removeOp, &s.clearOp, &s.syncOp}
}

// IsLoading reports whether any cart operation is in flight.
func (s *cartState) IsLoading() bool {
	for _, op := range s.slots() {
		if op.IsLoading() {
			return true
		}
	}
	return false
}

// Err returns the first non-nil operation error, in fetch, add, update,
// remove, clear, sync order.
func (s *cartState) Err() error {
	for _, op := range s.slots() {
		if err := op.Err(); err != nil {
			return err
		}
	}
	return nil
}

// finish settles one operation's slot and, on success, replaces the snapshot.
func (s *cartState) finish(op *opState, snapshot *types.CartSnapshot, err error) error {
	op.finish(err)
	if err == nil && snapshot != nil {
		s.mu.Lock()
		s.snapshot = *snapshot
		s.mu.Unlock()
	}
	return err
}

func (s *cartState) reset() {
	s.mu.Lock()
	s.snapshot = types.EmptyCartSnapshot()
	s.mu.Unlock()
	for _, op := range s.slots() {
		op.reset()
	}
}

// beginSync marks the guest-to-account cart migration as in flight.
func (s *cartState) beginSync() { s.syncOp.begin() }

// finishSync records the migration outcome without touching the snapshot.
func (s *cartState) finishSync(err error) { s.syncOp.finish(err) }

// SyncErr returns the last cart-migration error, if any.
func (s *cartState) SyncErr() error { return s.syncOp.Err() }

// GuestCartStore drives the anonymous cart kept on the server under the
// guest session ID.
type GuestCartStore struct {
	cartState
	client *Client
}

func NewGuestCartStore(client *Client) *GuestCartStore {
	return &GuestCartStore{cartState: newCartState(), client: client}
}

func (s *GuestCartStore) Refresh(ctx context.Context) error {
	s.fetchOp.begin()
	snapshot, err := s.client.GuestCart(ctx)
	return s.finish(&s.fetchOp, snapshot, err)
}

func (s *GuestCartStore) AddItem(ctx context.Context, productID string, quantity int) error {
	if quantity < 1 {
		err := errQuantityTooLow()
		s.addOp.finish(err)
		return err
	}
	s.addOp.begin()
	snapshot, err := s.client.GuestCartAdd(ctx, productID, quantity)
	return s.finish(&s.addOp, snapshot, err)
}

func (s *GuestCartStore) UpdateItemQuantity(ctx context.Context, itemID string, quantity int) error {
	if quantity < 1 {
		err := errQuantityTooLow()
		s.updateOp.finish(err)
		return err
	}
	s.updateOp.begin()
	snapshot, err := s.client.GuestCartUpdateItem(ctx, itemID, quantity)
	return s.finish(&s.updateOp, snapshot, err)
}

func (s *GuestCartStore) RemoveItem(ctx context.Context, itemID string) error {
	s.removeOp.begin()
	snapshot, err := s.client.GuestCartRemoveItem(ctx, itemID)
	return s.finish(&s.removeOp, snapshot, err)
}

func (s *GuestCartStore) Clear(ctx context.Context) error {
	s.clearOp.begin()
	snapshot, err := s.client.GuestCartClear(ctx)
	return s.finish(&s.clearOp, snapshot, err)
}

// UserCartStore drives the account cart. Every call that comes back 401 is
// re-issued exactly once: the interceptor has already refreshed the session
// by the time the first attempt returns, so the second attempt carries fresh
// credentials. A 401 on the marked retry surfaces as the final error.
type UserCartStore struct {
	cartState
	client *Client
}

func NewUserCartStore(client *Client) *UserCartStore {
	return &UserCartStore{cartState: newCartState(), client: client}
}

func (s *UserCartStore) call(ctx context.Context, op *opState, fn func(ctx context.Context) (*types.CartSnapshot, error)) error {
	op.begin()
	snapshot, err := fn(ctx)
	if IsUnauthorized(err) {
		snapshot, err = fn(WithRetried(ctx))
	}
	return s.finish(op, snapshot, err)
}

func (s *UserCartStore) Refresh(ctx context.Context) error {
	return s.call(ctx, &s.fetchOp, s.client.UserCart)
}

func (s *UserCartStore) AddItem(ctx context.Context, productID string, quantity int) error {
	if quantity < 1 {
		err := errQuantityTooLow()
		s.addOp.finish(err)
		return err
	}
	return s.call(ctx, &s.addOp, func(ctx context.Context) (*types.CartSnapshot, error) {
		return s.client.UserCartAdd(ctx, productID, quantity)
	})
}

func (s *UserCartStore) UpdateItemQuantity(ctx context.Context, itemID string, quantity int) error {
	if quantity < 1 {
		err := errQuantityTooLow()
		s.updateOp.finish(err)
		return err
	}
	return s.call(ctx, &s.updateOp, func(ctx context.Context) (*types.CartSnapshot, error) {
		return s.client.UserCartUpdateItem(ctx, itemID, quantity)
	})
}

func (s *UserCartStore) RemoveItem(ctx context.Context, itemID string) error {
	return s.call(ctx, &s.removeOp, func(ctx context.Context) (*types.CartSnapshot, error) {
		return s.client.UserCartRemoveItem(ctx, itemID)
	})
}

func (s *UserCartStore) Clear(ctx context.Context) error {
	return s.call(ctx, &s.clearOp, func(ctx context.Context) (*types.CartSnapshot, error) {
		return s.client.UserCartClear(ctx)
	})
}
