package client

import (
	"context"
	"testing"

	pkgerrors "github.com/kariteco/storefront-core/pkg/errors"
	"github.com/shopspring/decimal"
)

func TestGuestStoreRejectsLowQuantityLocally(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	c := newTestClient(t, api, nil)
	store := NewGuestCartStore(c)

	for _, qty := range []int{0, -3} {
		err := store.AddItem(context.Background(), api.butter().ID, qty)
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("expected local validation error for qty %d, got %v", qty, err)
		}
	}
	// Nothing reached the server.
	if len(api.guestDocs) != 0 {
		t.Fatal("rejected adds must not touch the network")
	}

	err := store.UpdateItemQuantity(context.Background(), "some-line", 0)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected local validation error, got %v", err)
	}
}

func TestGuestStoreReplacesSnapshotWholesale(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	c := newTestClient(t, api, nil)
	store := NewGuestCartStore(c)
	ctx := context.Background()

	if err := store.AddItem(ctx, api.butter().ID, 2); err != nil {
		t.Fatalf("adding butter: %v", err)
	}
	if err := store.AddItem(ctx, api.soap().ID, 1); err != nil {
		t.Fatalf("adding soap: %v", err)
	}

	snapshot := store.Snapshot()
	if snapshot.Count != 2 {
		t.Fatalf("expected 2 lines, got %d", snapshot.Count)
	}
	if want := decimal.RequireFromString("45"); !snapshot.Total.Equal(want) {
		t.Fatalf("expected total 45, got %s", snapshot.Total)
	}
	if store.IsLoading() {
		t.Fatal("loading must clear once the call settles")
	}
	if store.Err() != nil {
		t.Fatalf("unexpected error state: %v", store.Err())
	}
}

func TestGuestStoreKeepsSnapshotOnError(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	c := newTestClient(t, api, nil)
	store := NewGuestCartStore(c)
	ctx := context.Background()

	if err := store.AddItem(ctx, api.butter().ID, 2); err != nil {
		t.Fatalf("adding butter: %v", err)
	}
	before := store.Snapshot()

	// An unknown line comes back 404.
	if err := store.UpdateItemQuantity(ctx, "missing-line", 3); err == nil {
		t.Fatal("expected an error for an unknown line")
	}
	if store.Err() == nil {
		t.Fatal("expected error state to be recorded")
	}

	after := store.Snapshot()
	if after.Count != before.Count || !after.Total.Equal(before.Total) {
		t.Fatal("a failed call must leave the previous snapshot in place")
	}
}

func TestGuestStoreKeepsFailedOpErrorAcrossRefresh(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	c := newTestClient(t, api, nil)
	store := NewGuestCartStore(c)
	ctx := context.Background()

	if err := store.AddItem(ctx, api.butter().ID, 2); err != nil {
		t.Fatalf("adding butter: %v", err)
	}

	// The update fails; its slot records the error.
	if err := store.UpdateItemQuantity(ctx, "missing-line", 3); err == nil {
		t.Fatal("expected an error for an unknown line")
	}

	// A later successful fetch settles its own slot only.
	if err := store.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if store.Err() == nil {
		t.Fatal("a successful fetch must not wipe the failed update's record")
	}
	if store.Snapshot().Count != 1 {
		t.Fatalf("expected the refreshed snapshot, got %d lines", store.Snapshot().Count)
	}

	// Retrying the update clears the slot.
	itemID := store.Snapshot().Items[0].ID
	if err := store.UpdateItemQuantity(ctx, itemID, 3); err != nil {
		t.Fatalf("updating line: %v", err)
	}
	if store.Err() != nil {
		t.Fatalf("expected a clean error state, got %v", store.Err())
	}
}

func TestUserStoreRetriesOnceAfterRefresh(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	c := newTestClient(t, api, nil)

	_, serverRefresh := api.issueSession()
	c.Tokens().SetSession("stale-access-token", serverRefresh, nil)

	store := NewUserCartStore(c)
	if err := store.AddItem(context.Background(), api.butter().ID, 2); err != nil {
		t.Fatalf("expected the retried request to succeed, got %v", err)
	}
	if got := api.refreshCount(); got != 1 {
		t.Fatalf("expected one refresh, got %d", got)
	}

	snapshot := store.Snapshot()
	if snapshot.Count != 1 || snapshot.Items[0].Quantity != 2 {
		t.Fatalf("unexpected snapshot after retry: %+v", snapshot)
	}
}

func TestUserStoreRejectsLowQuantityLocally(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	c := newTestClient(t, api, nil)
	store := NewUserCartStore(c)

	err := store.AddItem(context.Background(), api.butter().ID, 0)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected local validation error, got %v", err)
	}
	if got := api.refreshCount(); got != 0 {
		t.Fatalf("local rejection must not touch the network, got %d refreshes", got)
	}
}
