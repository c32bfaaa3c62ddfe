package client

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
)

func TestMigrateGuestCartSingleBulkCall(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	c := newTestClient(t, api, nil)
	ctx := context.Background()

	// Shop as a guest: two butters and a soap.
	oldSession := c.GuestSession().SessionID()
	api.seedGuestItems(oldSession,
		guestLine(api.butter(), 2),
		guestLine(api.soap(), 1),
	)

	// Log in, then migrate.
	if _, err := c.Login(ctx, "shopper@example.com", "hunter2hunter2"); err != nil {
		t.Fatalf("login: %v", err)
	}
	moved, err := c.MigrateGuestCart(ctx)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if moved != 2 {
		t.Fatalf("expected 2 migrated lines, got %d", moved)
	}
	if got := api.bulkCount(); got != 1 {
		t.Fatalf("expected exactly one bulk call, got %d", got)
	}

	// The account cart now holds the merged lines.
	snapshot, err := c.UserCart(ctx)
	if err != nil {
		t.Fatalf("loading user cart: %v", err)
	}
	if snapshot.Count != 2 {
		t.Fatalf("expected 2 lines in the account cart, got %d", snapshot.Count)
	}
	if want := decimal.RequireFromString("45"); !snapshot.Total.Equal(want) {
		t.Fatalf("expected total 45, got %s", snapshot.Total)
	}

	// The guest side is gone and the identity was rotated.
	api.mu.Lock()
	_, stillThere := api.guestDocs[oldSession]
	api.mu.Unlock()
	if stillThere {
		t.Fatal("expected the server-side guest cart to be dropped")
	}
	if c.GuestSession().SessionID() == oldSession {
		t.Fatal("expected a fresh guest session id after migration")
	}
}

func TestMigrateEmptyGuestCartSkipsBulk(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	c := newTestClient(t, api, nil)
	ctx := context.Background()

	if _, err := c.Login(ctx, "shopper@example.com", "hunter2hunter2"); err != nil {
		t.Fatalf("login: %v", err)
	}
	moved, err := c.MigrateGuestCart(ctx)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if moved != 0 {
		t.Fatalf("expected nothing to move, got %d", moved)
	}
	if got := api.bulkCount(); got != 0 {
		t.Fatalf("an empty guest cart must not issue a bulk call, got %d", got)
	}
}

func TestMigrateMergesWithExistingAccountLines(t *testing.T) {
	t.Parallel()

	api := newFakeAPI(t)
	c := newTestClient(t, api, nil)
	ctx := context.Background()

	if _, err := c.Login(ctx, "shopper@example.com", "hunter2hunter2"); err != nil {
		t.Fatalf("login: %v", err)
	}
	// The account already holds one butter.
	if _, err := c.UserCartAdd(ctx, api.butter().ID, 1); err != nil {
		t.Fatalf("seeding account cart: %v", err)
	}

	session := c.GuestSession().SessionID()
	api.seedGuestItems(session, guestLine(api.butter(), 2))

	if _, err := c.MigrateGuestCart(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	snapshot, err := c.UserCart(ctx)
	if err != nil {
		t.Fatalf("loading user cart: %v", err)
	}
	if snapshot.Count != 1 {
		t.Fatalf("expected the butter lines to merge, got %d lines", snapshot.Count)
	}
	if snapshot.Items[0].Quantity != 3 {
		t.Fatalf("expected merged quantity 3, got %d", snapshot.Items[0].Quantity)
	}
}
