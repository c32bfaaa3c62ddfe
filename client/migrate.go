package client

import (
	"context"
	"fmt"
)

// MigrateGuestCart folds the guest cart into the freshly authenticated
// account cart. Lines travel in a single bulk call so the server can merge
// them in one transaction; an empty guest cart costs zero network calls
// beyond the initial read. On success the server-side guest document is
// dropped and the guest identity is reset so a later logout starts clean.
// It returns the number of lines migrated.
func (c *Client) MigrateGuestCart(ctx context.Context) (int, error) {
	guestSnapshot, err := c.GuestCart(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading guest cart: %w", err)
	}

	if len(guestSnapshot.Items) == 0 {
		c.guest.Reset()
		return 0, nil
	}

	lines := make([]BulkLine, 0, len(guestSnapshot.Items))
	for _, item := range guestSnapshot.Items {
		lines = append(lines, BulkLine{
			ProductID: item.Product.ID,
			Quantity:  item.Quantity,
		})
	}

	if _, err := c.UserCartBulkAdd(ctx, lines); err != nil {
		// The guest cart is left intact so nothing is lost; the next login
		// retries the merge.
		return 0, fmt.Errorf("merging guest cart: %w", err)
	}

	if _, err := c.GuestCartClear(ctx); err != nil {
		return len(lines), fmt.Errorf("clearing guest cart: %w", err)
	}
	c.guest.Reset()

	return len(lines), nil
}
