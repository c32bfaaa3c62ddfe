package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductSummary is the product projection embedded in cart line items.
type ProductSummary struct {
	ID       string          `json:"id"`
	Slug     string          `json:"slug"`
	Title    string          `json:"title"`
	Price    decimal.Decimal `json:"price"`
	ImageURL string          `json:"image_url,omitempty"`
}

// CartItemView is a single cart line as returned to clients.
type CartItemView struct {
	ID        string         `json:"id"`
	Product   ProductSummary `json:"product"`
	Quantity  int            `json:"quantity"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// CartSnapshot is the complete cart state. It is always built server-side and
// replaced wholesale on the client after any mutating call.
type CartSnapshot struct {
	Items []CartItemView  `json:"items"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

// EmptyCartSnapshot returns a snapshot with a zero total and no items.
func EmptyCartSnapshot() CartSnapshot {
	return CartSnapshot{Items: []CartItemView{}, Total: decimal.Zero, Count: 0}
}

// Recount recomputes the line-item count and the decimal total from the items.
func (s *CartSnapshot) Recount() {
	total := decimal.Zero
	for _, item := range s.Items {
		total = total.Add(item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	s.Total = total
	s.Count = len(s.Items)
}
