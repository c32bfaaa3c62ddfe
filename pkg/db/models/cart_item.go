package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CartItem is one product line inside a cart. Quantity is always >= 1; a
// request that would drop it below 1 is treated as invalid, never stored.
type CartItem struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	CartID    uuid.UUID       `gorm:"column:cart_id;type:uuid;index;not null"`
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Product   Product         `gorm:"foreignKey:ProductID"`
	Quantity  int             `gorm:"column:quantity;not null"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(10,2);not null"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *CartItem) BeforeCreate(_ *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
