package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a sellable catalog entry. Prices are stored as numeric to avoid
// float drift; all arithmetic goes through decimal.Decimal.
type Product struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Slug        string          `gorm:"column:slug;uniqueIndex;not null"`
	Title       string          `gorm:"column:title;not null"`
	Description string          `gorm:"column:description"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null"`
	ImageURL    string          `gorm:"column:image_url"`
	StockQty    int             `gorm:"column:stock_qty;not null;default:0"`
	IsActive    bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(_ *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
