package products

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kariteco/storefront-core/pkg/db/models"
	"github.com/kariteco/storefront-core/pkg/types"
)

// Repository exposes catalog reads needed by the cart services.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GetActiveByID loads an active product by its UUID.
func (r *Repository) GetActiveByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", id, true).
		First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// List returns active products ordered by title, for the storefront catalog page.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]models.Product, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var products []models.Product
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("title ASC").
		Limit(limit).
		Offset(offset).
		Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// Summary converts a product model into the shared transport shape.
func Summary(p *models.Product) types.ProductSummary {
	if p == nil {
		return types.ProductSummary{}
	}
	return types.ProductSummary{
		ID:       p.ID.String(),
		Slug:     p.Slug,
		Title:    p.Title,
		Price:    p.Price,
		ImageURL: p.ImageURL,
	}
}
