package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kariteco/storefront-core/pkg/db/models"
)

// Repository persists authenticated carts with GORM.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GetOrCreate returns the user's cart with items and products preloaded,
// creating an empty cart on first touch.
func (r *Repository) GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.loadCart(ctx, r.db, userID, &cart)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		cart = models.Cart{UserID: userID}
		if err := r.db.WithContext(ctx).Create(&cart).Error; err != nil {
			return nil, err
		}
		return &cart, nil
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// FindItem loads a single cart line by its identifier, scoped to the cart.
func (r *Repository) FindItem(ctx context.Context, cartID, itemID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	if err := r.db.WithContext(ctx).
		Where("id = ? AND cart_id = ?", itemID, cartID).
		First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// UpsertLines merges the provided lines into the cart inside one transaction.
// An existing (cart, product) line has its quantity incremented; a new product
// gets a fresh line at the product's current price.
func (r *Repository) UpsertLines(ctx context.Context, cartID uuid.UUID, lines []models.CartItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, line := range lines {
			var existing models.CartItem
			err := tx.Where("cart_id = ? AND product_id = ?", cartID, line.ProductID).
				First(&existing).Error
			switch {
			case err == nil:
				if err := tx.Model(&existing).
					UpdateColumn("quantity", gorm.Expr("quantity + ?", line.Quantity)).Error; err != nil {
					return err
				}
			case errors.Is(err, gorm.ErrRecordNotFound):
				line.CartID = cartID
				if err := tx.Create(&line).Error; err != nil {
					return err
				}
			default:
				return err
			}
		}
		return nil
	})
}

// SetItemQuantity overwrites the quantity of an existing line.
func (r *Repository) SetItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error {
	res := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ?", itemID).
		UpdateColumn("quantity", quantity)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteItem removes a line from the cart.
func (r *Repository) DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND cart_id = ?", itemID, cartID).
		Delete(&models.CartItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Clear removes every line from the cart.
func (r *Repository) Clear(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Delete(&models.CartItem{}).Error
}

func (r *Repository) loadCart(ctx context.Context, db *gorm.DB, userID uuid.UUID, dest *models.Cart) error {
	return db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("cart_items.created_at ASC")
		}).
		Preload("Items.Product").
		Where("user_id = ?", userID).
		First(dest).Error
}
