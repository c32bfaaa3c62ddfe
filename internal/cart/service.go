package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kariteco/storefront-core/internal/products"
	"github.com/kariteco/storefront-core/pkg/config"
	"github.com/kariteco/storefront-core/pkg/db/models"
	pkgerrors "github.com/kariteco/storefront-core/pkg/errors"
	"github.com/kariteco/storefront-core/pkg/types"
)

// Service exposes the authenticated cart operations. Every mutation returns
// the full cart snapshot so callers replace their local state wholesale
// instead of patching it.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*types.CartSnapshot, error)
	AddItem(ctx context.Context, userID uuid.UUID, req AddItemRequest) (*types.CartSnapshot, error)
	UpdateItemQuantity(ctx context.Context, userID uuid.UUID, itemID string, req UpdateItemRequest) (*types.CartSnapshot, error)
	RemoveItem(ctx context.Context, userID uuid.UUID, itemID string) (*types.CartSnapshot, error)
	Clear(ctx context.Context, userID uuid.UUID) (*types.CartSnapshot, error)
	BulkAdd(ctx context.Context, userID uuid.UUID, req BulkAddRequest) (*types.CartSnapshot, error)
}

type cartRepository interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	FindItem(ctx context.Context, cartID, itemID uuid.UUID) (*models.CartItem, error)
	UpsertLines(ctx context.Context, cartID uuid.UUID, lines []models.CartItem) error
	SetItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error
	DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) error
	Clear(ctx context.Context, cartID uuid.UUID) error
}

type productCatalog interface {
	GetActiveByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type service struct {
	repo    cartRepository
	catalog productCatalog
	cfg     config.CartConfig
}

// ServiceParams bundles the dependencies required to build a cart service.
type ServiceParams struct {
	Repo    cartRepository
	Catalog productCatalog
	Config  config.CartConfig
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("cart repository is required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("product catalog is required")
	}
	return &service{repo: params.Repo, catalog: params.Catalog, cfg: params.Config}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*types.CartSnapshot, error) {
	cart, err := s.repo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	return snapshotFromModel(cart), nil
}

func (s *service) AddItem(ctx context.Context, userID uuid.UUID, req AddItemRequest) (*types.CartSnapshot, error) {
	return s.BulkAdd(ctx, userID, BulkAddRequest{Items: []AddItemRequest{req}})
}

func (s *service) BulkAdd(ctx context.Context, userID uuid.UUID, req BulkAddRequest) (*types.CartSnapshot, error) {
	merged, err := s.mergeLines(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	cart, err := s.repo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	if err := s.repo.UpsertLines(ctx, cart.ID, merged); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "merge cart lines")
	}
	return s.Get(ctx, userID)
}

func (s *service) UpdateItemQuantity(ctx context.Context, userID uuid.UUID, itemID string, req UpdateItemRequest) (*types.CartSnapshot, error) {
	if err := s.validateQuantity(req.Quantity); err != nil {
		return nil, err
	}

	cart, lineID, err := s.resolveItem(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetItemQuantity(ctx, lineID, req.Quantity); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart item")
	}
	return s.Get(ctx, cart.UserID)
}

func (s *service) RemoveItem(ctx context.Context, userID uuid.UUID, itemID string) (*types.CartSnapshot, error) {
	cart, lineID, err := s.resolveItem(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.DeleteItem(ctx, cart.ID, lineID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove cart item")
	}
	return s.Get(ctx, userID)
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) (*types.CartSnapshot, error) {
	cart, err := s.repo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	if err := s.repo.Clear(ctx, cart.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
	}
	return s.Get(ctx, userID)
}

// mergeLines validates quantities, sums duplicate product IDs, and resolves
// each product against the catalog so lines carry the current unit price.
func (s *service) mergeLines(ctx context.Context, items []AddItemRequest) ([]models.CartItem, error) {
	quantities := make(map[uuid.UUID]int, len(items))
	order := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if err := s.validateQuantity(item.Quantity); err != nil {
			return nil, err
		}
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid product id")
		}
		if _, seen := quantities[productID]; !seen {
			order = append(order, productID)
		}
		quantities[productID] += item.Quantity
	}

	lines := make([]models.CartItem, 0, len(order))
	for _, productID := range order {
		product, err := s.catalog.GetActiveByID(ctx, productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
					WithDetails(map[string]string{"product_id": productID.String()})
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup product")
		}
		qty := quantities[productID]
		if err := s.validateQuantity(qty); err != nil {
			return nil, err
		}
		lines = append(lines, models.CartItem{
			ProductID: product.ID,
			Quantity:  qty,
			UnitPrice: product.Price,
		})
	}
	return lines, nil
}

func (s *service) resolveItem(ctx context.Context, userID uuid.UUID, itemID string) (*models.Cart, uuid.UUID, error) {
	lineID, err := uuid.Parse(itemID)
	if err != nil {
		return nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid cart item id")
	}
	cart, err := s.repo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	if _, err := s.repo.FindItem(ctx, cart.ID, lineID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup cart item")
	}
	return cart, lineID, nil
}

func (s *service) validateQuantity(qty int) error {
	if qty < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if s.cfg.MaxItemQuantity > 0 && qty > s.cfg.MaxItemQuantity {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity exceeds the per-item limit").
			WithDetails(map[string]int{"max": s.cfg.MaxItemQuantity})
	}
	return nil
}

func snapshotFromModel(cart *models.Cart) *types.CartSnapshot {
	snapshot := types.EmptyCartSnapshot()
	if cart == nil {
		return &snapshot
	}
	for _, item := range cart.Items {
		view := types.CartItemView{
			ID:        item.ID.String(),
			Product:   products.Summary(&item.Product),
			Quantity:  item.Quantity,
			CreatedAt: item.CreatedAt,
			UpdatedAt: item.UpdatedAt,
		}
		// The line keeps the price it was added at.
		view.Product.Price = item.UnitPrice
		snapshot.Items = append(snapshot.Items, view)
	}
	snapshot.Recount()
	return &snapshot
}
