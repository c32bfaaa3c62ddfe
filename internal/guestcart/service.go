package guestcart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kariteco/storefront-core/internal/cart"
	"github.com/kariteco/storefront-core/internal/products"
	"github.com/kariteco/storefront-core/pkg/config"
	"github.com/kariteco/storefront-core/pkg/db/models"
	pkgerrors "github.com/kariteco/storefront-core/pkg/errors"
	"github.com/kariteco/storefront-core/pkg/types"
)

// Service mirrors the authenticated cart operations for anonymous shoppers.
// State lives in a per-session Redis document instead of postgres.
type Service interface {
	Get(ctx context.Context, sessionID string) (*types.CartSnapshot, error)
	AddItem(ctx context.Context, sessionID string, req cart.AddItemRequest) (*types.CartSnapshot, error)
	UpdateItemQuantity(ctx context.Context, sessionID string, itemID string, req cart.UpdateItemRequest) (*types.CartSnapshot, error)
	RemoveItem(ctx context.Context, sessionID string, itemID string) (*types.CartSnapshot, error)
	Clear(ctx context.Context, sessionID string) (*types.CartSnapshot, error)
}

type documentStore interface {
	Load(ctx context.Context, sessionID string) (*document, error)
	Save(ctx context.Context, sessionID string, doc *document) error
	Delete(ctx context.Context, sessionID string) error
}

type productCatalog interface {
	GetActiveByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type service struct {
	store   documentStore
	catalog productCatalog
	cfg     config.CartConfig
	now     func() time.Time
}

// ServiceParams bundles the dependencies required to build a guest cart service.
type ServiceParams struct {
	Store   documentStore
	Catalog productCatalog
	Config  config.CartConfig

	// Now is overridable in tests; defaults to time.Now.
	Now func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("guest cart store is required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("product catalog is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{store: params.Store, catalog: params.Catalog, cfg: params.Config, now: now}, nil
}

func (s *service) Get(ctx context.Context, sessionID string) (*types.CartSnapshot, error) {
	doc, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load guest cart")
	}
	return snapshotFromDocument(doc), nil
}

func (s *service) AddItem(ctx context.Context, sessionID string, req cart.AddItemRequest) (*types.CartSnapshot, error) {
	if err := s.validateQuantity(req.Quantity); err != nil {
		return nil, err
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid product id")
	}

	product, err := s.catalog.GetActiveByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup product")
	}

	doc, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load guest cart")
	}

	now := s.now().UTC()
	merged := false
	for i := range doc.Items {
		if doc.Items[i].Product.ID == product.ID.String() {
			if err := s.validateQuantity(doc.Items[i].Quantity + req.Quantity); err != nil {
				return nil, err
			}
			doc.Items[i].Quantity += req.Quantity
			doc.Items[i].UpdatedAt = now
			merged = true
			break
		}
	}
	if !merged {
		doc.Items = append(doc.Items, types.CartItemView{
			ID:        uuid.NewString(),
			Product:   products.Summary(product),
			Quantity:  req.Quantity,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	if err := s.store.Save(ctx, sessionID, doc); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save guest cart")
	}
	return snapshotFromDocument(doc), nil
}

func (s *service) UpdateItemQuantity(ctx context.Context, sessionID string, itemID string, req cart.UpdateItemRequest) (*types.CartSnapshot, error) {
	if err := s.validateQuantity(req.Quantity); err != nil {
		return nil, err
	}

	doc, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load guest cart")
	}

	found := false
	for i := range doc.Items {
		if doc.Items[i].ID == itemID {
			doc.Items[i].Quantity = req.Quantity
			doc.Items[i].UpdatedAt = s.now().UTC()
			found = true
			break
		}
	}
	if !found {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}

	if err := s.store.Save(ctx, sessionID, doc); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save guest cart")
	}
	return snapshotFromDocument(doc), nil
}

func (s *service) RemoveItem(ctx context.Context, sessionID string, itemID string) (*types.CartSnapshot, error) {
	doc, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load guest cart")
	}

	kept := doc.Items[:0]
	found := false
	for _, item := range doc.Items {
		if item.ID == itemID {
			found = true
			continue
		}
		kept = append(kept, item)
	}
	if !found {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	doc.Items = kept

	if err := s.store.Save(ctx, sessionID, doc); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save guest cart")
	}
	return snapshotFromDocument(doc), nil
}

func (s *service) Clear(ctx context.Context, sessionID string) (*types.CartSnapshot, error) {
	if err := s.store.Delete(ctx, sessionID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete guest cart")
	}
	snapshot := types.EmptyCartSnapshot()
	return &snapshot, nil
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

func snapshotFromDocument(doc *document) *types.CartSnapshot {
	snapshot := types.EmptyCartSnapshot()
	if doc != nil {
		snapshot.Items = append(snapshot.Items, doc.Items...)
	}
	snapshot.Recount()
	return &snapshot
}
