package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kariteco/storefront-core/api/responses"
	"github.com/kariteco/storefront-core/internal/products"
	pkgerrors "github.com/kariteco/storefront-core/pkg/errors"
	"github.com/kariteco/storefront-core/pkg/logger"
	"github.com/kariteco/storefront-core/pkg/types"
)

// ProductsList returns the active catalog page.
func ProductsList(repo *products.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		list, err := repo.List(r.Context(), limit, offset)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products"))
			return
		}

		summaries := make([]types.ProductSummary, 0, len(list))
		for i := range list {
			summaries = append(summaries, products.Summary(&list[i]))
		}
		responses.WriteSuccess(w, summaries)
	}
}

// ProductsGet returns a single active product.
func ProductsGet(repo *products.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "productID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid product id"))
			return
		}

		product, err := repo.GetActiveByID(r.Context(), id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "product not found"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product"))
			return
		}
		responses.WriteSuccess(w, products.Summary(product))
	}
}
