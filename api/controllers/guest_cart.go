package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kariteco/storefront-core/api/middleware"
	"github.com/kariteco/storefront-core/api/responses"
	"github.com/kariteco/storefront-core/api/validators"
	"github.com/kariteco/storefront-core/internal/cart"
	"github.com/kariteco/storefront-core/internal/guestcart"
	"github.com/kariteco/storefront-core/pkg/errors"
	"github.com/kariteco/storefront-core/pkg/logger"
)

func currentGuestSession(r *http.Request) (string, error) {
	sessionID := middleware.GuestSessionFromContext(r.Context())
	if sessionID == "" {
		return "", errors.New(errors.CodeValidation, "missing guest session")
	}
	return sessionID, nil
}

// GuestCartGet returns the guest session's cart snapshot.
func GuestCartGet(svc guestcart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := currentGuestSession(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snapshot, err := svc.Get(r.Context(), sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}

// GuestCartAddItem adds a product line or increments an existing one.
func GuestCartAddItem(svc guestcart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := currentGuestSession(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body cart.AddItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snapshot, err := svc.AddItem(r.Context(), sessionID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}

// GuestCartUpdateItem replaces the quantity of an existing line.
func GuestCartUpdateItem(svc guestcart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := currentGuestSession(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body cart.UpdateItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snapshot, err := svc.UpdateItemQuantity(r.Context(), sessionID, chi.URLParam(r, "itemID"), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}

// GuestCartRemoveItem deletes a line from the guest cart.
func GuestCartRemoveItem(svc guestcart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := currentGuestSession(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snapshot, err := svc.RemoveItem(r.Context(), sessionID, chi.URLParam(r, "itemID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}

// GuestCartClear drops the guest cart document entirely.
func GuestCartClear(svc guestcart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := currentGuestSession(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snapshot, err := svc.Clear(r.Context(), sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}
