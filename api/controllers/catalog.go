package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// CartOrderBumps lists the order bumps the session's cart currently qualifies for.
func CartOrderBumps(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		bumps, err := svc.EligibleOrderBumps(r.Context(), chi.URLParam(r, "sessionId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, bumps)
	}
}

// CartAddOrderBump adds an order bump line to the cart and returns the cart.
func CartAddOrderBump(svc catalog.Service, sessions CartSessions, presenter CartPresenter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		bumpID, err := uuid.Parse(chi.URLParam(r, "bumpId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order bump id"))
			return
		}
		if _, err := svc.AddOrderBump(r.Context(), chi.URLParam(r, "sessionId"), bumpID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		store, ok := loadCart(w, r, sessions, logg)
		if !ok {
			return
		}
		responses.WriteSuccess(w, presenter.view(store))
	}
}

// Upsells lists the active post-purchase offers.
func Upsells(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		upsells, err := svc.ActiveUpsells(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, upsells)
	}
}
