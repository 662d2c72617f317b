package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// CheckoutStart validates the customer form and returns the hosted checkout
// redirect for the session's cart.
func CheckoutStart(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var customer checkout.Customer
		if err := validators.DecodeJSONBody(r, &customer); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.Start(r.Context(), chi.URLParam(r, "sessionId"), customer)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}

type abandonRequest struct {
	Name  string `json:"name" validate:"max=200"`
	Email string `json:"email" validate:"omitempty,email,max=320"`
	Phone string `json:"phone" validate:"omitempty,min=8,max=32"`
}

const (
	maxCustomerNameLen = 200
	maxPhoneLen        = 32
)

type abandonResponse struct {
	Recorded bool   `json:"recorded"`
	ID       string `json:"id,omitempty"`
}

// CheckoutAbandon captures a customer who left the checkout form. Storage
// failures never block the customer: they are logged and reported as
// recorded=false.
func CheckoutAbandon(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload abandonRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sessionID := chi.URLParam(r, "sessionId")
		record, err := svc.Abandon(r.Context(), sessionID, checkout.Customer{
			Name:  validators.SanitizeString(payload.Name, maxCustomerNameLen),
			Email: strings.TrimSpace(payload.Email),
			Phone: validators.SanitizeString(payload.Phone, maxPhoneLen),
		})
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			logCtx := logg.WithFields(r.Context(), map[string]any{
				"session_id": sessionID,
				"error":      err.Error(),
			})
			logg.Warn(logCtx, "checkout.abandon.record_failed")
			responses.WriteSuccessStatus(w, http.StatusAccepted, abandonResponse{Recorded: false})
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, abandonResponse{Recorded: true, ID: record.ID.String()})
	}
}

// CheckoutCallback is the payment processor's return URL. It empties the paid
// cart and redirects the customer onward. The return_token query parameter is
// checked when checkout returns are signed.
func CheckoutCallback(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		sessionID := strings.TrimSpace(r.URL.Query().Get("session"))
		if sessionID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "session query parameter required"))
			return
		}

		next, err := svc.Complete(r.Context(), sessionID, r.URL.Query().Get("return_token"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		http.Redirect(w, r, next, http.StatusSeeOther)
	}
}
