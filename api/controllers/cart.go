package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/currency"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// CartSessions resolves the cart owned by a session.
type CartSessions interface {
	Get(ctx context.Context, sessionID string) (*cart.Store, error)
}

// SyncStatus reports whether a session's embedded view is still waiting for the
// host page.
type SyncStatus interface {
	Syncing(sessionID string) bool
}

type cartView struct {
	SessionID string          `json:"session_id"`
	Items     []cart.Item     `json:"items"`
	Totals    cart.Totals     `json:"totals"`
	Formatted formattedTotals `json:"formatted"`
	Currency  enums.Currency  `json:"currency"`
	Syncing   bool            `json:"syncing"`
}

type formattedTotals struct {
	ProductSubtotal string `json:"product_subtotal"`
	OrderBumpTotal  string `json:"order_bump_total"`
	Total           string `json:"total"`
}

// CartPresenter renders a cart store into its API shape.
type CartPresenter struct {
	Currency enums.Currency
	Sync     SyncStatus
}

func (p CartPresenter) view(store *cart.Store) cartView {
	totals := store.Totals()
	syncing := false
	if p.Sync != nil {
		syncing = p.Sync.Syncing(store.SessionID())
	}
	return cartView{
		SessionID: store.SessionID(),
		Items:     store.Items(),
		Totals:    totals,
		Formatted: formattedTotals{
			ProductSubtotal: currency.Format(totals.ProductSubtotal, p.Currency),
			OrderBumpTotal:  currency.Format(totals.OrderBumpTotal, p.Currency),
			Total:           currency.Format(totals.Total, p.Currency),
		},
		Currency: p.Currency,
		Syncing:  syncing,
	}
}

// CartFetch returns the session's cart with derived totals.
func CartFetch(sessions CartSessions, presenter CartPresenter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, ok := loadCart(w, r, sessions, logg)
		if !ok {
			return
		}
		responses.WriteSuccess(w, presenter.view(store))
	}
}

type addItemRequest struct {
	ID       string           `json:"id" validate:"required,max=200"`
	Name     string           `json:"name" validate:"required,max=500"`
	Price    *decimal.Decimal `json:"price" validate:"required"`
	Quantity int              `json:"quantity" validate:"min=0,max=10000"`
	Kind     string           `json:"kind" validate:"omitempty,max=32"`
}

func (p addItemRequest) toItem() (cart.Item, error) {
	item := cart.Item{
		ID:       p.ID,
		Name:     p.Name,
		Price:    *p.Price,
		Quantity: p.Quantity,
	}
	if p.Kind != "" {
		kind, err := enums.ParseItemKind(p.Kind)
		if err != nil {
			return cart.Item{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid kind")
		}
		item.Kind = kind
	}
	return item, nil
}

// CartAddItem adds a line or increases the quantity of an existing one.
func CartAddItem(sessions CartSessions, presenter CartPresenter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, ok := loadCart(w, r, sessions, logg)
		if !ok {
			return
		}

		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := payload.toItem()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := store.Add(r.Context(), item); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, presenter.view(store))
	}
}

type setQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

// CartSetQuantity sets a line's quantity; zero or less removes it.
func CartSetQuantity(sessions CartSessions, presenter CartPresenter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, ok := loadCart(w, r, sessions, logg)
		if !ok {
			return
		}

		var payload setQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		itemID := chi.URLParam(r, "itemId")
		if !store.SetQuantity(r.Context(), itemID, *payload.Quantity) {
			responses.WriteError(r.Context(), logg, w, itemNotFound(itemID))
			return
		}
		responses.WriteSuccess(w, presenter.view(store))
	}
}

// CartIncrement adds one to a line's quantity.
func CartIncrement(sessions CartSessions, presenter CartPresenter, logg *logger.Logger) http.HandlerFunc {
	return cartItemAction(sessions, presenter, logg, (*cart.Store).Increment)
}

// CartDecrement subtracts one from a line's quantity, removing it at zero.
func CartDecrement(sessions CartSessions, presenter CartPresenter, logg *logger.Logger) http.HandlerFunc {
	return cartItemAction(sessions, presenter, logg, (*cart.Store).Decrement)
}

// CartRemoveItem deletes a line.
func CartRemoveItem(sessions CartSessions, presenter CartPresenter, logg *logger.Logger) http.HandlerFunc {
	return cartItemAction(sessions, presenter, logg, (*cart.Store).Remove)
}

// CartClear empties the cart.
func CartClear(sessions CartSessions, presenter CartPresenter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, ok := loadCart(w, r, sessions, logg)
		if !ok {
			return
		}
		store.Clear(r.Context())
		responses.WriteSuccess(w, presenter.view(store))
	}
}

func cartItemAction(sessions CartSessions, presenter CartPresenter, logg *logger.Logger, action func(*cart.Store, context.Context, string) bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, ok := loadCart(w, r, sessions, logg)
		if !ok {
			return
		}
		itemID := chi.URLParam(r, "itemId")
		if !action(store, r.Context(), itemID) {
			responses.WriteError(r.Context(), logg, w, itemNotFound(itemID))
			return
		}
		responses.WriteSuccess(w, presenter.view(store))
	}
}

func loadCart(w http.ResponseWriter, r *http.Request, sessions CartSessions, logg *logger.Logger) (*cart.Store, bool) {
	if sessions == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart sessions unavailable"))
		return nil, false
	}
	sessionID := chi.URLParam(r, "sessionId")
	store, err := sessions.Get(r.Context(), sessionID)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return nil, false
	}
	return store, true
}

func itemNotFound(itemID string) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "item not in cart").WithDetails(map[string]string{"item_id": itemID})
}
