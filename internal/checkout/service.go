// Package checkout hands a cart over to the payment processor's hosted checkout
// and handles the customer's return from it.
package checkout

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/abandoned"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/currency"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type cartSessions interface {
	Get(ctx context.Context, sessionID string) (*cart.Store, error)
}

type abandonNotifier interface {
	AbandonedCheckout(ctx context.Context, record abandoned.Record) error
}

// Customer is the contact data collected on the checkout form.
type Customer struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"required,email,max=320"`
	Phone string `json:"phone" validate:"required,min=8,max=32"`
}

// Session is a started hosted checkout.
type Session struct {
	RedirectURL string         `json:"redirect_url"`
	AmountCents int64          `json:"amount_cents"`
	Currency    enums.Currency `json:"currency"`
	Totals      cart.Totals    `json:"totals"`
}

// Service runs checkout handoff, abandonment capture and completion.
type Service interface {
	Start(ctx context.Context, sessionID string, customer Customer) (*Session, error)
	Abandon(ctx context.Context, sessionID string, customer Customer) (*abandoned.Record, error)
	Complete(ctx context.Context, sessionID, returnToken string) (string, error)
}

type service struct {
	sessions cartSessions
	recorder abandoned.Recorder
	notifier abandonNotifier
	payment  config.PaymentConfig
	currency enums.Currency
	logg     *logger.Logger
	now      func() time.Time
}

// NewService wires checkout dependencies. notifier may be nil when customer
// messaging is not configured.
func NewService(sessions cartSessions, recorder abandoned.Recorder, notifier abandonNotifier, payment config.PaymentConfig, logg *logger.Logger) (Service, error) {
	if sessions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "cart sessions required")
	}
	if recorder == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "abandoned checkout recorder required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if strings.TrimSpace(payment.PublicKey) == "" || strings.TrimSpace(payment.CheckoutURL) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment configuration required")
	}
	code, err := enums.ParseCurrency(payment.Currency)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment currency")
	}
	return &service{
		sessions: sessions,
		recorder: recorder,
		notifier: notifier,
		payment:  payment,
		currency: code,
		logg:     logg,
		now:      time.Now,
	}, nil
}

// Start builds the hosted checkout URL for the session's current cart.
func (s *service) Start(ctx context.Context, sessionID string, customer Customer) (*Session, error) {
	store, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	items := store.Items()
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cart is empty")
	}
	totals := cart.CalculateTotals(items)
	amount := currency.ToMinorUnits(totals.Total)

	redirect, err := url.Parse(s.payment.CheckoutURL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "parse checkout url")
	}
	q := redirect.Query()
	q.Set("key", s.payment.PublicKey)
	q.Set("amount", strconv.FormatInt(amount, 10))
	q.Set("currency", s.currency.String())
	q.Set("session", sessionID)
	q.Set("items", strconv.Itoa(totals.ItemCount))
	q.Set("name", strings.TrimSpace(customer.Name))
	q.Set("email", strings.TrimSpace(customer.Email))
	q.Set("phone", strings.TrimSpace(customer.Phone))
	q.Set("callback_url", s.payment.CallbackURL)
	if s.payment.ReturnSecret != "" {
		token, err := auth.MintReturnToken(s.payment.ReturnSecret, s.now(), s.payment.ReturnTTL, sessionID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sign checkout return")
		}
		q.Set("return_token", token)
	}
	redirect.RawQuery = q.Encode()

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"session_id":   sessionID,
		"amount_cents": amount,
	})
	s.logg.Info(logCtx, "checkout.started")

	return &Session{
		RedirectURL: redirect.String(),
		AmountCents: amount,
		Currency:    s.currency,
		Totals:      totals,
	}, nil
}

// Abandon records the customer's details and current cart, then sends a reminder
// on a best-effort basis.
func (s *service) Abandon(ctx context.Context, sessionID string, customer Customer) (*abandoned.Record, error) {
	store, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	record, err := s.recorder.Save(ctx, abandoned.CheckoutData{
		SessionID:    sessionID,
		CustomerName: strings.TrimSpace(customer.Name),
		Email:        strings.TrimSpace(customer.Email),
		Phone:        strings.TrimSpace(customer.Phone),
		Items:        store.Items(),
	})
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		if err := s.notifier.AbandonedCheckout(ctx, record); err != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"session_id": sessionID,
				"record_id":  record.ID.String(),
				"error":      err.Error(),
			})
			s.logg.Warn(logCtx, "checkout.abandon.notify_failed")
		}
	}
	return &record, nil
}

// Complete empties the paid cart and returns where the customer goes next. The
// session keeps its store so a mounted embed stays attached to it. When a return
// secret is configured, returnToken must be the one minted by Start.
func (s *service) Complete(ctx context.Context, sessionID, returnToken string) (string, error) {
	if s.payment.ReturnSecret != "" {
		if err := auth.VerifyReturnToken(s.payment.ReturnSecret, returnToken, sessionID); err != nil {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"session_id": sessionID,
				"error":      err.Error(),
			}), "checkout.return.rejected")
			return "", pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid checkout return token")
		}
	}
	store, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return "", err
	}
	store.Clear(ctx)

	s.logg.Info(s.logg.WithSessionID(ctx, sessionID), "checkout.completed")
	if s.payment.UpsellURL != "" {
		return s.payment.UpsellURL, nil
	}
	return s.payment.CallbackURL, nil
}
