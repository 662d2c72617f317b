// Package notifications tells customers about carts they left behind.
package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/abandoned"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/guard"
	"github.com/angelmondragon/storefront-backend/pkg/currency"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/whatsapp"
)

type messenger interface {
	Send(ctx context.Context, msg whatsapp.Message) error
}

// Service sends abandoned-checkout reminders.
type Service interface {
	AbandonedCheckout(ctx context.Context, record abandoned.Record) error
}

type service struct {
	messenger messenger
	currency  enums.Currency
	resumeURL string
	timeout   time.Duration
}

// NewService wires the reminder sender. resumeURL is appended to the message when set.
func NewService(m messenger, code enums.Currency, resumeURL string, timeout time.Duration) (Service, error) {
	if m == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "messenger required")
	}
	return &service{messenger: m, currency: code, resumeURL: strings.TrimSpace(resumeURL), timeout: timeout}, nil
}

// AbandonedCheckout messages the customer on record. Records without a phone
// number are skipped.
func (s *service) AbandonedCheckout(ctx context.Context, record abandoned.Record) error {
	if whatsapp.NormalizePhone(record.Phone) == "" {
		return nil
	}
	msg := whatsapp.Message{
		To:      record.Phone,
		Name:    record.CustomerName,
		Content: s.reminderText(record),
	}
	return guard.Run(ctx, s.timeout, func(ctx context.Context) error {
		return s.messenger.Send(ctx, msg)
	})
}

func (s *service) reminderText(record abandoned.Record) string {
	name := strings.TrimSpace(record.CustomerName)
	if name == "" {
		name = "cliente"
	} else {
		name = strings.Fields(name)[0]
	}
	totals := cart.CalculateTotals(record.Items)

	var b strings.Builder
	fmt.Fprintf(&b, "Olá %s! Seu carrinho com %d %s (%s) está esperando por você.",
		name, totals.ItemCount, pluralItems(totals.ItemCount), currency.Format(totals.Total, s.currency))
	if s.resumeURL != "" {
		fmt.Fprintf(&b, " Finalize sua compra: %s", s.resumeURL)
	}
	return b.String()
}

func pluralItems(n int) string {
	if n == 1 {
		return "item"
	}
	return "itens"
}
