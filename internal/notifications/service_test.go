package notifications

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/internal/abandoned"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/guard"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/whatsapp"
)

type fakeMessenger struct {
	sent  []whatsapp.Message
	err   error
	block bool
}

func (f *fakeMessenger) Send(ctx context.Context, msg whatsapp.Message) error {
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	f.sent = append(f.sent, msg)
	return f.err
}

func record(phone string) abandoned.Record {
	return abandoned.Record{
		CheckoutData: abandoned.CheckoutData{
			CustomerName: "Ana Souza",
			Phone:        phone,
			Items: []cart.Item{
				{ID: "a", Price: decimal.RequireFromString("1234.5"), Quantity: 1},
				{ID: "order-bump-1", Price: decimal.RequireFromString("10"), Quantity: 1},
			},
		},
	}
}

func TestAbandonedCheckoutSendsReminder(t *testing.T) {
	m := &fakeMessenger{}
	svc, err := NewService(m, enums.CurrencyBRL, "https://shop.example.com/carrinho", time.Second)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	if err := svc.AbandonedCheckout(context.Background(), record("+55 11 91234-5678")); err != nil {
		t.Fatalf("send reminder: %v", err)
	}
	if len(m.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(m.sent))
	}
	msg := m.sent[0]
	if msg.Name != "Ana Souza" || msg.To != "+55 11 91234-5678" {
		t.Fatalf("unexpected recipient %+v", msg)
	}
	for _, want := range []string{"Olá Ana!", "2 itens", "R$ 1.244,50", "https://shop.example.com/carrinho"} {
		if !strings.Contains(msg.Content, want) {
			t.Fatalf("expected %q in %q", want, msg.Content)
		}
	}
}

func TestAbandonedCheckoutSkipsMissingPhone(t *testing.T) {
	m := &fakeMessenger{}
	svc, _ := NewService(m, enums.CurrencyBRL, "", time.Second)

	if err := svc.AbandonedCheckout(context.Background(), record("")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.sent) != 0 {
		t.Fatalf("expected no message")
	}
}

func TestAbandonedCheckoutPropagatesFailures(t *testing.T) {
	m := &fakeMessenger{err: errors.New("gateway down")}
	svc, _ := NewService(m, enums.CurrencyBRL, "", time.Second)
	if err := svc.AbandonedCheckout(context.Background(), record("5511912345678")); err == nil {
		t.Fatal("expected error")
	}

	slow := &fakeMessenger{block: true}
	svc, _ = NewService(slow, enums.CurrencyBRL, "", 20*time.Millisecond)
	err := svc.AbandonedCheckout(context.Background(), record("5511912345678"))
	if !guard.IsTimeout(err) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestNewServiceRequiresMessenger(t *testing.T) {
	if _, err := NewService(nil, enums.CurrencyBRL, "", time.Second); err == nil {
		t.Fatal("expected error")
	}
}
