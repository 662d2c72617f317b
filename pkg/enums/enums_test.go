package enums

import "testing"

func TestParseItemKind(t *testing.T) {
	kind, err := ParseItemKind("order_bump")
	if err != nil || kind != ItemKindOrderBump {
		t.Fatalf("unexpected parse result %q %v", kind, err)
	}
	if _, err := ParseItemKind("bundle"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
	if ItemKind("").IsValid() {
		t.Fatal("empty kind must be invalid")
	}
}

func TestParseCurrencyCaseInsensitive(t *testing.T) {
	c, err := ParseCurrency(" brl ")
	if err != nil || c != CurrencyBRL {
		t.Fatalf("unexpected parse result %q %v", c, err)
	}
	if _, err := ParseCurrency("BTC"); err == nil {
		t.Fatal("expected BTC to be rejected")
	}
}

func TestBridgeMessageTypes(t *testing.T) {
	for _, raw := range []string{"cart.update", "cart.ready", "cart.sync"} {
		if _, err := ParseBridgeMessageType(raw); err != nil {
			t.Fatalf("expected %q to parse: %v", raw, err)
		}
	}
	if BridgeMessageType("UPDATE_CART").IsValid() {
		t.Fatal("unexpected valid type")
	}
}
