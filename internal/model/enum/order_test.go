package enum

import "testing"

func TestOrderSide(t *testing.T) {
	if OrderSideBuy.Opposite() != OrderSideSell || OrderSideSell.Opposite() != OrderSideBuy {
		t.Fatal("Opposite must flip buy and sell")
	}
	if OrderSideBuy.String() != "BUY" || OrderSideSell.String() != "SELL" {
		t.Fatal("unexpected side strings")
	}

	side, ok := ParseOrderSide("BUY")
	if !ok || side != OrderSideBuy {
		t.Fatal("parse BUY")
	}
	if _, ok := ParseOrderSide("HOLD"); ok {
		t.Fatal("HOLD is not a side")
	}
	if !OrderSideBuy.IsAvailable() || OrderSide(100).IsAvailable() {
		t.Fatal("IsAvailable bounds")
	}
}

func TestParseOrderStatus(t *testing.T) {
	testcases := map[string]OrderStatus{
		"NEW":              OrderStatusNew,
		"PARTIALLY_FILLED": OrderStatusPartialFilled,
		"FILLED":           OrderStatusFilled,
		"CANCELED":         OrderStatusCanceled,
		"EXPIRED":          OrderStatusExpired,
	}
	for raw, want := range testcases {
		got, ok := ParseOrderStatus(raw)
		if !ok || got != want {
			t.Fatalf("parse %s, got %v", raw, got)
		}
	}
	if _, ok := ParseOrderStatus("REJECTED_MAYBE"); ok {
		t.Fatal("unknown status must not parse")
	}
}
