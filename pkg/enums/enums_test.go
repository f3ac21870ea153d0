package enums

import "testing"

func TestCurrencyExponent(t *testing.T) {
	if got := CurrencyUSD.Exponent(); got != 2 {
		t.Fatalf("expected USD exponent 2, got %d", got)
	}
	if got := CurrencyJPY.Exponent(); got != 0 {
		t.Fatalf("expected JPY exponent 0, got %d", got)
	}
	if got := Currency("XXX").Exponent(); got != 2 {
		t.Fatalf("expected unknown currency to default to 2, got %d", got)
	}
}

func TestParseCurrencyNormalizes(t *testing.T) {
	got, err := ParseCurrency(" usd ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != CurrencyUSD {
		t.Fatalf("expected USD, got %s", got)
	}
	if _, err := ParseCurrency("dollars"); err == nil {
		t.Fatal("expected invalid currency to fail")
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	for _, status := range []OrderStatus{OrderStatusDispatched, OrderStatusCancelled} {
		if !status.IsTerminal() {
			t.Fatalf("expected %s to be terminal", status)
		}
	}
	for _, status := range []OrderStatus{OrderStatusCart, OrderStatusPending, OrderStatusProcessing} {
		if status.IsTerminal() {
			t.Fatalf("expected %s to accept payments", status)
		}
	}
}

func TestParsePaymentMethod(t *testing.T) {
	if _, err := ParsePaymentMethod("square"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParsePaymentMethod("bitcoin"); err == nil {
		t.Fatal("expected unknown method to fail")
	}
}
