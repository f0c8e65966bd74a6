package payments

import (
	"context"
	"errors"
	"testing"
)

func TestNewStripeLinkerDisabledWithoutConfig(t *testing.T) {
	l := NewStripeLinker(StripeConfig{SecretKey: "sk_test_x"})
	if _, ok := l.(Disabled); !ok {
		t.Fatalf("expected Disabled linker without return urls, got %T", l)
	}
	if _, err := l.PaymentLink(context.Background(), LinkRequest{AmountCents: 100}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestCheckoutParams(t *testing.T) {
	p := checkoutParams(LinkRequest{
		ReservationID: "res-1",
		CustomerID:    "cust-1",
		ServiceName:   "Skin Fade",
		AmountCents:   3500,
	}, "https://chairup.test/paid?x=1", "https://chairup.test/cancel", "usd")

	if got := *p.SuccessURL; got != "https://chairup.test/paid?reservation_id=res-1&x=1" {
		t.Fatalf("unexpected success url %s", got)
	}
	if got := *p.ClientReferenceID; got != "res-1" {
		t.Fatalf("expected client reference res-1, got %s", got)
	}
	if len(p.LineItems) != 1 {
		t.Fatalf("expected one line item, got %d", len(p.LineItems))
	}
	pd := p.LineItems[0].PriceData
	if *pd.UnitAmount != 3500 || *pd.Currency != "usd" || *pd.ProductData.Name != "Skin Fade" {
		t.Fatalf("unexpected price data %+v", pd)
	}
	if *p.IdempotencyKey != "checkout:res-1" {
		t.Fatalf("unexpected idempotency key %s", *p.IdempotencyKey)
	}
}
