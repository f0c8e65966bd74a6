// Package payments creates hosted payment pages for priced bookings.
package payments

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/stripe/stripe-go/v79"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
)

var ErrNotConfigured = errors.New("payments not configured")

type LinkRequest struct {
	ReservationID string
	CustomerID    string
	ServiceName   string
	AmountCents   int64
	Currency      string
}

// Linker returns a URL the customer can pay the reservation at.
type Linker interface {
	PaymentLink(ctx context.Context, req LinkRequest) (string, error)
}

// Disabled is used when no payment provider is configured.
type Disabled struct{}

func (Disabled) PaymentLink(context.Context, LinkRequest) (string, error) {
	return "", ErrNotConfigured
}

type StripeConfig struct {
	SecretKey  string
	SuccessURL string
	CancelURL  string
	Currency   string
}

type StripeLinker struct {
	sessions   checkoutsession.Client
	successURL string
	cancelURL  string
	currency   string
}

// NewStripeLinker returns Disabled when the secret key or return URLs are
// missing.
func NewStripeLinker(cfg StripeConfig) Linker {
	key := strings.TrimSpace(cfg.SecretKey)
	if key == "" || strings.TrimSpace(cfg.SuccessURL) == "" || strings.TrimSpace(cfg.CancelURL) == "" {
		return Disabled{}
	}
	currency := strings.ToLower(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}
	return &StripeLinker{
		sessions:   checkoutsession.Client{B: stripe.GetBackend(stripe.APIBackend), Key: key},
		successURL: strings.TrimSpace(cfg.SuccessURL),
		cancelURL:  strings.TrimSpace(cfg.CancelURL),
		currency:   currency,
	}
}

func (l *StripeLinker) PaymentLink(ctx context.Context, req LinkRequest) (string, error) {
	if req.AmountCents <= 0 {
		return "", errors.New("amount must be positive")
	}
	params := checkoutParams(req, l.successURL, l.cancelURL, l.currency)
	params.Context = ctx

	sess, err := l.sessions.New(params)
	if err != nil {
		return "", err
	}
	return sess.URL, nil
}

func checkoutParams(req LinkRequest, successURL, cancelURL, currency string) *stripe.CheckoutSessionParams {
	if req.Currency != "" {
		currency = strings.ToLower(req.Currency)
	}
	name := req.ServiceName
	if strings.TrimSpace(name) == "" {
		name = "Reservation"
	}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(withQueryParam(successURL, "reservation_id", req.ReservationID)),
		CancelURL:         stripe.String(withQueryParam(cancelURL, "reservation_id", req.ReservationID)),
		ClientReferenceID: stripe.String(req.ReservationID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(currency),
					UnitAmount: stripe.Int64(req.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(name),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{
			"reservation_id": req.ReservationID,
			"customer_id":    req.CustomerID,
		},
	}
	// One session per reservation, even if the booking response is replayed.
	params.IdempotencyKey = stripe.String("checkout:" + req.ReservationID)
	return params
}

func withQueryParam(raw, key, value string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}
