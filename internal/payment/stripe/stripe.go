// Package stripe implements payment.Provider on Stripe Checkout.
package stripe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/barflow/barflow/internal/domain/payment"
)

var _ payment.Provider = (*Provider)(nil)

// MaxPayloadBytes is the largest webhook body accepted.
const MaxPayloadBytes = 64 << 10

// metadataOrderID is the session metadata key carrying the order id.
const metadataOrderID = "order_id"

// Event types acted on. Everything else maps to payment.EventIgnored.
const (
	eventSessionCompleted          = "checkout.session.completed"
	eventSessionAsyncPaymentOK     = "checkout.session.async_payment_succeeded"
	eventSessionExpired            = "checkout.session.expired"
	eventSessionAsyncPaymentFailed = "checkout.session.async_payment_failed"
)

// Config holds Stripe credentials.
type Config struct {
	SecretKey     string
	WebhookSecret string
}

// Provider creates hosted checkout sessions and verifies webhooks.
type Provider struct {
	webhookSecret string
	newSession    func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// New returns a Provider using the Stripe API with cfg's credentials.
func New(cfg Config) (*Provider, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("stripe secret key is required")
	}
	if cfg.WebhookSecret == "" {
		return nil, errors.New("stripe webhook secret is required")
	}
	sc := client.New(cfg.SecretKey, nil)
	return &Provider{
		webhookSecret: cfg.WebhookSecret,
		newSession:    sc.CheckoutSessions.New,
	}, nil
}

// CreateCheckout opens a one-line payment session for the full order total.
// The order id travels as client reference and metadata so webhooks can be
// matched back to it.
func (p *Provider) CreateCheckout(ctx context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.OrderID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(req.Currency),
				UnitAmount: stripe.Int64(req.AmountMinor),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("Order at " + req.BarName),
				},
			},
		}},
	}
	params.Context = ctx
	params.AddMetadata(metadataOrderID, req.OrderID)
	params.SetIdempotencyKey(idempotencyKey(req))

	s, err := p.newSession(params)
	if err != nil {
		return nil, errors.Wrapf(err, "create checkout session for order %q", req.OrderID)
	}
	return &payment.CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

// idempotencyKey covers every parameter sent to Stripe: a retried request
// reuses the session, while changed URLs or amount open a new one instead of
// failing on a key reused with different parameters.
func idempotencyKey(req payment.CheckoutRequest) string {
	h := sha256.New()
	for _, v := range []string{req.Currency, strconv.FormatInt(req.AmountMinor, 10), req.SuccessURL, req.CancelURL} {
		h.Write([]byte(v))
		h.Write([]byte{0})
	}
	return "checkout-" + req.OrderID + "-" + hex.EncodeToString(h.Sum(nil)[:12])
}

// ParseWebhook verifies the Stripe-Signature header against payload and
// maps the event onto a payment.Event.
func (p *Provider) ParseWebhook(payload []byte, signature string) (*payment.Event, error) {
	if len(payload) > MaxPayloadBytes {
		return nil, errors.Wrap(payment.ErrInvalidSignature, "payload too large")
	}
	ev, err := webhook.ConstructEventWithOptions(payload, signature, p.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return nil, errors.Wrapf(payment.ErrInvalidSignature, "verify: %v", err)
	}

	out := &payment.Event{
		ID:   ev.ID,
		Type: string(ev.Type),
		Kind: kindOf(string(ev.Type)),
	}
	if out.Kind == payment.EventIgnored || ev.Data == nil {
		return out, nil
	}

	var s stripe.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
		return nil, errors.Wrapf(err, "decode checkout session of event %q", ev.ID)
	}
	// A completed session paid by a delayed method is settled later by
	// async_payment_succeeded or async_payment_failed.
	if ev.Type == eventSessionCompleted && s.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
		out.Kind = payment.EventIgnored
	}
	out.SessionID = s.ID
	out.AmountMinor = s.AmountTotal
	out.Currency = string(s.Currency)
	out.OrderID = s.ClientReferenceID
	if id := s.Metadata[metadataOrderID]; id != "" {
		out.OrderID = id
	}
	return out, nil
}

func kindOf(eventType string) payment.EventKind {
	switch eventType {
	case eventSessionCompleted, eventSessionAsyncPaymentOK:
		return payment.EventPaymentSucceeded
	case eventSessionExpired, eventSessionAsyncPaymentFailed:
		return payment.EventPaymentFailed
	default:
		return payment.EventIgnored
	}
}
