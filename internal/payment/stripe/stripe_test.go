package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"

	"github.com/barflow/barflow/internal/domain/payment"
)

const testSecret = "whsec_test_secret"

func sign(payload []byte, secret string, at time.Time) string {
	ts := at.Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func eventPayload(id, typ, session string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": %q,
		"object": "event",
		"type": %q,
		"api_version": "2025-03-31.basil",
		"created": 1760000000,
		"data": {"object": %s}
	}`, id, typ, session))
}

const paidSession = `{
	"id": "cs_test_1",
	"object": "checkout.session",
	"client_reference_id": "7f9c1f0e-3a57-4a53-9d0f-2d3c9a1b6e11",
	"metadata": {"order_id": "7f9c1f0e-3a57-4a53-9d0f-2d3c9a1b6e11"},
	"amount_total": 1900,
	"currency": "gbp",
	"payment_status": "paid"
}`

func newTestProvider() *Provider {
	return &Provider{webhookSecret: testSecret}
}

func TestNew_RequiresSecrets(t *testing.T) {
	_, err := New(Config{WebhookSecret: testSecret})
	assert.Error(t, err)
	_, err = New(Config{SecretKey: "sk_test"})
	assert.Error(t, err)
}

func TestParseWebhook_Kinds(t *testing.T) {
	tests := []struct {
		typ  string
		kind payment.EventKind
	}{
		{"checkout.session.completed", payment.EventPaymentSucceeded},
		{"checkout.session.async_payment_succeeded", payment.EventPaymentSucceeded},
		{"checkout.session.expired", payment.EventPaymentFailed},
		{"checkout.session.async_payment_failed", payment.EventPaymentFailed},
		{"customer.created", payment.EventIgnored},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			payload := eventPayload("evt_1", tt.typ, paidSession)
			ev, err := newTestProvider().ParseWebhook(payload, sign(payload, testSecret, time.Now()))
			require.NoError(t, err)
			assert.Equal(t, "evt_1", ev.ID)
			assert.Equal(t, tt.typ, ev.Type)
			assert.Equal(t, tt.kind, ev.Kind)
		})
	}
}

func TestParseWebhook_SessionFields(t *testing.T) {
	payload := eventPayload("evt_2", "checkout.session.completed", paidSession)
	ev, err := newTestProvider().ParseWebhook(payload, sign(payload, testSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, &payment.Event{
		ID:          "evt_2",
		Type:        "checkout.session.completed",
		Kind:        payment.EventPaymentSucceeded,
		OrderID:     "7f9c1f0e-3a57-4a53-9d0f-2d3c9a1b6e11",
		SessionID:   "cs_test_1",
		AmountMinor: 1900,
		Currency:    "gbp",
	}, ev)
}

func TestParseWebhook_UnpaidCompletionIgnored(t *testing.T) {
	session := strings.Replace(paidSession, `"payment_status": "paid"`, `"payment_status": "unpaid"`, 1)
	payload := eventPayload("evt_3", "checkout.session.completed", session)
	ev, err := newTestProvider().ParseWebhook(payload, sign(payload, testSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, payment.EventIgnored, ev.Kind)
}

func TestParseWebhook_RejectsBadSignatures(t *testing.T) {
	payload := eventPayload("evt_4", "checkout.session.completed", paidSession)
	tests := map[string]string{
		"missing":      "",
		"wrong secret": sign(payload, "whsec_other", time.Now()),
		"stale":        sign(payload, testSecret, time.Now().Add(-time.Hour)),
		"garbage":      "t=abc,v1=zzz",
	}
	for name, sig := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := newTestProvider().ParseWebhook(payload, sig)
			assert.ErrorIs(t, err, payment.ErrInvalidSignature)
		})
	}

	tampered := []byte(strings.Replace(string(payload), "1900", "1", 1))
	_, err := newTestProvider().ParseWebhook(tampered, sign(payload, testSecret, time.Now()))
	assert.ErrorIs(t, err, payment.ErrInvalidSignature)
}

func TestParseWebhook_TooLarge(t *testing.T) {
	payload := make([]byte, MaxPayloadBytes+1)
	_, err := newTestProvider().ParseWebhook(payload, sign(payload, testSecret, time.Now()))
	assert.ErrorIs(t, err, payment.ErrInvalidSignature)
}

func TestCreateCheckout(t *testing.T) {
	var got *stripe.CheckoutSessionParams
	p := newTestProvider()
	p.newSession = func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		got = params
		return &stripe.CheckoutSession{ID: "cs_test_9", URL: "https://checkout.stripe.com/c/pay/cs_test_9"}, nil
	}

	s, err := p.CreateCheckout(context.Background(), payment.CheckoutRequest{
		OrderID:     "7f9c1f0e-3a57-4a53-9d0f-2d3c9a1b6e11",
		BarName:     "The Rookery",
		AmountMinor: 1900,
		Currency:    "gbp",
		SuccessURL:  "https://rookery.example/paid",
		CancelURL:   "https://rookery.example/cart",
	})
	require.NoError(t, err)
	assert.Equal(t, &payment.CheckoutSession{ID: "cs_test_9", URL: "https://checkout.stripe.com/c/pay/cs_test_9"}, s)

	require.NotNil(t, got)
	assert.Equal(t, "payment", *got.Mode)
	assert.Equal(t, "7f9c1f0e-3a57-4a53-9d0f-2d3c9a1b6e11", *got.ClientReferenceID)
	assert.Equal(t, "7f9c1f0e-3a57-4a53-9d0f-2d3c9a1b6e11", got.Metadata["order_id"])
	require.Len(t, got.LineItems, 1)
	assert.Equal(t, int64(1900), *got.LineItems[0].PriceData.UnitAmount)
	assert.Equal(t, "gbp", *got.LineItems[0].PriceData.Currency)
	assert.Equal(t, "Order at The Rookery", *got.LineItems[0].PriceData.ProductData.Name)
	require.NotNil(t, got.IdempotencyKey)
	assert.Contains(t, *got.IdempotencyKey, "checkout-7f9c1f0e-3a57-4a53-9d0f-2d3c9a1b6e11-")
}

func TestCreateCheckout_IdempotencyKeyFollowsParams(t *testing.T) {
	var keys []string
	p := newTestProvider()
	p.newSession = func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		keys = append(keys, *params.IdempotencyKey)
		return &stripe.CheckoutSession{ID: "cs_test_9"}, nil
	}
	req := payment.CheckoutRequest{
		OrderID:     "o1",
		AmountMinor: 1900,
		Currency:    "gbp",
		SuccessURL:  "https://rookery.example/paid",
		CancelURL:   "https://rookery.example/cart",
	}
	ctx := context.Background()

	_, err := p.CreateCheckout(ctx, req)
	require.NoError(t, err)
	_, err = p.CreateCheckout(ctx, req)
	require.NoError(t, err)

	other := req
	other.SuccessURL = "https://rookery.example/thanks"
	_, err = p.CreateCheckout(ctx, other)
	require.NoError(t, err)

	other = req
	other.CancelURL = "https://rookery.example/menu"
	_, err = p.CreateCheckout(ctx, other)
	require.NoError(t, err)

	require.Len(t, keys, 4)
	assert.Equal(t, keys[0], keys[1], "retry reuses the key")
	assert.NotEqual(t, keys[0], keys[2])
	assert.NotEqual(t, keys[0], keys[3])
	assert.NotEqual(t, keys[2], keys[3])
}

func TestCreateCheckout_Error(t *testing.T) {
	p := newTestProvider()
	p.newSession = func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		return nil, errors.New("card_declined")
	}
	_, err := p.CreateCheckout(context.Background(), payment.CheckoutRequest{OrderID: "o1"})
	assert.ErrorContains(t, err, "card_declined")
}
