// Package payment describes the hosted-checkout provider the order service
// talks to. Provider implementations live outside the domain tree.
package payment

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
)

// ErrInvalidSignature is returned when a webhook payload fails verification.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// CheckoutRequest holds everything needed to open a hosted checkout page.
type CheckoutRequest struct {
	OrderID     string
	BarName     string
	AmountMinor int64
	Currency    string
	SuccessURL  string
	CancelURL   string
}

// CheckoutSession is the provider's handle on an open checkout.
type CheckoutSession struct {
	ID  string
	URL string
}

// EventKind classifies provider events by their effect on an order.
type EventKind string

const (
	// EventPaymentSucceeded confirms the customer paid.
	EventPaymentSucceeded EventKind = "payment_succeeded"
	// EventPaymentFailed covers expired sessions and failed async payments.
	EventPaymentFailed EventKind = "payment_failed"
	// EventIgnored is any event type the service does not act on.
	EventIgnored EventKind = "ignored"
)

// Event is a verified, provider-neutral webhook event.
type Event struct {
	ID          string
	Type        string
	Kind        EventKind
	OrderID     string
	SessionID   string
	AmountMinor int64
	Currency    string
}

// Provider creates checkout sessions and verifies webhook deliveries.
type Provider interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	ParseWebhook(payload []byte, signature string) (*Event, error)
}

// MismatchError reports a payment confirmation whose amount or currency
// differs from the order it refers to.
type MismatchError struct {
	OrderID          string
	ExpectedMinor    int64
	ExpectedCurrency string
	PaidMinor        int64
	PaidCurrency     string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("payment mismatch for order %s: expected %d %s, paid %d %s",
		e.OrderID, e.ExpectedMinor, e.ExpectedCurrency, e.PaidMinor, e.PaidCurrency)
}
