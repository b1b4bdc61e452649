package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/barflow/barflow/internal/domain/payment"
)

// Order is a customer order placed at a single bar.
type Order struct {
	ID                string
	BarID             string
	Status            Status
	Items             []Item
	Total             decimal.Decimal
	Currency          string
	CheckoutSessionID string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Item is a priced line of an order. Prices are copied from the menu at
// placement time so later menu edits do not change existing orders.
type Item struct {
	DrinkID   string          `json:"drink_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

// AmountMinor returns the total in minor currency units (pence, cents).
func (o *Order) AmountMinor() int64 {
	return o.Total.Shift(2).Round(0).IntPart()
}

// ListFilter narrows an order listing for one bar.
type ListFilter struct {
	BarID    string
	Status   Status
	Search   string
	Page     int
	PageSize int
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	List(ctx context.Context, f ListFilter) ([]Order, int, error)
	// CompareAndSetStatus moves the order to `to` only if its current status
	// equals `from`. It returns ErrStatusChanged when another writer got there
	// first and ErrNotFound when the order does not exist.
	CompareAndSetStatus(ctx context.Context, id string, from, to Status) (*Order, error)
	// SetCheckoutSession records the latest session. Once a session exists
	// the currency is fixed: a different currency yields ErrCurrencyLocked.
	SetCheckoutSession(ctx context.Context, id, sessionID, currency string) error
	// ApplyPaymentEvent records ev and, in the same transaction, applies the
	// transition chosen by decide to the locked order row. A previously
	// recorded event id yields OutcomeDuplicate without calling decide.
	ApplyPaymentEvent(ctx context.Context, ev payment.Event, decide Decider) (*Order, Outcome, error)
}

// Outcome is the recorded result of processing one payment event.
type Outcome string

const (
	OutcomeApplied      Outcome = "applied"
	OutcomeMismatch     Outcome = "payment_mismatch"
	OutcomeIgnored      Outcome = "ignored"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeUnknownOrder Outcome = "unknown_order"
)

// Decision tells the repository what to do with a locked order. An empty To
// leaves the status untouched.
type Decision struct {
	To      Status
	Outcome Outcome
}

// Decider inspects the current order and picks a Decision.
type Decider func(o *Order) Decision
