package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Sentinel errors for order operations.
var (
	ErrNotFound      = errors.New("order not found")
	ErrStatusChanged = errors.New("order status changed concurrently")
	ErrEmptyItems    = errors.New("items required")
	// ErrCurrencyLocked is returned when a checkout asks for a currency other
	// than the one an earlier checkout session of the order was opened in.
	ErrCurrencyLocked = errors.New("checkout currency already fixed for order")
)

// InvalidTransitionError reports a lifecycle move that the status graph does
// not allow from the order's current state.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
}

// DrinkNotFoundError indicates a cart line references a drink that is not on
// the bar's active menu.
type DrinkNotFoundError struct {
	DrinkID string
}

func (e *DrinkNotFoundError) Error() string {
	return fmt.Sprintf("drink %s not found", e.DrinkID)
}
