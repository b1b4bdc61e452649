package menu

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a drink does not exist.
var ErrNotFound = errors.New("drink not found")

// Drink is an item on a bar's menu.
type Drink struct {
	ID     string
	BarID  string
	Name   string
	Price  decimal.Decimal
	Active bool
}

// Repository defines persistence operations for drinks.
type Repository interface {
	Create(ctx context.Context, d *Drink) error
	ListByBar(ctx context.Context, barID string) ([]Drink, error)
	// GetByIDs returns the active drinks of barID among ids. Unknown or
	// inactive ids are simply absent from the result.
	GetByIDs(ctx context.Context, barID string, ids []string) ([]Drink, error)
}
