// Package bar holds the tenant entity. Every order, drink and staff member is
// scoped to exactly one bar.
package bar

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Sentinel errors for bar lookups and writes.
var (
	ErrNotFound  = errors.New("bar not found")
	ErrSlugTaken = errors.New("bar slug already taken")
)

// Bar is a tenant account.
type Bar struct {
	ID        string
	Name      string
	Slug      string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ListFilter narrows a bar listing. A nil Active means both active and
// inactive bars are returned.
type ListFilter struct {
	Search   string
	Active   *bool
	Page     int
	PageSize int
}

// Repository defines persistence operations for bars. Bars are never deleted;
// SetActive(false) is the only way to retire one.
type Repository interface {
	Create(ctx context.Context, b *Bar) error
	GetByID(ctx context.Context, id string) (*Bar, error)
	GetBySlug(ctx context.Context, slug string) (*Bar, error)
	List(ctx context.Context, f ListFilter) ([]Bar, int, error)
	SetActive(ctx context.Context, id string, active bool) (*Bar, error)
}
