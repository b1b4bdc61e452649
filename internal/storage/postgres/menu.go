package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/barflow/barflow/internal/domain/menu"
)

var _ menu.Repository = (*DrinkRepository)(nil)

// DrinkRepository implements menu.Repository backed by PostgreSQL.
type DrinkRepository struct {
	pool *pgxpool.Pool
}

// NewDrinkRepository returns a DrinkRepository that uses the given pool.
func NewDrinkRepository(pool *pgxpool.Pool) *DrinkRepository {
	return &DrinkRepository{pool: pool}
}

// Create inserts d, assigning an id when it has none.
func (r *DrinkRepository) Create(ctx context.Context, d *menu.Drink) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO drinks (id, bar_id, name, price, active)
		VALUES ($1, $2, $3, $4, $5)`,
		d.ID, d.BarID, d.Name, d.Price, d.Active,
	)
	if err != nil {
		return errors.Wrapf(err, "create drink %q", d.Name)
	}
	return nil
}

// ListByBar returns every drink of barID, inactive ones included, ordered by
// name.
func (r *DrinkRepository) ListByBar(ctx context.Context, barID string) ([]menu.Drink, error) {
	drinks, err := retry(ctx, func() ([]menu.Drink, error) {
		rows, err := r.pool.Query(ctx, `
			SELECT id::text, bar_id::text, name, price, active
			FROM drinks
			WHERE bar_id = $1
			ORDER BY name, id`,
			barID,
		)
		if err != nil {
			return nil, err
		}
		return collectDrinks(rows)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "list drinks of bar %q", barID)
	}
	return drinks, nil
}

// GetByIDs returns the active drinks of barID among ids.
func (r *DrinkRepository) GetByIDs(ctx context.Context, barID string, ids []string) ([]menu.Drink, error) {
	drinks, err := retry(ctx, func() ([]menu.Drink, error) {
		rows, err := r.pool.Query(ctx, `
			SELECT id::text, bar_id::text, name, price, active
			FROM drinks
			WHERE bar_id = $1 AND active AND id::text = ANY($2)`,
			barID, ids,
		)
		if err != nil {
			return nil, err
		}
		return collectDrinks(rows)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "get drinks of bar %q", barID)
	}
	return drinks, nil
}

func collectDrinks(rows pgx.Rows) ([]menu.Drink, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (menu.Drink, error) {
		var d menu.Drink
		err := row.Scan(&d.ID, &d.BarID, &d.Name, &d.Price, &d.Active)
		return d, err
	})
}
