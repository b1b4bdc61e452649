package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/barflow/barflow/internal/domain/bar"
	"github.com/barflow/barflow/internal/domain/menu"
	"github.com/barflow/barflow/internal/domain/order"
)

// Seeder upserts fixture data. Rows are matched by id, so seeding twice
// leaves one copy of each.
type Seeder struct {
	pool *pgxpool.Pool
}

// NewSeeder returns a Seeder that uses the given pool.
func NewSeeder(pool *pgxpool.Pool) *Seeder {
	return &Seeder{pool: pool}
}

// SeedBar upserts b with its drinks and orders in one transaction.
func (s *Seeder) SeedBar(ctx context.Context, b *bar.Bar, drinks []menu.Drink, orders []order.Order) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		batch.Queue(`
			INSERT INTO bars (id, name, slug, active)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name, slug = EXCLUDED.slug, active = EXCLUDED.active, updated_at = now()`,
			b.ID, b.Name, b.Slug, b.Active,
		)
		for _, d := range drinks {
			batch.Queue(`
				INSERT INTO drinks (id, bar_id, name, price, active)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (id) DO UPDATE
				SET name = EXCLUDED.name, price = EXCLUDED.price, active = EXCLUDED.active`,
				d.ID, b.ID, d.Name, d.Price, d.Active,
			)
		}
		for _, o := range orders {
			items, err := json.Marshal(o.Items)
			if err != nil {
				return errors.Wrapf(err, "marshal items of order %q", o.ID)
			}
			batch.Queue(`
				INSERT INTO orders (id, bar_id, status, items, total, currency)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (id) DO UPDATE
				SET status = EXCLUDED.status, items = EXCLUDED.items, total = EXCLUDED.total, updated_at = now()`,
				o.ID, b.ID, o.Status, items, o.Total, o.Currency,
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return errors.Wrapf(err, "seed bar %q", b.Slug)
		}
		return nil
	})
}
