package postgres

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/barflow/barflow/internal/domain/order"
	"github.com/barflow/barflow/internal/domain/payment"
)

var _ order.Repository = (*OrderRepository)(nil)

const orderColumns = `id::text, bar_id::text, status, items, total, currency, checkout_session_id, created_at, updated_at`

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. The order items are serialized to JSON for
// storage in the JSONB column.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	items, err := json.Marshal(o.Items)
	if err != nil {
		return errors.Wrap(err, "marshal order items")
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO orders (id, bar_id, status, items, total, currency)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		o.ID, o.BarID, o.Status, items, o.Total, o.Currency,
	)
	if err := row.Scan(&o.CreatedAt, &o.UpdatedAt); err != nil {
		return errors.Wrapf(err, "create order %q", o.ID)
	}
	return nil
}

// Get retrieves an order by its id.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	return retry(ctx, func() (*order.Order, error) {
		o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		if err != nil {
			return nil, errors.Wrapf(err, "get order %q", id)
		}
		return o, nil
	})
}

// List returns one page of a bar's orders, newest first, with the total
// number of matching orders. Search matches the order id or any item name.
func (r *OrderRepository) List(ctx context.Context, f order.ListFilter) ([]order.Order, int, error) {
	type page struct {
		orders []order.Order
		total  int
	}
	p, err := retry(ctx, func() (page, error) {
		rows, err := r.pool.Query(ctx, `
			SELECT `+orderColumns+`, count(*) OVER ()
			FROM orders
			WHERE bar_id = $1
			  AND ($2 = '' OR status = $2)
			  AND ($3 = '' OR id::text ILIKE $3 || '%' OR EXISTS (
			        SELECT 1 FROM jsonb_array_elements(items) AS item
			        WHERE item ->> 'name' ILIKE '%' || $3 || '%'))
			ORDER BY created_at DESC, id
			LIMIT $4 OFFSET $5`,
			f.BarID, string(f.Status), f.Search, f.PageSize, offset(f.Page, f.PageSize),
		)
		if err != nil {
			return page{}, err
		}
		defer rows.Close()

		p := page{orders: []order.Order{}}
		for rows.Next() {
			var (
				o     order.Order
				items []byte
			)
			if err := rows.Scan(&o.ID, &o.BarID, &o.Status, &items, &o.Total, &o.Currency,
				&o.CheckoutSessionID, &o.CreatedAt, &o.UpdatedAt, &p.total); err != nil {
				return page{}, err
			}
			if err := json.Unmarshal(items, &o.Items); err != nil {
				return page{}, errors.Wrapf(err, "unmarshal items of order %q", o.ID)
			}
			p.orders = append(p.orders, o)
		}
		return p, rows.Err()
	})
	if err != nil {
		return nil, 0, errors.Wrapf(err, "list orders of bar %q", f.BarID)
	}
	return p.orders, p.total, nil
}

// CompareAndSetStatus moves the order from one status to another in a
// single conditional UPDATE. Of several concurrent callers with the same
// from status exactly one matches the row.
func (r *OrderRepository) CompareAndSetStatus(ctx context.Context, id string, from, to order.Status) (*order.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `
		UPDATE orders SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING `+orderColumns,
		id, from, to,
	))
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(err, "set order %q status %s -> %s", id, from, to)
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, errors.Wrapf(err, "check order %q", id)
	}
	if !exists {
		return nil, order.ErrNotFound
	}
	return nil, order.ErrStatusChanged
}

// SetCheckoutSession stores the provider session id and the currency the
// customer is charged in. The currency can only change while no session
// has been recorded.
func (r *OrderRepository) SetCheckoutSession(ctx context.Context, id, sessionID, currency string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET checkout_session_id = $2, currency = $3, updated_at = now()
		WHERE id = $1 AND (checkout_session_id = '' OR currency = $3)`,
		id, sessionID, currency,
	)
	if err != nil {
		return errors.Wrapf(err, "set checkout session of order %q", id)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return errors.Wrapf(err, "check order %q", id)
	}
	if !exists {
		return order.ErrNotFound
	}
	return order.ErrCurrencyLocked
}

type paymentResult struct {
	order   *order.Order
	outcome order.Outcome
}

// ApplyPaymentEvent records ev in webhook_events and applies the decided
// transition inside one transaction. The order row is locked while decide
// runs, so a concurrent staff update either lands before it or fails its
// compare-and-set afterwards.
func (r *OrderRepository) ApplyPaymentEvent(ctx context.Context, ev payment.Event, decide order.Decider) (*order.Order, order.Outcome, error) {
	res, err := retry(ctx, func() (paymentResult, error) {
		return r.applyPaymentEvent(ctx, ev, decide)
	})
	if err != nil {
		return nil, "", errors.Wrapf(err, "apply payment event %q", ev.ID)
	}
	return res.order, res.outcome, nil
}

func (r *OrderRepository) applyPaymentEvent(ctx context.Context, ev payment.Event, decide order.Decider) (paymentResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return paymentResult{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		INSERT INTO webhook_events (id, type, order_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING`,
		ev.ID, ev.Type, ev.OrderID,
	)
	if err != nil {
		return paymentResult{}, err
	}
	if tag.RowsAffected() == 0 {
		return paymentResult{outcome: order.OutcomeDuplicate}, nil
	}

	res := paymentResult{outcome: order.OutcomeUnknownOrder}
	if _, perr := uuid.Parse(ev.OrderID); perr == nil {
		o, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, ev.OrderID))
		switch {
		case errors.Is(err, pgx.ErrNoRows):
		case err != nil:
			return paymentResult{}, err
		default:
			d := decide(o)
			if d.To != "" {
				if err := tx.QueryRow(ctx, `
					UPDATE orders SET status = $2, updated_at = now()
					WHERE id = $1
					RETURNING updated_at`,
					o.ID, d.To,
				).Scan(&o.UpdatedAt); err != nil {
					return paymentResult{}, err
				}
				o.Status = d.To
			}
			res = paymentResult{order: o, outcome: d.Outcome}
		}
	}

	if _, err := tx.Exec(ctx, `UPDATE webhook_events SET outcome = $2 WHERE id = $1`, ev.ID, res.outcome); err != nil {
		return paymentResult{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return paymentResult{}, err
	}
	return res, nil
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var (
		o     order.Order
		items []byte
	)
	if err := row.Scan(&o.ID, &o.BarID, &o.Status, &items, &o.Total, &o.Currency,
		&o.CheckoutSessionID, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, errors.Wrapf(err, "unmarshal items of order %q", o.ID)
	}
	return &o, nil
}
