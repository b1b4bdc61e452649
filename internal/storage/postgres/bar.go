package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/barflow/barflow/internal/domain/bar"
)

var _ bar.Repository = (*BarRepository)(nil)

const barColumns = `id::text, name, slug, active, created_at, updated_at`

// BarRepository implements bar.Repository backed by PostgreSQL.
type BarRepository struct {
	pool *pgxpool.Pool
}

// NewBarRepository returns a BarRepository that uses the given pool.
func NewBarRepository(pool *pgxpool.Pool) *BarRepository {
	return &BarRepository{pool: pool}
}

// Create inserts b, assigning an id when it has none. Timestamps are filled
// from the stored row.
func (r *BarRepository) Create(ctx context.Context, b *bar.Bar) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO bars (id, name, slug, active)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		b.ID, b.Name, b.Slug, b.Active,
	)
	if err := row.Scan(&b.CreatedAt, &b.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return bar.ErrSlugTaken
		}
		return errors.Wrapf(err, "create bar %q", b.Slug)
	}
	return nil
}

// GetByID returns the bar with the given id.
func (r *BarRepository) GetByID(ctx context.Context, id string) (*bar.Bar, error) {
	return r.getOne(ctx, `SELECT `+barColumns+` FROM bars WHERE id = $1`, id)
}

// GetBySlug returns the bar with the given slug.
func (r *BarRepository) GetBySlug(ctx context.Context, slug string) (*bar.Bar, error) {
	return r.getOne(ctx, `SELECT `+barColumns+` FROM bars WHERE slug = $1`, slug)
}

func (r *BarRepository) getOne(ctx context.Context, query, arg string) (*bar.Bar, error) {
	return retry(ctx, func() (*bar.Bar, error) {
		b, err := scanBar(r.pool.QueryRow(ctx, query, arg))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, bar.ErrNotFound
		}
		if err != nil {
			return nil, errors.Wrapf(err, "get bar %q", arg)
		}
		return b, nil
	})
}

// List returns one page of bars ordered by name along with the total number
// of bars matching f.
func (r *BarRepository) List(ctx context.Context, f bar.ListFilter) ([]bar.Bar, int, error) {
	type page struct {
		bars  []bar.Bar
		total int
	}
	p, err := retry(ctx, func() (page, error) {
		rows, err := r.pool.Query(ctx, `
			SELECT `+barColumns+`, count(*) OVER ()
			FROM bars
			WHERE ($1 = '' OR name ILIKE '%' || $1 || '%' OR slug ILIKE '%' || $1 || '%')
			  AND ($2::boolean IS NULL OR active = $2)
			ORDER BY name, id
			LIMIT $3 OFFSET $4`,
			f.Search, f.Active, f.PageSize, offset(f.Page, f.PageSize),
		)
		if err != nil {
			return page{}, err
		}
		defer rows.Close()

		var p page
		for rows.Next() {
			var b bar.Bar
			if err := rows.Scan(&b.ID, &b.Name, &b.Slug, &b.Active, &b.CreatedAt, &b.UpdatedAt, &p.total); err != nil {
				return page{}, err
			}
			p.bars = append(p.bars, b)
		}
		return p, rows.Err()
	})
	if err != nil {
		return nil, 0, errors.Wrap(err, "list bars")
	}
	if p.bars == nil {
		p.bars = []bar.Bar{}
	}
	return p.bars, p.total, nil
}

// SetActive flips the bar's active flag and returns the updated row.
func (r *BarRepository) SetActive(ctx context.Context, id string, active bool) (*bar.Bar, error) {
	b, err := scanBar(r.pool.QueryRow(ctx, `
		UPDATE bars SET active = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+barColumns,
		id, active,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, bar.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "set bar %q active=%t", id, active)
	}
	return b, nil
}

func scanBar(row pgx.Row) (*bar.Bar, error) {
	var b bar.Bar
	if err := row.Scan(&b.ID, &b.Name, &b.Slug, &b.Active, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}
