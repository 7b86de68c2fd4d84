package hospital

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/itrust/itrust/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const cols = `name, address, state, zip`

func what(name string) string { return fmt.Sprintf("hospital %q", name) }

func scan(row pgx.Row) (*Hospital, error) {
	var h Hospital
	err := row.Scan(&h.Name, &h.Address, &h.State, &h.Zip)
	return &h, err
}

func (r *repoPG) Create(ctx context.Context, h *Hospital) error {
	_, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO hospital (`+cols+`) VALUES ($1, $2, $3, $4)`,
		h.Name, h.Address, h.State, h.Zip)
	return db.Translate(err, what(h.Name))
}

func (r *repoPG) Get(ctx context.Context, name string) (*Hospital, error) {
	h, err := scan(r.conn(ctx).QueryRow(ctx, `SELECT `+cols+` FROM hospital WHERE name = $1`, name))
	if err != nil {
		return nil, db.Translate(err, what(name))
	}
	return h, nil
}

func (r *repoPG) List(ctx context.Context) ([]Hospital, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+cols+` FROM hospital ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list hospitals: %w", err)
	}
	defer rows.Close()

	items := []Hospital{}
	for rows.Next() {
		h, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan hospital: %w", err)
		}
		items = append(items, *h)
	}
	return items, rows.Err()
}

// Update re-keys in place; office visits follow through ON UPDATE CASCADE.
func (r *repoPG) Update(ctx context.Context, name string, h *Hospital) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE hospital SET name = $2, address = $3, state = $4, zip = $5, updated_at = NOW()
		WHERE name = $1`,
		name, h.Name, h.Address, h.State, h.Zip)
	if err != nil {
		return db.Translate(err, what(h.Name))
	}
	if tag.RowsAffected() == 0 {
		return db.Translate(pgx.ErrNoRows, what(name))
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, name string) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM hospital WHERE name = $1`, name)
	if err != nil {
		return db.Translate(err, what(name))
	}
	if tag.RowsAffected() == 0 {
		return db.Translate(pgx.ErrNoRows, what(name))
	}
	return nil
}
