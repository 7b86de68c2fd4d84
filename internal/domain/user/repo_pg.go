package user

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/itrust/itrust/internal/platform/auth"
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

const cols = `username, password_hash, roles, enabled`

func what(username string) string { return fmt.Sprintf("user %q", username) }

func roleStrings(roles []auth.Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

func scan(row pgx.Row) (*User, error) {
	var (
		u     User
		roles []string
	)
	if err := row.Scan(&u.Username, &u.PasswordHash, &roles, &u.Enabled); err != nil {
		return nil, err
	}
	u.Roles = make([]auth.Role, len(roles))
	for i, r := range roles {
		u.Roles[i] = auth.Role(r)
	}
	return &u, nil
}

func (r *repoPG) Create(ctx context.Context, u *User) error {
	_, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO app_user (`+cols+`) VALUES ($1, $2, $3, $4)`,
		u.Username, u.PasswordHash, roleStrings(u.Roles), u.Enabled)
	return db.Translate(err, what(u.Username))
}

func (r *repoPG) Get(ctx context.Context, username string) (*User, error) {
	u, err := scan(r.conn(ctx).QueryRow(ctx, `SELECT `+cols+` FROM app_user WHERE username = $1`, username))
	if err != nil {
		return nil, db.Translate(err, what(username))
	}
	return u, nil
}

func (r *repoPG) List(ctx context.Context) ([]User, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+cols+` FROM app_user ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	items := []User{}
	for rows.Next() {
		u, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		items = append(items, *u)
	}
	return items, rows.Err()
}

// Update re-keys in place; visits naming the user follow through ON UPDATE
// CASCADE.
func (r *repoPG) Update(ctx context.Context, username string, u *User) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE app_user SET username = $2, password_hash = $3, roles = $4, enabled = $5, updated_at = NOW()
		WHERE username = $1`,
		username, u.Username, u.PasswordHash, roleStrings(u.Roles), u.Enabled)
	if err != nil {
		return db.Translate(err, what(u.Username))
	}
	if tag.RowsAffected() == 0 {
		return db.Translate(pgx.ErrNoRows, what(username))
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, username string) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM app_user WHERE username = $1`, username)
	if err != nil {
		return db.Translate(err, what(username))
	}
	if tag.RowsAffected() == 0 {
		return db.Translate(pgx.ErrNoRows, what(username))
	}
	return nil
}
