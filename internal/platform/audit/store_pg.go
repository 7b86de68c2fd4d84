package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/itrust/itrust/internal/platform/db"
)

type queryable interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// PGStore writes entries to the audit_log table.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return s.pool
}

const insertEntry = `INSERT INTO audit_log (id, transaction_type, actor, target, detail, occurred_at)
	VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6)`

// Append inserts e. Inside a transaction the insert runs under a savepoint,
// so a failed audit write is rolled back alone and the caller's change can
// still commit.
func (s *PGStore) Append(ctx context.Context, e Entry) error {
	args := []interface{}{e.ID, string(e.Type), e.Actor, e.Target, e.Detail, e.Timestamp}

	tx := db.TxFromContext(ctx)
	if tx == nil {
		if _, err := s.conn(ctx).Exec(ctx, insertEntry, args...); err != nil {
			return fmt.Errorf("insert audit entry: %w", err)
		}
		return nil
	}

	sp, err := tx.Begin(ctx)
	if err != nil {
		return fmt.Errorf("audit savepoint: %w", err)
	}
	if _, err := sp.Exec(ctx, insertEntry, args...); err != nil {
		_ = sp.Rollback(ctx)
		return fmt.Errorf("insert audit entry: %w", err)
	}
	if err := sp.Commit(ctx); err != nil {
		return fmt.Errorf("release audit savepoint: %w", err)
	}
	return nil
}

func (s *PGStore) Query(ctx context.Context, f Filter) ([]Entry, int, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Actor != "" {
		add("actor = $%d", f.Actor)
	}
	if f.Target != "" {
		add("target = $%d", f.Target)
	}
	if f.Type != "" {
		add("transaction_type = $%d", string(f.Type))
	}
	if f.Start != nil {
		add("occurred_at >= $%d", *f.Start)
	}
	if f.End != nil {
		add("occurred_at <= $%d", *f.End)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.conn(ctx).QueryRow(ctx, "SELECT COUNT(*) FROM audit_log"+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit entries: %w", err)
	}

	q := `SELECT id, transaction_type, actor, COALESCE(target, ''), COALESCE(detail, ''), occurred_at
		FROM audit_log` + clause + " ORDER BY occurred_at DESC, id"
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d OFFSET %d", f.Limit, f.Offset)
	}

	rows, err := s.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var typ string
		if err := rows.Scan(&e.ID, &typ, &e.Actor, &e.Target, &e.Detail, &e.Timestamp); err != nil {
			return nil, 0, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Type = TransactionType(typ)
		out = append(out, e)
	}
	return out, total, rows.Err()
}
