package officevisit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/itrust/itrust/internal/platform/db"
)

// Queryable is satisfied by a pool, a pooled connection and a transaction.
type Queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// Conn picks the transaction, then the request connection, then the pool.
func Conn(ctx context.Context, pool *pgxpool.Pool) Queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
}

// Columns selects a visit from office_visit aliased as v.
const Columns = `v.id, v.patient, v.hcp, v.hospital, v.visit_date, v.visit_type, v.notes, v.pre_scheduled,
	v.height, v.weight, v.head_circumference, v.systolic, v.diastolic, v.hdl, v.ldl, v.tri,
	v.house_smoking_status, v.patient_smoking_status`

// ScanTargets returns destinations for Columns, in order.
func ScanTargets(v *OfficeVisit) []any {
	m := &v.Metrics
	return []any{
		&v.ID, &v.Patient, &v.HCP, &v.Hospital, &v.Date, &v.Type, &v.Notes, &v.PreScheduled,
		&m.Height, &m.Weight, &m.HeadCircumference, &m.Systolic, &m.Diastolic, &m.HDL, &m.LDL, &m.Tri,
		nullString{&m.HouseSmokingStatus}, nullString{&m.PatientSmokingStatus},
	}
}

// nullString scans a nullable text column into a plain string.
type nullString struct{ s *string }

func (n nullString) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*n.s = ""
	case string:
		*n.s = v
	default:
		return fmt.Errorf("cannot scan %T into string", src)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func metricArgs(m BasicHealthMetrics) []any {
	return []any{
		m.Height, m.Weight, m.HeadCircumference, m.Systolic, m.Diastolic, m.HDL, m.LDL, m.Tri,
		nullable(m.HouseSmokingStatus), nullable(m.PatientSmokingStatus),
	}
}

// InsertVisit writes the office_visit row. An unset ID is drawn from the
// sequence and stored back into v.
func InsertVisit(ctx context.Context, q Queryable, v *OfficeVisit) error {
	args := append([]any{v.Patient, v.HCP, v.Hospital, v.Date, string(v.Type), v.Notes, v.PreScheduled}, metricArgs(v.Metrics)...)
	const fields = `patient, hcp, hospital, visit_date, visit_type, notes, pre_scheduled,
		height, weight, head_circumference, systolic, diastolic, hdl, ldl, tri,
		house_smoking_status, patient_smoking_status`
	const values = `$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17`

	if v.ID == 0 {
		err := q.QueryRow(ctx, `INSERT INTO office_visit (`+fields+`) VALUES (`+values+`) RETURNING id`, args...).Scan(&v.ID)
		return db.Translate(err, describe(v))
	}

	args = append(args, v.ID)
	if _, err := q.Exec(ctx, `INSERT INTO office_visit (`+fields+`, id) VALUES (`+values+`, $18)`, args...); err != nil {
		return db.Translate(err, describe(v))
	}
	// Explicit ids bypass the sequence; move it past them so later
	// generated ids do not collide.
	if _, err := q.Exec(ctx, syncSequence, v.ID); err != nil {
		return fmt.Errorf("sync office visit id sequence: %w", err)
	}
	return nil
}

// syncSequence never moves the sequence backwards, so a value already handed
// to a concurrent insert is not reissued.
const syncSequence = `SELECT setval('office_visit_id_seq', GREATEST($1::bigint, s.last_value)) FROM office_visit_id_seq s`

// UpdateVisit replaces the office_visit row id.
func UpdateVisit(ctx context.Context, q Queryable, id int64, v *OfficeVisit) error {
	args := append([]any{id, v.Patient, v.HCP, v.Hospital, v.Date, string(v.Type), v.Notes, v.PreScheduled}, metricArgs(v.Metrics)...)
	tag, err := q.Exec(ctx, `
		UPDATE office_visit SET
			patient = $2, hcp = $3, hospital = $4, visit_date = $5, visit_type = $6, notes = $7, pre_scheduled = $8,
			height = $9, weight = $10, head_circumference = $11, systolic = $12, diastolic = $13,
			hdl = $14, ldl = $15, tri = $16, house_smoking_status = $17, patient_smoking_status = $18,
			updated_at = NOW()
		WHERE id = $1`, args...)
	if err != nil {
		return db.Translate(err, describe(v))
	}
	if tag.RowsAffected() == 0 {
		return db.Translate(pgx.ErrNoRows, fmt.Sprintf("office visit %d", id))
	}
	return nil
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const plainOnly = `NOT EXISTS (SELECT 1 FROM eye_metrics e WHERE e.visit_id = v.id)`

func (r *repoPG) Create(ctx context.Context, v *OfficeVisit) error {
	return InsertVisit(ctx, Conn(ctx, r.pool), v)
}

func (r *repoPG) Get(ctx context.Context, id int64) (*OfficeVisit, error) {
	var v OfficeVisit
	err := Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+Columns+` FROM office_visit v WHERE v.id = $1 AND `+plainOnly, id).
		Scan(ScanTargets(&v)...)
	if err != nil {
		return nil, db.Translate(err, fmt.Sprintf("office visit %d", id))
	}
	return &v, nil
}

func (r *repoPG) List(ctx context.Context) ([]OfficeVisit, error) {
	rows, err := Conn(ctx, r.pool).Query(ctx,
		`SELECT `+Columns+` FROM office_visit v WHERE `+plainOnly+` ORDER BY v.visit_date DESC, v.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list office visits: %w", err)
	}
	defer rows.Close()

	items := []OfficeVisit{}
	for rows.Next() {
		var v OfficeVisit
		if err := rows.Scan(ScanTargets(&v)...); err != nil {
			return nil, fmt.Errorf("scan office visit: %w", err)
		}
		items = append(items, v)
	}
	return items, rows.Err()
}

func (r *repoPG) Update(ctx context.Context, id int64, v *OfficeVisit) error {
	return UpdateVisit(ctx, Conn(ctx, r.pool), id, v)
}

func (r *repoPG) Delete(ctx context.Context, id int64) error {
	tag, err := Conn(ctx, r.pool).Exec(ctx, `DELETE FROM office_visit v WHERE v.id = $1 AND `+plainOnly, id)
	if err != nil {
		return db.Translate(err, fmt.Sprintf("office visit %d", id))
	}
	if tag.RowsAffected() == 0 {
		return db.Translate(pgx.ErrNoRows, fmt.Sprintf("office visit %d", id))
	}
	return nil
}
