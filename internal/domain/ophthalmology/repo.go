package ophthalmology

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/itrust/itrust/internal/domain/officevisit"
	"github.com/itrust/itrust/internal/platform/db"
)

type Repository interface {
	Create(ctx context.Context, s *Surgery) error
	Get(ctx context.Context, id int64) (*Surgery, error)
	List(ctx context.Context) ([]Surgery, error)
	Update(ctx context.Context, id int64, s *Surgery) error
	Delete(ctx context.Context, id int64) error
}

// repoPG stores a surgery as an office_visit row plus its eye_metrics row.
// Both writes rely on the caller's transaction.
type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const eyeColumns = `e.visual_acuity_left, e.visual_acuity_right, e.sphere_left, e.sphere_right,
	e.cylinder_left, e.cylinder_right, e.axis_left, e.axis_right, e.surgery_type`

const selectSurgery = `SELECT ` + officevisit.Columns + `, ` + eyeColumns + `
	FROM office_visit v JOIN eye_metrics e ON e.visit_id = v.id`

func what(id int64) string { return fmt.Sprintf("ophthalmology surgery %d", id) }

func scanTargets(s *Surgery) []any {
	e := &s.Eye
	return append(officevisit.ScanTargets(&s.OfficeVisit),
		&e.VisualAcuityLeft, &e.VisualAcuityRight, &e.SphereLeft, &e.SphereRight,
		&e.CylinderLeft, &e.CylinderRight, &e.AxisLeft, &e.AxisRight, &e.SurgeryType)
}

func eyeArgs(id int64, e EyeMetrics) []any {
	return []any{id, e.VisualAcuityLeft, e.VisualAcuityRight, e.SphereLeft, e.SphereRight,
		e.CylinderLeft, e.CylinderRight, e.AxisLeft, e.AxisRight, string(e.SurgeryType)}
}

func (r *repoPG) Create(ctx context.Context, s *Surgery) error {
	q := officevisit.Conn(ctx, r.pool)
	if err := officevisit.InsertVisit(ctx, q, &s.OfficeVisit); err != nil {
		return err
	}
	_, err := q.Exec(ctx, `
		INSERT INTO eye_metrics (visit_id, visual_acuity_left, visual_acuity_right, sphere_left, sphere_right,
			cylinder_left, cylinder_right, axis_left, axis_right, surgery_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		eyeArgs(s.ID, s.Eye)...)
	return db.Translate(err, what(s.ID))
}

func (r *repoPG) Get(ctx context.Context, id int64) (*Surgery, error) {
	var s Surgery
	err := officevisit.Conn(ctx, r.pool).QueryRow(ctx, selectSurgery+` WHERE v.id = $1`, id).Scan(scanTargets(&s)...)
	if err != nil {
		return nil, db.Translate(err, what(id))
	}
	return &s, nil
}

func (r *repoPG) List(ctx context.Context) ([]Surgery, error) {
	rows, err := officevisit.Conn(ctx, r.pool).Query(ctx, selectSurgery+` ORDER BY v.visit_date DESC, v.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list ophthalmology surgeries: %w", err)
	}
	defer rows.Close()

	items := []Surgery{}
	for rows.Next() {
		var s Surgery
		if err := rows.Scan(scanTargets(&s)...); err != nil {
			return nil, fmt.Errorf("scan ophthalmology surgery: %w", err)
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (r *repoPG) Update(ctx context.Context, id int64, s *Surgery) error {
	q := officevisit.Conn(ctx, r.pool)
	if err := officevisit.UpdateVisit(ctx, q, id, &s.OfficeVisit); err != nil {
		return err
	}
	tag, err := q.Exec(ctx, `
		UPDATE eye_metrics SET visual_acuity_left = $2, visual_acuity_right = $3, sphere_left = $4, sphere_right = $5,
			cylinder_left = $6, cylinder_right = $7, axis_left = $8, axis_right = $9, surgery_type = $10
		WHERE visit_id = $1`,
		eyeArgs(id, s.Eye)...)
	if err != nil {
		return db.Translate(err, what(id))
	}
	if tag.RowsAffected() == 0 {
		return db.Translate(pgx.ErrNoRows, what(id))
	}
	return nil
}

// Delete removes the visit row; eye_metrics follows through ON DELETE CASCADE.
func (r *repoPG) Delete(ctx context.Context, id int64) error {
	tag, err := officevisit.Conn(ctx, r.pool).Exec(ctx, `
		DELETE FROM office_visit v
		WHERE v.id = $1 AND EXISTS (SELECT 1 FROM eye_metrics e WHERE e.visit_id = v.id)`, id)
	if err != nil {
		return db.Translate(err, what(id))
	}
	if tag.RowsAffected() == 0 {
		return db.Translate(pgx.ErrNoRows, what(id))
	}
	return nil
}
