package emergency

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/itrust/itrust/internal/domain/officevisit"
	"github.com/itrust/itrust/internal/platform/db"
)

type Repository interface {
	// Latest returns the most recent visit of patient, of any type, that
	// recorded at least one health metric.
	Latest(ctx context.Context, patient string) (*officevisit.OfficeVisit, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const anyMetric = `(v.height IS NOT NULL OR v.weight IS NOT NULL OR v.head_circumference IS NOT NULL
	OR v.systolic IS NOT NULL OR v.diastolic IS NOT NULL OR v.hdl IS NOT NULL OR v.ldl IS NOT NULL
	OR v.tri IS NOT NULL OR v.house_smoking_status IS NOT NULL OR v.patient_smoking_status IS NOT NULL)`

func (r *repoPG) Latest(ctx context.Context, patient string) (*officevisit.OfficeVisit, error) {
	var v officevisit.OfficeVisit
	err := officevisit.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT `+officevisit.Columns+`
		FROM office_visit v
		WHERE v.patient = $1 AND `+anyMetric+`
		ORDER BY v.visit_date DESC, v.id DESC
		LIMIT 1`, patient).Scan(officevisit.ScanTargets(&v)...)
	if err != nil {
		return nil, db.Translate(err, fmt.Sprintf("health records for %q", patient))
	}
	return &v, nil
}
