package officevisit

import (
	"context"
)

// Repository stores plain office visits. Surgeries share the office_visit
// table but are neither listed nor returned here.
type Repository interface {
	Create(ctx context.Context, v *OfficeVisit) error
	Get(ctx context.Context, id int64) (*OfficeVisit, error)
	List(ctx context.Context) ([]OfficeVisit, error)
	Update(ctx context.Context, id int64, v *OfficeVisit) error
	Delete(ctx context.Context, id int64) error
}
