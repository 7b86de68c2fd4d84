package hospital

import (
	"context"
)

type Repository interface {
	Create(ctx context.Context, h *Hospital) error
	Get(ctx context.Context, name string) (*Hospital, error)
	List(ctx context.Context) ([]Hospital, error)
	// Update replaces the row named name, renaming it when h.Name differs.
	Update(ctx context.Context, name string, h *Hospital) error
	Delete(ctx context.Context, name string) error
}
