package user

import (
	"context"
)

type Repository interface {
	Create(ctx context.Context, u *User) error
	Get(ctx context.Context, username string) (*User, error)
	List(ctx context.Context) ([]User, error)
	// Update replaces the row keyed username, renaming it when u.Username
	// differs.
	Update(ctx context.Context, username string, u *User) error
	Delete(ctx context.Context, username string) error
}
