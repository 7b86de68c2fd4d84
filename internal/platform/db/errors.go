package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/itrust/itrust/internal/platform/apperr"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// Translate maps driver errors onto the apperr taxonomy. what names the row,
// e.g. `hospital "St. Mary"`. Unrecognised errors are wrapped and surface as
// internal failures.
func Translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("%s not found", what)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return apperr.Conflict("%s already exists", what)
		case foreignKeyViolation:
			return apperr.Conflict("%s is still referenced by other records", what)
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}
