package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/itrust/itrust/internal/platform/apperr"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperr.Kind
	}{
		{"no rows", pgx.ErrNoRows, apperr.KindNotFound},
		{"wrapped no rows", fmt.Errorf("scan: %w", pgx.ErrNoRows), apperr.KindNotFound},
		{"unique", &pgconn.PgError{Code: "23505"}, apperr.KindConflict},
		{"foreign key", &pgconn.PgError{Code: "23503"}, apperr.KindConflict},
		{"other pg error", &pgconn.PgError{Code: "42P01"}, apperr.KindInternal},
		{"plain", errors.New("connection reset"), apperr.KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := apperr.KindOf(Translate(tt.err, `hospital "X"`)); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
	if Translate(nil, "x") != nil {
		t.Error("nil must stay nil")
	}
}
