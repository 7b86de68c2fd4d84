// Package audit records an append-only log of every transaction the service
// performs. Entries are written in the same database transaction as the
// change they describe; when the store rejects an entry it is diverted to a
// local spool and replayed later, so recording never fails a request.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/itrust/itrust/internal/platform/auth"
)

// TransactionType names an audited event, e.g. HOSPITAL_CREATE.
type TransactionType string

// Operation suffixes combined with a resource prefix by TypeOf.
const (
	OpCreate      = "CREATE"
	OpEdit        = "EDIT"
	OpDelete      = "DELETE"
	OpHCPView     = "HCP_VIEW"
	OpPatientView = "PATIENT_VIEW"
)

const (
	LoginSuccess        TransactionType = "LOGIN_SUCCESS"
	LoginFailure        TransactionType = "LOGIN_FAILURE"
	EmergencyRecordView TransactionType = "EMERGENCY_RECORD_VIEW"
)

// TypeOf builds "<PREFIX>_<OP>".
func TypeOf(prefix, op string) TransactionType {
	return TransactionType(prefix + "_" + op)
}

type Entry struct {
	ID        uuid.UUID       `json:"id"`
	Type      TransactionType `json:"transactionType"`
	Actor     string          `json:"actor"`
	Target    string          `json:"target,omitempty"`
	Detail    string          `json:"detail,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Recorder appends audit entries. Record never reports failure to the caller.
type Recorder interface {
	Record(ctx context.Context, e Entry)
}

// Store persists entries and answers queries over them.
type Store interface {
	Append(ctx context.Context, e Entry) error
	Query(ctx context.Context, f Filter) ([]Entry, int, error)
}

type Filter struct {
	Actor  string
	Target string
	Type   TransactionType
	Start  *time.Time
	End    *time.Time
	Limit  int
	Offset int
}

func (f Filter) matches(e Entry) bool {
	if f.Actor != "" && e.Actor != f.Actor {
		return false
	}
	if f.Target != "" && e.Target != f.Target {
		return false
	}
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.Start != nil && e.Timestamp.Before(*f.Start) {
		return false
	}
	if f.End != nil && e.Timestamp.After(*f.End) {
		return false
	}
	return true
}

// Logger is the Recorder used by the service. Failed appends go to the
// spool; if that fails too the entry is written to the error log so it is
// never silently dropped.
type Logger struct {
	store Store
	spool *Spool
	log   zerolog.Logger
	now   func() time.Time
}

func NewLogger(store Store, spool *Spool, log zerolog.Logger) *Logger {
	return &Logger{store: store, spool: spool, log: log, now: time.Now}
}

func (l *Logger) Record(ctx context.Context, e Entry) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = l.now().UTC()
	}
	if e.Actor == "" {
		e.Actor = auth.ActorFromContext(ctx)
	}

	err := l.store.Append(ctx, e)
	if err == nil {
		return
	}

	ev := l.log.Error().Err(err).
		Str("audit_id", e.ID.String()).
		Str("transaction_type", string(e.Type)).
		Str("actor", e.Actor).
		Str("target", e.Target)

	if l.spool == nil {
		ev.Str("detail", e.Detail).Msg("audit store unavailable, entry not spooled")
		return
	}
	if serr := l.spool.Put(e); serr != nil {
		ev.AnErr("spool_error", serr).Str("detail", e.Detail).Msg("audit store and spool unavailable")
		return
	}
	ev.Msg("audit store unavailable, entry spooled")
}

// Query reads entries through the underlying store.
func (l *Logger) Query(ctx context.Context, f Filter) ([]Entry, int, error) {
	return l.store.Query(ctx, f)
}
