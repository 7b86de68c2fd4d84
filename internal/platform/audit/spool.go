package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const (
	spoolPrefix = "audit/"
	// deadPrefix holds entries the store rejected for good. They are kept
	// for an operator and never replayed.
	deadPrefix = "dead/"
)

// Spool is a local LevelDB queue for entries the store could not accept.
// Keys sort by timestamp so replay preserves order.
type Spool struct {
	db *leveldb.DB
}

func OpenSpool(dir string) (*Spool, error) {
	ldb, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("open audit spool %s: %w", dir, err)
	}
	return &Spool{db: ldb}, nil
}

// NewSpool wraps an already opened database.
func NewSpool(ldb *leveldb.DB) *Spool {
	return &Spool{db: ldb}
}

func (s *Spool) Close() error {
	return s.db.Close()
}

func spoolKey(e Entry) []byte {
	return []byte(fmt.Sprintf("%s%020d/%s", spoolPrefix, e.Timestamp.UnixNano(), e.ID))
}

func (s *Spool) Put(e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode spooled entry: %w", err)
	}
	return s.db.Put(spoolKey(e), data, nil)
}

func (s *Spool) count(prefix string) int {
	it := s.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	defer it.Release()
	n := 0
	for it.Next() {
		n++
	}
	return n
}

// Len counts entries waiting for replay.
func (s *Spool) Len() int { return s.count(spoolPrefix) }

// DeadLetters counts entries set aside as permanently rejected.
func (s *Spool) DeadLetters() int { return s.count(deadPrefix) }

// Permanent reports whether err is a rejection that retrying cannot fix:
// a data exception (SQLSTATE class 22) or an integrity violation (class 23).
func Permanent(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return strings.HasPrefix(pgErr.Code, "22") || strings.HasPrefix(pgErr.Code, "23")
}

// Drain appends spooled entries to store in order, deleting each once it is
// accepted. Entries that cannot be decoded or that the store rejects
// permanently move to the dead-letter prefix and replay continues; any other
// failure stops the drain. It returns how many entries reached the store.
func (s *Spool) Drain(ctx context.Context, store Store) (int, error) {
	it := s.db.NewIterator(util.BytesPrefix([]byte(spoolPrefix)), nil)
	defer it.Release()

	moved := 0
	for it.Next() {
		if err := ctx.Err(); err != nil {
			return moved, err
		}
		key := append([]byte(nil), it.Key()...)

		var e Entry
		if err := json.Unmarshal(it.Value(), &e); err != nil {
			if err := s.bury(ctx, key, it.Value(), err); err != nil {
				return moved, err
			}
			continue
		}
		if err := store.Append(ctx, e); err != nil {
			if !Permanent(err) {
				return moved, err
			}
			if err := s.bury(ctx, key, it.Value(), err); err != nil {
				return moved, err
			}
			continue
		}
		if err := s.db.Delete(key, nil); err != nil {
			return moved, fmt.Errorf("remove spooled entry: %w", err)
		}
		moved++
	}
	return moved, it.Error()
}

// bury moves a spooled entry to the dead-letter prefix in one batch.
func (s *Spool) bury(ctx context.Context, key, value []byte, cause error) error {
	batch := new(leveldb.Batch)
	batch.Put(append([]byte(deadPrefix), key...), value)
	batch.Delete(key)
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("dead-letter spooled entry %s: %w", key, err)
	}
	zerolog.Ctx(ctx).Error().Err(cause).Str("key", string(key)).Msg("audit entry rejected by store, moved to dead letters")
	return nil
}

// StartReplay drains the spool into store every interval until ctx is done.
// The returned channel closes once the replay goroutine has exited, so a
// final Drain does not race it.
func (s *Spool) StartReplay(ctx context.Context, store Store, interval time.Duration, log zerolog.Logger) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.Drain(ctx, store)
				if n > 0 {
					log.Info().Int("entries", n).Msg("replayed spooled audit entries")
				}
				if err != nil && ctx.Err() == nil {
					log.Error().Err(err).Int("remaining", s.Len()).Msg("audit spool replay failed")
				}
			}
		}
	}()
	return done
}
