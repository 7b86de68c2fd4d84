package audit

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps entries in process. Used by tests and the development
// server when no database is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

// Query returns matching entries newest first.
func (s *MemoryStore) Query(_ context.Context, f Filter) ([]Entry, int, error) {
	s.mu.RLock()
	var matched []Entry
	for _, e := range s.entries {
		if f.matches(e) {
			matched = append(matched, e)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	total := len(matched)
	if f.Limit <= 0 {
		return matched, total, nil
	}
	start := f.Offset
	if start > total {
		start = total
	}
	end := start + f.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// Entries returns a copy of everything recorded, oldest first.
func (s *MemoryStore) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}
