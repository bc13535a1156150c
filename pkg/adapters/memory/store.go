package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/DJA-prog/serialmacro/pkg/domain"
)

// Store implements ports.RunStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]domain.RunRecord
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]domain.RunRecord),
	}
}

// Save stores a copy of rec.
func (s *Store) Save(ctx context.Context, rec *domain.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[rec.ID] = *rec
	return nil
}

// Load returns a copy so callers can't mutate the stored record.
func (s *Store) Load(ctx context.Context, id string) (*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data[id]
	if !ok {
		return nil, domain.ErrRunNotFound
	}
	return &rec, nil
}

// Delete removes the record.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

// List returns every record, most recently started first.
func (s *Store) List(ctx context.Context) ([]*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.RunRecord, 0, len(s.data))
	for _, rec := range s.data {
		rec := rec
		out = append(out, &rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}
