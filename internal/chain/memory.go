package chain

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is an in-memory, thread-safe Store. It is primarily useful for
// testing and for single-process deployments that do not need the chain to
// survive a restart.
type MemoryStore struct {
	mu        sync.RWMutex
	records   []Record
	orphans   []Record
	insertErr error
}

// NewMemoryStore returns a MemoryStore holding records as-is. No validation
// is performed, so broken histories can be seeded for tests.
func NewMemoryStore(records ...Record) *MemoryStore {
	s := &MemoryStore{}
	s.records = append(s.records, records...)
	return s
}

// ListAscending implements Store.
func (s *MemoryStore) ListAscending(_ context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

// Insert implements Store.
func (s *MemoryStore) Insert(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	for _, r := range s.records {
		if r.Index == rec.Index {
			return fmt.Errorf("insert block %d: %w", rec.Index, ErrDuplicateIndex)
		}
	}
	s.records = append(s.records, rec)
	return nil
}

// Orphan implements Store.
func (s *MemoryStore) Orphan(_ context.Context, from int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.records[:0:0]
	for _, r := range s.records {
		if r.Index >= from {
			s.orphans = append(s.orphans, r)
			continue
		}
		kept = append(kept, r)
	}
	moved := len(s.records) - len(kept)
	s.records = kept
	return moved, nil
}

// Orphans returns the records moved aside by Orphan, oldest first.
func (s *MemoryStore) Orphans() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.orphans))
	copy(out, s.orphans)
	return out
}

// FailInserts makes every subsequent Insert return err. Passing nil restores
// normal behaviour.
func (s *MemoryStore) FailInserts(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertErr = err
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
