// Package memory provides an in-memory SnapshotStore. It is safe for
// concurrent use and is the default cache when Redis is not configured.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/R3E-Network/tvl_service/internal/app/domain/tvl"
	"github.com/R3E-Network/tvl_service/internal/app/storage"
)

// Store caches series per chain with per-entry expiry.
type Store struct {
	mu      sync.RWMutex
	entries map[string]entry

	// now is overridable in tests.
	now func() time.Time
}

type entry struct {
	series    tvl.Series
	expiresAt time.Time
}

var _ storage.SnapshotStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// GetSeries returns the cached series for a chain, or storage.ErrNotFound
// when absent or expired. Expired entries are evicted on read.
func (s *Store) GetSeries(_ context.Context, chain string) (tvl.Series, error) {
	s.mu.RLock()
	e, ok := s.entries[chain]
	s.mu.RUnlock()

	if !ok {
		return tvl.Series{}, storage.ErrNotFound
	}
	if !e.expiresAt.IsZero() && s.now().After(e.expiresAt) {
		s.mu.Lock()
		if cur, still := s.entries[chain]; still && cur.expiresAt.Equal(e.expiresAt) {
			delete(s.entries, chain)
		}
		s.mu.Unlock()
		return tvl.Series{}, storage.ErrNotFound
	}
	return e.series, nil
}

// PutSeries stores a series. A non-positive ttl keeps the entry until
// overwritten.
func (s *Store) PutSeries(_ context.Context, series tvl.Series, ttl time.Duration) error {
	e := entry{series: series}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	s.entries[series.Chain] = e
	s.mu.Unlock()
	return nil
}

// Len reports the number of cached chains, counting expired entries that
// have not yet been evicted.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
