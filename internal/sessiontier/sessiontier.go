// Package sessiontier implements the transient in-memory storage tier
// (spec §4.2): nothing written here survives process restart. Grounded on
// memory_manager.py's _session_memory dict, restated as a Go map plus an
// explicit insertion-order slice (Go map iteration order is undefined).
package sessiontier

import (
	"strings"
	"sync"

	"github.com/MycelicMemory/memoryhub/internal/logging"
	"github.com/MycelicMemory/memoryhub/internal/record"
)

var log = logging.GetLogger("sessiontier")

// Store is the session tier: a mutex-guarded map keyed by record ID, with
// insertion order tracked separately so LoadTier can report it.
type Store struct {
	mu    sync.RWMutex
	byID  map[string]*record.Record
	order []string // insertion order, oldest first
}

// New returns an empty session store.
func New() *Store {
	return &Store{byID: make(map[string]*record.Record)}
}

// Put stores r, overwriting any existing record with the same ID without
// disturbing its original insertion position.
func (s *Store) Put(r *record.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[r.ID]; !exists {
		s.order = append(s.order, r.ID)
	}
	s.byID[r.ID] = r.Clone()
	log.Debug("record stored", "id", r.ID)
}

// Get returns the record with the given ID, or nil if absent.
func (s *Store) Get(id string) *record.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byID[id].Clone()
}

// Search returns up to limit records whose content, tags, or context_path
// contain query (case-insensitive substring match), in insertion order,
// stopping as soon as limit matches are collected. A limit <= 0 is
// treated as "no results". Ordering across tiers is the façade's job,
// not this one's — matching memory_manager.py's session search, a plain
// dict-iteration loop with an early break at limit, no per-tier sort.
func (s *Store) Search(query string, limit int) []*record.Record {
	if limit <= 0 {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	lower := strings.ToLower(query)
	out := make([]*record.Record, 0, limit)
	for _, id := range s.order {
		r := s.byID[id]
		if r.MatchesSubstring(lower) {
			out = append(out, r.Clone())
			if len(out) >= limit {
				break
			}
		}
	}
	return out
}

// IncrementRecall bumps the recalled_count for id, returning the updated
// record, or nil if id is not present.
func (s *Store) IncrementRecall(id string) *record.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[id]
	if !ok {
		return nil
	}
	r.RecalledCount++
	return r.Clone()
}

// LoadTier returns every record currently held, in insertion order.
func (s *Store) LoadTier() []*record.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*record.Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id].Clone())
	}
	return out
}

// Count returns the number of records currently held.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
