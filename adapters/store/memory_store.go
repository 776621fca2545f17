package store

import (
	"context"
	"sync"
	"time"

	"github.com/PIYUSH-GIRI23/zipp-clip/core"
	"github.com/PIYUSH-GIRI23/zipp-clip/ports"
)

// MemoryStore is an in-memory implementation of the HistoryStore
// interface for tests and single-node deployments. Entry mutation and
// the lastUpdated bump happen under one lock, so readers never observe
// one without the other.
type MemoryStore struct {
	mu         sync.RWMutex
	principals map[string]*principalRecord
}

type principalRecord struct {
	entries     map[string]core.HistoryEntry
	lastUpdated time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		principals: make(map[string]*principalRecord),
	}
}

var _ ports.HistoryStore = (*MemoryStore)(nil)

// FindEntry returns the entry for the origin, or core.ErrUnknownDevice.
func (s *MemoryStore) FindEntry(ctx context.Context, principalID, origin string) (core.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.principals[principalID]
	if !ok {
		return core.HistoryEntry{}, core.ErrUnknownDevice
	}
	entry, ok := rec.entries[origin]
	if !ok {
		return core.HistoryEntry{}, core.ErrUnknownDevice
	}
	return cloneEntry(entry), nil
}

// Touch overwrites the most recent access instant for the origin.
func (s *MemoryStore) Touch(ctx context.Context, principalID, origin string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.principals[principalID]
	if !ok {
		return core.ErrUnknownDevice
	}
	entry, ok := rec.entries[origin]
	if !ok {
		return core.ErrUnknownDevice
	}

	if len(entry.Seen) == 0 {
		entry.Seen = []time.Time{at}
	} else {
		entry.Seen[len(entry.Seen)-1] = at
	}
	rec.entries[origin] = entry
	rec.lastUpdated = at
	return nil
}

// Revoke removes the entry for the origin. Revoking an absent entry is
// a no-op, so repeated calls converge on the same end state.
func (s *MemoryStore) Revoke(ctx context.Context, principalID, origin string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.principals[principalID]
	if !ok {
		return nil
	}
	if _, ok := rec.entries[origin]; !ok {
		return nil
	}
	delete(rec.entries, origin)
	rec.lastUpdated = time.Now()
	return nil
}

// Append creates or replaces the entry for the origin with a single
// access instant.
func (s *MemoryStore) Append(ctx context.Context, principalID, origin string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.principals[principalID]
	if !ok {
		rec = &principalRecord{entries: make(map[string]core.HistoryEntry)}
		s.principals[principalID] = rec
	}
	rec.entries[origin] = core.HistoryEntry{Origin: origin, Seen: []time.Time{at}}
	rec.lastUpdated = at
	return nil
}

// LastUpdated returns the principal-level lastUpdated timestamp, or the
// zero time for an unknown principal.
func (s *MemoryStore) LastUpdated(principalID string) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.principals[principalID]
	if !ok {
		return time.Time{}
	}
	return rec.lastUpdated
}

func cloneEntry(entry core.HistoryEntry) core.HistoryEntry {
	seen := make([]time.Time, len(entry.Seen))
	copy(seen, entry.Seen)
	return core.HistoryEntry{Origin: entry.Origin, Seen: seen}
}
