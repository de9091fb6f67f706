package presence

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a Store for single-process deployments.
type MemoryStore struct {
	mu         sync.RWMutex
	entries    map[string]*Entry
	generation uint64
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*Entry),
	}
}

// Register implements Store.
func (s *MemoryStore) Register(_ context.Context, userID, connID string, at time.Time) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	e := &Entry{
		UserID:     userID,
		ConnID:     connID,
		Generation: s.generation,
		Status:     StatusOnline,
		Connected:  true,
		LastSeen:   at,
		Rooms:      []string{},
	}
	s.entries[userID] = e
	return e.clone(), nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, userID string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[userID]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e.clone(), nil
}

// AddRoom implements Store.
func (s *MemoryStore) AddRoom(_ context.Context, userID, connID, room string) error {
	return s.update(userID, connID, addRoom(room))
}

// RemoveRoom implements Store.
func (s *MemoryStore) RemoveRoom(_ context.Context, userID, connID, room string) error {
	return s.update(userID, connID, removeRoom(room))
}

// SetStatus implements Store.
func (s *MemoryStore) SetStatus(_ context.Context, userID, connID, status string, at time.Time) error {
	return s.update(userID, connID, setStatus(status, at))
}

// MarkOffline implements Store.
func (s *MemoryStore) MarkOffline(_ context.Context, userID, connID string, at time.Time) error {
	return s.update(userID, connID, disconnect(at))
}

// Evict implements Store.
func (s *MemoryStore) Evict(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for userID, e := range s.entries {
		if e.Evictable(cutoff) {
			delete(s.entries, userID)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of entries, offline ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) update(userID, connID string, fn mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[userID]
	if !ok {
		return ErrNotFound
	}
	if e.ConnID != connID {
		return ErrStaleConnection
	}
	fn(e)
	return nil
}
