package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/eventdesk/desk-engine/internal/model"
)

// MemoryStore implements Store with an in-memory map. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]*model.Snapshot
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string]*model.Snapshot),
	}
}

// SaveSnapshot keeps the pointer; snapshots are immutable once built.
func (s *MemoryStore) SaveSnapshot(_ context.Context, snap *model.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("store: nil snapshot")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots[snap.EventTicker] = snap
	return nil
}

func (s *MemoryStore) LoadSnapshot(_ context.Context, eventTicker string) (*model.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[eventTicker]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, eventTicker)
	}
	return snap, nil
}
