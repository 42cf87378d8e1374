package store

import (
	"context"
	"fmt"
	"sync"

	"regpay/internal/registration"
)

// InMemory stores snapshots in memory for tests and single-process dev runs.
type InMemory struct {
	mu        sync.RWMutex
	snapshots map[string]registration.Snapshot
}

// NewInMemory creates an in-memory snapshot store.
func NewInMemory() *InMemory {
	return &InMemory{snapshots: make(map[string]registration.Snapshot)}
}

// Put stores the snapshot under its reference. The value is copied so later
// caller mutations cannot leak into the store.
func (s *InMemory) Put(_ context.Context, snapshot *registration.Snapshot) error {
	if snapshot == nil || snapshot.Reference == "" {
		return fmt.Errorf("snapshot must carry a reference")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[Key(snapshot.Reference)] = *snapshot
	return nil
}

// Get retrieves the snapshot for a reference.
func (s *InMemory) Get(_ context.Context, reference string) (*registration.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if snap, ok := s.snapshots[Key(reference)]; ok {
		out := snap
		return &out, nil
	}
	return nil, fmt.Errorf("snapshot for %q: %w", reference, ErrNotFound)
}
