package session

import (
	"context"
	"fmt"
	"sync"

	"regpay/internal/sentinel"
)

// ErrNotFound is returned when no session has been saved.
var ErrNotFound = sentinel.ErrNotFound

// Store persists the admin session across gateway restarts.
type Store interface {
	Save(ctx context.Context, s *Session) error
	Load(ctx context.Context) (*Session, error)
	Clear(ctx context.Context) error
}

// InMemoryStore keeps the session in memory for tests and dev runs.
type InMemoryStore struct {
	mu      sync.RWMutex
	session *Session
}

// NewInMemoryStore creates an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Save(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *sess
	s.session = &copied
	return nil
}

func (s *InMemoryStore) Load(_ context.Context) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil, fmt.Errorf("no stored session: %w", ErrNotFound)
	}
	copied := *s.session
	return &copied, nil
}

func (s *InMemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	return nil
}
