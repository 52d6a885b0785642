package state

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps state tokens in process memory. Single-instance
// fallback for deployments without Redis.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]time.Time
}

// NewMemoryStore creates a new MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]time.Time)}
}

// Store saves a state token with a TTL.
func (s *MemoryStore) Store(_ context.Context, state string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Opportunistic sweep keeps the map from growing under abandoned flows.
	now := time.Now()
	for k, deadline := range s.states {
		if now.After(deadline) {
			delete(s.states, k)
		}
	}

	s.states[state] = now.Add(ttl)
	return nil
}

// Consume validates a state token and deletes it so it can be used exactly
// once.
func (s *MemoryStore) Consume(_ context.Context, state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	deadline, ok := s.states[state]
	if !ok {
		return ErrStateNotFound
	}
	delete(s.states, state)

	if time.Now().After(deadline) {
		return ErrStateNotFound
	}
	return nil
}
