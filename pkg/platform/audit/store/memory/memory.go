package memory

import (
	"context"
	"sync"

	audit "swasthya/pkg/platform/audit"
)

// InMemoryStore keeps audit events in memory for tests/dev.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []audit.Event
}

// NewInMemoryStore constructs an empty in-memory audit store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// ListByActor returns events emitted for the given actor, in append order.
func (s *InMemoryStore) ListByActor(_ context.Context, actor string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for _, event := range s.events {
		if event.Actor == actor {
			out = append(out, event)
		}
	}
	return out, nil
}

// All returns every stored event in append order.
func (s *InMemoryStore) All() []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event(nil), s.events...)
}
