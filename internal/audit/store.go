package audit

import (
	"context"
	"sync"

	id "obconnect/pkg/domain"
)

// Store is the append-only persistence for audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByConsent(ctx context.Context, consentID id.ConsentID) ([]Event, error)
}

// InMemoryStore keeps events in append order.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryStore) ListByConsent(_ context.Context, consentID id.ConsentID) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, event := range s.events {
		if event.ConsentID == consentID {
			out = append(out, event)
		}
	}
	return out, nil
}
