package consent

import (
	"context"
	"sync"

	id "obconnect/pkg/domain"
	dErrors "obconnect/pkg/domain-errors"
)

// InMemoryStore keeps consents in a map. Suitable for single-instance
// deployments and tests; use PostgresStore when consents must survive
// restarts.
type InMemoryStore struct {
	mu       sync.RWMutex
	consents map[id.ConsentID]Consent
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{consents: make(map[id.ConsentID]Consent)}
}

func (s *InMemoryStore) Save(_ context.Context, consent *Consent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consents[consent.ID] = *consent
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, consentID id.ConsentID) (*Consent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	consent, ok := s.consents[consentID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "consent "+consentID.String()+" not found")
	}
	out := consent
	return &out, nil
}

func (s *InMemoryStore) Delete(_ context.Context, consentID id.ConsentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.consents[consentID]; !ok {
		return dErrors.New(dErrors.CodeNotFound, "consent "+consentID.String()+" not found")
	}
	delete(s.consents, consentID)
	return nil
}
