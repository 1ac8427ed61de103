package registration

import (
	"context"
	"sync"

	"obconnect/internal/bankprofile"
	dErrors "obconnect/pkg/domain-errors"
)

// InMemoryStore keeps registrations in a map. Suitable for single-instance
// deployments and tests; use PostgresStore when registrations must survive
// restarts.
type InMemoryStore struct {
	mu   sync.RWMutex
	regs map[bankprofile.RegistrationGroup]Registration
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{regs: make(map[bankprofile.RegistrationGroup]Registration)}
}

func (s *InMemoryStore) FindByGroup(_ context.Context, group bankprofile.RegistrationGroup) (*Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reg, ok := s.regs[group]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "no registration for group "+string(group))
	}
	out := reg
	return &out, nil
}

func (s *InMemoryStore) Save(_ context.Context, reg *Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regs[reg.Group] = *reg
	return nil
}
