package consent

import (
	"context"

	id "obconnect/pkg/domain"
)

// Store persists consents. Implementations return CodeNotFound for absent
// ids; callers own transition validity.
type Store interface {
	Save(ctx context.Context, consent *Consent) error
	FindByID(ctx context.Context, consentID id.ConsentID) (*Consent, error)
	Delete(ctx context.Context, consentID id.ConsentID) error
}
