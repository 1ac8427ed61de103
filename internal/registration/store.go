package registration

import (
	"context"

	"obconnect/internal/bankprofile"
)

// Store persists registrations keyed by registration group.
type Store interface {
	// FindByGroup returns the registration for a group, or a CodeNotFound
	// error when none exists.
	FindByGroup(ctx context.Context, group bankprofile.RegistrationGroup) (*Registration, error)
	Save(ctx context.Context, reg *Registration) error
}
