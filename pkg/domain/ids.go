// Package domain holds typed identifiers shared across the connector.
//
// Each entity gets its own UUID wrapper so a ConsentID can never be passed
// where a RegistrationID is expected. Parsing enforces the invariant that
// IDs are valid, non-empty, non-nil UUIDs.
package domain

import (
	"github.com/google/uuid"

	dErrors "obconnect/pkg/domain-errors"
)

// ConsentID identifies a locally-created consent record.
type ConsentID uuid.UUID

// RegistrationID identifies a dynamic client registration.
type RegistrationID uuid.UUID

// NewConsentID generates a fresh consent ID.
func NewConsentID() ConsentID { return ConsentID(uuid.New()) }

// NewRegistrationID generates a fresh registration ID.
func NewRegistrationID() RegistrationID { return RegistrationID(uuid.New()) }

func (id ConsentID) String() string      { return uuid.UUID(id).String() }
func (id ConsentID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id RegistrationID) String() string { return uuid.UUID(id).String() }
func (id RegistrationID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// ParseConsentID parses and validates a consent ID string.
func ParseConsentID(s string) (ConsentID, error) {
	u, err := parse(s)
	if err != nil {
		return ConsentID{}, err
	}
	return ConsentID(u), nil
}

// ParseRegistrationID parses and validates a registration ID string.
func ParseRegistrationID(s string) (RegistrationID, error) {
	u, err := parse(s)
	if err != nil {
		return RegistrationID{}, err
	}
	return RegistrationID(u), nil
}

func parse(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "id is not a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be the nil UUID")
	}
	return u, nil
}
