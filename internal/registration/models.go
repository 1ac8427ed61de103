// Package registration performs and tracks dynamic client registration per
// bank registration group, and supplies the access credential the signed
// pipeline needs.
package registration

import (
	"time"

	"obconnect/internal/bankprofile"
	id "obconnect/pkg/domain"
)

// Registration is the client identity obtained from one bank registration
// group. Created once per group; mutated only when the bank rotates the
// client credential. Never shared across groups.
type Registration struct {
	ID           id.RegistrationID
	ProfileID    bankprofile.ProfileID
	Group        bankprofile.RegistrationGroup
	Scope        bankprofile.RegistrationScope
	ClientID     string
	ClientSecret string
	// ExternalID is the bank's identifier for this registration resource.
	ExternalID string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
