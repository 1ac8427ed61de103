package audit

import (
	"time"

	id "obconnect/pkg/domain"
)

// Actions recorded over the consent lifecycle.
const (
	ActionConsentCreated     = "consent_created"
	ActionConsentRead        = "consent_read"
	ActionConsentAuthorized  = "consent_authorized"
	ActionConsentRejected    = "consent_rejected"
	ActionFundsConfirmation  = "funds_confirmation"
	ActionConsentDeleted     = "consent_deleted"
	ActionClientRegistration = "client_registration"
)

// Outcomes of an audited action.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time    `json:"timestamp"`
	ConsentID id.ConsentID `json:"consent_id"`
	ProfileID string       `json:"profile_id"`
	Action    string       `json:"action"`
	Outcome   string       `json:"outcome"`
	Detail    string       `json:"detail,omitempty"`
}
