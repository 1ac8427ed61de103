// Package consent owns the consent lifecycle state machine: creation,
// read-through to the bank, authorization completion, funds-confirmation
// reads, and local termination.
package consent

import (
	"strings"
	"time"

	"obconnect/internal/bankprofile"
	id "obconnect/pkg/domain"
	dErrors "obconnect/pkg/domain-errors"
)

// State of a consent in its lifecycle.
type State string

const (
	StateCreated              State = "created"
	StatePendingAuthorization State = "pending_authorization"
	StateAuthorized           State = "authorized"
	StateUsed                 State = "used"
	StateRevoked              State = "revoked"
	StateExpired              State = "expired"
	StateRejected             State = "rejected"
)

// stateTransitions is the full lifecycle graph. States absent from the map
// are terminal.
var stateTransitions = map[State][]State{
	StateCreated:              {StatePendingAuthorization, StateRejected},
	StatePendingAuthorization: {StateAuthorized, StateRejected, StateExpired},
	StateAuthorized:           {StateUsed, StateRevoked, StateExpired, StateRejected},
	StateUsed:                 {StateRevoked, StateExpired},
}

func (s State) CanTransitionTo(target State) bool {
	for _, next := range stateTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// Terminal reports whether the state admits no further transitions. Terminal
// consents allow only idempotent local reads.
func (s State) Terminal() bool {
	return len(stateTransitions[s]) == 0
}

// Consent is the aggregate root for one business consent request.
//
// Invariants:
//   - State transitions follow stateTransitions; nothing else
//   - ExternalID is set exactly once, at created → pending_authorization,
//     and is immutable afterward
//   - No bank-facing operation may be issued from a terminal state
type Consent struct {
	ID             id.ConsentID
	ProfileID      bankprofile.ProfileID
	RegistrationID id.RegistrationID
	// ExternalID is the bank-assigned consent identifier.
	ExternalID     string
	State          State
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastModifiedBy string
}

func NewConsent(profileID bankprofile.ProfileID, registrationID id.RegistrationID, now time.Time, actor string) *Consent {
	return &Consent{
		ID:             id.NewConsentID(),
		ProfileID:      profileID,
		RegistrationID: registrationID,
		State:          StateCreated,
		CreatedAt:      now,
		UpdatedAt:      now,
		LastModifiedBy: actor,
	}
}

// CanAccept checks that the bank's acceptance of the create request may be
// applied. Returns nil if the transition is valid.
func (c *Consent) CanAccept(externalID string) error {
	if strings.TrimSpace(externalID) == "" {
		return dErrors.New(dErrors.CodeContractViolation, "bank returned empty consent identifier")
	}
	if c.ExternalID != "" {
		return dErrors.New(dErrors.CodeInvalidState, "external consent identifier already set")
	}
	if !c.State.CanTransitionTo(StatePendingAuthorization) {
		return dErrors.New(dErrors.CodeInvalidState, "consent in state "+string(c.State)+" cannot await authorization")
	}
	return nil
}

// ApplyAcceptance transitions created → pending_authorization and pins the
// bank-assigned identifier. Must only be called after CanAccept returns nil.
func (c *Consent) ApplyAcceptance(externalID string, now time.Time, actor string) {
	c.ExternalID = externalID
	c.apply(StatePendingAuthorization, now, actor)
}

// CanAuthorize checks the pending_authorization → authorized transition.
func (c *Consent) CanAuthorize() error {
	if !c.State.CanTransitionTo(StateAuthorized) {
		return dErrors.New(dErrors.CodeInvalidState, "consent in state "+string(c.State)+" cannot be authorized")
	}
	return nil
}

func (c *Consent) ApplyAuthorization(now time.Time, actor string) {
	c.apply(StateAuthorized, now, actor)
}

// CanReject checks the transition into the terminal rejected state.
func (c *Consent) CanReject() error {
	if !c.State.CanTransitionTo(StateRejected) {
		return dErrors.New(dErrors.CodeInvalidState, "consent in state "+string(c.State)+" cannot be rejected")
	}
	return nil
}

func (c *Consent) ApplyRejection(now time.Time, actor string) {
	c.apply(StateRejected, now, actor)
}

// CanConfirmFunds checks that a funds confirmation may be issued. Valid only
// from authorized or used.
func (c *Consent) CanConfirmFunds() error {
	if c.State != StateAuthorized && c.State != StateUsed {
		return dErrors.New(dErrors.CodeInvalidState, "funds confirmation requires an authorized consent, state is "+string(c.State))
	}
	return nil
}

// ApplyUse marks the first successful dependent action. A consent already in
// used stays there.
func (c *Consent) ApplyUse(now time.Time, actor string) {
	if c.State == StateUsed {
		return
	}
	c.apply(StateUsed, now, actor)
}

// CanRevoke checks the transition into the terminal revoked state.
func (c *Consent) CanRevoke() error {
	if !c.State.CanTransitionTo(StateRevoked) {
		return dErrors.New(dErrors.CodeInvalidState, "consent in state "+string(c.State)+" cannot be revoked")
	}
	return nil
}

func (c *Consent) ApplyRevocation(now time.Time, actor string) {
	c.apply(StateRevoked, now, actor)
}

// CanExpire checks the transition into the terminal expired state.
func (c *Consent) CanExpire() error {
	if !c.State.CanTransitionTo(StateExpired) {
		return dErrors.New(dErrors.CodeInvalidState, "consent in state "+string(c.State)+" cannot expire")
	}
	return nil
}

func (c *Consent) ApplyExpiry(now time.Time, actor string) {
	c.apply(StateExpired, now, actor)
}

func (c *Consent) apply(next State, now time.Time, actor string) {
	c.State = next
	c.UpdatedAt = now
	c.LastModifiedBy = actor
}
