package consent

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"obconnect/internal/audit"
	"obconnect/internal/bankprofile"
	"obconnect/internal/gateway"
	"obconnect/internal/registration"
	"obconnect/internal/signing"
	id "obconnect/pkg/domain"
	dErrors "obconnect/pkg/domain-errors"
)

// Actors recorded in LastModifiedBy.
const (
	actorConnector = "connector"
	actorCallback  = "authorization-callback"
	actorBankSync  = "bank-sync"
)

// RegistrationManager supplies the registration and access credential for a
// resolved bank profile.
type RegistrationManager interface {
	Ensure(ctx context.Context, profile bankprofile.BankProfile) (*registration.Registration, error)
	AccessToken(ctx context.Context, profile bankprofile.BankProfile, reg *registration.Registration) (string, error)
}

// Gateway is the slice of the external API gateway the service needs.
type Gateway interface {
	Send(ctx context.Context, operation string, rc *signing.RequestContext, out any) (string, error)
}

// Service drives the consent lifecycle. All transitions for one consent are
// serialized through a per-consent lock; different consents proceed in
// parallel.
type Service struct {
	registry      *bankprofile.Registry
	store         Store
	registrations RegistrationManager
	gateway       Gateway
	signer        *signing.Signer
	audit         *audit.Publisher
	logger        *slog.Logger
	locks         *consentLocks
	now           func() time.Time
}

func NewService(registry *bankprofile.Registry, store Store, registrations RegistrationManager, gw Gateway, signer *signing.Signer, auditPub *audit.Publisher, logger *slog.Logger) *Service {
	return &Service{
		registry:      registry,
		store:         store,
		registrations: registrations,
		gateway:       gw,
		signer:        signer,
		audit:         auditPub,
		logger:        logger,
		locks:         newConsentLocks(),
		now:           time.Now,
	}
}

// DebtorAccount identifies the account a funds-confirmation consent covers.
type DebtorAccount struct {
	SchemeName     string
	Identification string
	Name           string
}

// CreateRequest is the caller-facing shape for opening a consent.
type CreateRequest struct {
	ProfileID          bankprofile.ProfileID
	DebtorAccount      DebtorAccount
	ExpirationDateTime time.Time
}

func (r CreateRequest) validate() error {
	if strings.TrimSpace(string(r.ProfileID)) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "profile id is required")
	}
	if strings.TrimSpace(r.DebtorAccount.SchemeName) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "debtor account scheme name is required")
	}
	if strings.TrimSpace(r.DebtorAccount.Identification) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "debtor account identification is required")
	}
	return nil
}

// Bank wire shapes. Field names follow the open banking read/write
// conventions; null fields are omitted.
type bankAccount struct {
	SchemeName     string `json:"SchemeName"`
	Identification string `json:"Identification"`
	Name           string `json:"Name,omitempty"`
}

type bankConsentRequest struct {
	Data bankConsentRequestData `json:"Data"`
}

type bankConsentRequestData struct {
	DebtorAccount      bankAccount `json:"DebtorAccount"`
	ExpirationDateTime *time.Time  `json:"ExpirationDateTime,omitempty"`
}

type bankConsentResponse struct {
	Data struct {
		ConsentID string `json:"ConsentId"`
		Status    string `json:"Status"`
	} `json:"Data"`
}

// Create persists the consent locally, submits the signed create request to
// the bank, and applies the outcome.
//
// Bank rejection leaves a terminal rejected record and surfaces the bank's
// error. A transport failure removes the local record entirely, so a timed
// out create leaves nothing behind. Failures before the bank is contacted
// (token fetch, signing) also remove the record.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Consent, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	profile, err := s.registry.Resolve(req.ProfileID)
	if err != nil {
		return nil, err
	}
	reg, err := s.registrations.Ensure(ctx, profile)
	if err != nil {
		return nil, err
	}

	consent := NewConsent(profile.ID, reg.ID, s.now(), actorConnector)
	release := s.locks.acquire(consent.ID)
	defer release()

	if err := s.store.Save(ctx, consent); err != nil {
		return nil, err
	}
	consentsCreatedTotal.WithLabelValues(string(profile.ID)).Inc()

	token, err := s.registrations.AccessToken(ctx, profile, reg)
	if err != nil {
		s.discard(ctx, consent, audit.ActionConsentCreated, err)
		return nil, err
	}

	payload := bankConsentRequest{Data: bankConsentRequestData{
		DebtorAccount: bankAccount{
			SchemeName:     req.DebtorAccount.SchemeName,
			Identification: req.DebtorAccount.Identification,
			Name:           req.DebtorAccount.Name,
		},
	}}
	if !req.ExpirationDateTime.IsZero() {
		exp := req.ExpirationDateTime
		payload.Data.ExpirationDateTime = &exp
	}

	builder := signing.NewBuilder(s.signer, profile)
	rc, err := builder.Post(consentsURL(profile), payload, token, nil)
	if err != nil {
		s.discard(ctx, consent, audit.ActionConsentCreated, err)
		return nil, err
	}

	var resp bankConsentResponse
	if _, err := s.gateway.Send(ctx, "consent_create", rc, &resp); err != nil {
		return nil, s.applyCreateFailure(ctx, consent, err)
	}

	if err := consent.CanAccept(resp.Data.ConsentID); err != nil {
		s.discard(ctx, consent, audit.ActionConsentCreated, err)
		return nil, err
	}
	s.transition(consent, func(now time.Time) { consent.ApplyAcceptance(resp.Data.ConsentID, now, actorConnector) })
	if err := s.store.Save(ctx, consent); err != nil {
		return nil, err
	}

	s.emit(ctx, consent, audit.ActionConsentCreated, audit.OutcomeSuccess, "")
	s.logger.InfoContext(ctx, "consent created",
		"consent_id", consent.ID,
		"profile", consent.ProfileID,
		"external_id", consent.ExternalID,
	)
	return consent, nil
}

// applyCreateFailure maps a gateway error to the consent's fate. Rejection
// by the bank is a lifecycle outcome; a transport failure means the bank
// never accepted anything, so the created row is removed rather than left
// orphaned. An ambiguous outcome (unparseable or malformed response) keeps
// the created row as evidence that the bank may hold a consent we cannot
// reference.
func (s *Service) applyCreateFailure(ctx context.Context, consent *Consent, sendErr error) error {
	switch {
	case dErrors.HasCode(sendErr, dErrors.CodeBankAPI):
		s.transition(consent, func(now time.Time) { consent.ApplyRejection(now, actorConnector) })
		if err := s.store.Save(ctx, consent); err != nil {
			s.logger.ErrorContext(ctx, "persisting rejected consent failed", "consent_id", consent.ID, "error", err)
		}
		s.emit(ctx, consent, audit.ActionConsentRejected, audit.OutcomeFailure, sendErr.Error())
	case dErrors.HasCode(sendErr, dErrors.CodeTransport):
		s.discard(ctx, consent, audit.ActionConsentCreated, sendErr)
	default:
		s.emit(ctx, consent, audit.ActionConsentCreated, audit.OutcomeFailure, sendErr.Error())
	}
	return sendErr
}

// ReadOptions controls whether Read refreshes from the bank.
type ReadOptions struct {
	// ExcludeExternalAPIOperation skips the bank GET and serves the local
	// record only.
	ExcludeExternalAPIOperation bool
}

// ReadResult distinguishes fresh bank data from a stale local record.
type ReadResult struct {
	Consent *Consent
	// Fresh is true when the bank GET succeeded and the record reflects the
	// bank's view.
	Fresh bool
	// Warning carries the bank GET failure when Fresh is false and a refresh
	// was attempted.
	Warning string
}

// Read loads the consent and, unless opted out, refreshes it from the bank.
// A refresh failure never changes local state; the stale record is returned
// with a warning instead.
func (s *Service) Read(ctx context.Context, consentID id.ConsentID, opts ReadOptions) (*ReadResult, error) {
	release := s.locks.acquire(consentID)
	defer release()

	consent, err := s.store.FindByID(ctx, consentID)
	if err != nil {
		return nil, err
	}

	// Terminal consents admit only local reads, and a consent the bank never
	// accepted has nothing to fetch.
	if opts.ExcludeExternalAPIOperation || consent.State.Terminal() || consent.ExternalID == "" {
		return &ReadResult{Consent: consent}, nil
	}

	status, warn := s.fetchBankStatus(ctx, consent)
	if warn != nil {
		return &ReadResult{Consent: consent, Warning: warn.Error()}, nil
	}
	s.syncState(ctx, consent, status)
	return &ReadResult{Consent: consent, Fresh: true}, nil
}

func (s *Service) fetchBankStatus(ctx context.Context, consent *Consent) (string, error) {
	profile, err := s.registry.Resolve(consent.ProfileID)
	if err != nil {
		return "", err
	}
	reg, err := s.registrations.Ensure(ctx, profile)
	if err != nil {
		return "", err
	}
	token, err := s.registrations.AccessToken(ctx, profile, reg)
	if err != nil {
		return "", err
	}

	builder := signing.NewBuilder(s.signer, profile)
	rc := builder.Get(consentsURL(profile)+"/"+consent.ExternalID, token, nil)

	var resp bankConsentResponse
	if _, err := s.gateway.Send(ctx, "consent_read", rc, &resp); err != nil {
		return "", err
	}
	return resp.Data.Status, nil
}

// bankStatusStates maps the bank's reported consent status onto the local
// lifecycle.
var bankStatusStates = map[string]State{
	"AwaitingAuthorisation": StatePendingAuthorization,
	"Authorised":            StateAuthorized,
	"Rejected":              StateRejected,
	"Revoked":               StateRevoked,
	"Expired":               StateExpired,
	"Consumed":              StateUsed,
}

// syncState folds the bank's status into the local record when the lifecycle
// allows the transition. An unknown status or a transition the state machine
// forbids is logged and ignored; the bank's view never corrupts the local
// invariants.
func (s *Service) syncState(ctx context.Context, consent *Consent, bankStatus string) {
	target, ok := bankStatusStates[bankStatus]
	if !ok {
		s.logger.WarnContext(ctx, "unknown bank consent status", "consent_id", consent.ID, "status", bankStatus)
		return
	}
	if target == consent.State {
		return
	}
	if !consent.State.CanTransitionTo(target) {
		s.logger.WarnContext(ctx, "bank status would violate lifecycle",
			"consent_id", consent.ID,
			"state", consent.State,
			"bank_status", bankStatus,
		)
		return
	}
	s.transition(consent, func(now time.Time) { consent.apply(target, now, actorBankSync) })
	if err := s.store.Save(ctx, consent); err != nil {
		s.logger.ErrorContext(ctx, "persisting synced consent failed", "consent_id", consent.ID, "error", err)
	}
}

// FundsConfirmationRequest asks the bank whether funds are available under an
// authorized consent. Variant tags bank-specific payload flavors; it travels
// in the payload, not the lifecycle.
type FundsConfirmationRequest struct {
	Variant   string
	Amount    string
	Currency  string
	Reference string
}

// FundsConfirmation is the bank's answer.
type FundsConfirmation struct {
	FundsAvailable bool
	ConfirmedAt    time.Time
	InteractionID  string
}

type bankFundsConfirmationRequest struct {
	Data struct {
		ConsentID        string `json:"ConsentId"`
		Reference        string `json:"Reference,omitempty"`
		Variant          string `json:"Variant,omitempty"`
		InstructedAmount struct {
			Amount   string `json:"Amount"`
			Currency string `json:"Currency"`
		} `json:"InstructedAmount"`
	} `json:"Data"`
}

type bankFundsConfirmationResponse struct {
	Data struct {
		FundsAvailableResult struct {
			FundsAvailable         bool      `json:"FundsAvailable"`
			FundsAvailableDateTime time.Time `json:"FundsAvailableDateTime"`
		} `json:"FundsAvailableResult"`
	} `json:"Data"`
}

// ReadFundsConfirmation issues a funds confirmation. Valid only from
// authorized or used; the first success from authorized marks the consent
// used.
func (s *Service) ReadFundsConfirmation(ctx context.Context, consentID id.ConsentID, req FundsConfirmationRequest) (*FundsConfirmation, error) {
	release := s.locks.acquire(consentID)
	defer release()

	consent, err := s.store.FindByID(ctx, consentID)
	if err != nil {
		return nil, err
	}
	if err := consent.CanConfirmFunds(); err != nil {
		return nil, err
	}

	profile, err := s.registry.Resolve(consent.ProfileID)
	if err != nil {
		return nil, err
	}
	reg, err := s.registrations.Ensure(ctx, profile)
	if err != nil {
		return nil, err
	}
	token, err := s.registrations.AccessToken(ctx, profile, reg)
	if err != nil {
		return nil, err
	}

	var payload bankFundsConfirmationRequest
	payload.Data.ConsentID = consent.ExternalID
	payload.Data.Reference = req.Reference
	payload.Data.Variant = req.Variant
	payload.Data.InstructedAmount.Amount = req.Amount
	payload.Data.InstructedAmount.Currency = req.Currency

	builder := signing.NewBuilder(s.signer, profile)
	rc, err := builder.Post(profile.Endpoints.PaymentInitiationBase+"/funds-confirmations", payload, token, nil)
	if err != nil {
		return nil, err
	}

	var resp bankFundsConfirmationResponse
	interactionID, err := s.gateway.Send(ctx, "funds_confirmation", rc, &resp)
	if err != nil {
		s.emit(ctx, consent, audit.ActionFundsConfirmation, audit.OutcomeFailure, err.Error())
		return nil, err
	}

	if consent.State == StateAuthorized {
		s.transition(consent, func(now time.Time) { consent.ApplyUse(now, actorConnector) })
		if err := s.store.Save(ctx, consent); err != nil {
			s.logger.ErrorContext(ctx, "persisting used consent failed", "consent_id", consent.ID, "error", err)
		}
	}
	s.emit(ctx, consent, audit.ActionFundsConfirmation, audit.OutcomeSuccess, "")

	return &FundsConfirmation{
		FundsAvailable: resp.Data.FundsAvailableResult.FundsAvailable,
		ConfirmedAt:    resp.Data.FundsAvailableResult.FundsAvailableDateTime,
		InteractionID:  interactionID,
	}, nil
}

// AuthorizationOutcome is the result delivered by the post-authorization
// signal.
type AuthorizationOutcome string

const (
	OutcomeAuthorized AuthorizationOutcome = "authorized"
	OutcomeRejected   AuthorizationOutcome = "rejected"
)

// CompleteAuthorization applies the external authorization-completion signal,
// moving pending_authorization to authorized or rejected.
func (s *Service) CompleteAuthorization(ctx context.Context, consentID id.ConsentID, outcome AuthorizationOutcome) (*Consent, error) {
	release := s.locks.acquire(consentID)
	defer release()

	consent, err := s.store.FindByID(ctx, consentID)
	if err != nil {
		return nil, err
	}

	switch outcome {
	case OutcomeAuthorized:
		if err := consent.CanAuthorize(); err != nil {
			return nil, err
		}
		s.transition(consent, func(now time.Time) { consent.ApplyAuthorization(now, actorCallback) })
		s.emit(ctx, consent, audit.ActionConsentAuthorized, audit.OutcomeSuccess, "")
	case OutcomeRejected:
		if err := consent.CanReject(); err != nil {
			return nil, err
		}
		s.transition(consent, func(now time.Time) { consent.ApplyRejection(now, actorCallback) })
		s.emit(ctx, consent, audit.ActionConsentRejected, audit.OutcomeSuccess, "")
	default:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown authorization outcome "+string(outcome))
	}

	if err := s.store.Save(ctx, consent); err != nil {
		return nil, err
	}
	return consent, nil
}

// DeleteLocal removes the local record only. The bank is never called; this
// profile has no reliable consent-deletion operation.
func (s *Service) DeleteLocal(ctx context.Context, consentID id.ConsentID) error {
	release := s.locks.acquire(consentID)
	defer release()

	consent, err := s.store.FindByID(ctx, consentID)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, consentID); err != nil {
		return err
	}
	s.emit(ctx, consent, audit.ActionConsentDeleted, audit.OutcomeSuccess, "")
	return nil
}

// transition applies the mutation and records the edge metric.
func (s *Service) transition(consent *Consent, mutate func(now time.Time)) {
	from := consent.State
	mutate(s.now())
	consentTransitionsTotal.WithLabelValues(string(from), string(consent.State)).Inc()
}

// discard removes a created row that never became a bank-side consent.
func (s *Service) discard(ctx context.Context, consent *Consent, action string, cause error) {
	if err := s.store.Delete(ctx, consent.ID); err != nil && !dErrors.HasCode(err, dErrors.CodeNotFound) {
		s.logger.ErrorContext(ctx, "removing abandoned consent failed", "consent_id", consent.ID, "error", err)
	}
	s.emit(ctx, consent, action, audit.OutcomeFailure, cause.Error())
}

func (s *Service) emit(ctx context.Context, consent *Consent, action, outcome, detail string) {
	if s.audit == nil {
		return
	}
	err := s.audit.Emit(ctx, audit.Event{
		ConsentID: consent.ID,
		ProfileID: string(consent.ProfileID),
		Action:    action,
		Outcome:   outcome,
		Detail:    detail,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "consent_id", consent.ID, "action", action, "error", err)
	}
}

func consentsURL(profile bankprofile.BankProfile) string {
	return profile.Endpoints.PaymentInitiationBase + "/funds-confirmation-consents"
}

var _ Gateway = (*gateway.Client)(nil)
