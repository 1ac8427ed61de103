package consent

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"obconnect/internal/audit"
	"obconnect/internal/bankprofile"
	"obconnect/internal/gateway"
	"obconnect/internal/keystore"
	"obconnect/internal/registration"
	"obconnect/internal/signing"
	id "obconnect/pkg/domain"
	dErrors "obconnect/pkg/domain-errors"
)

// fakeGateway serves scripted JSON per operation and records calls.
type fakeGateway struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	calls     []string
}

func (g *fakeGateway) Send(_ context.Context, operation string, _ *signing.RequestContext, out any) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, operation)
	g.mu.Unlock()

	if err := g.errs[operation]; err != nil {
		return "", err
	}
	if out != nil {
		if err := json.Unmarshal([]byte(g.responses[operation]), out); err != nil {
			return "", err
		}
	}
	return "interaction-1", nil
}

func (g *fakeGateway) callCount(operation string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		if c == operation {
			n++
		}
	}
	return n
}

type fakeRegistrations struct {
	reg      *registration.Registration
	tokenErr error
}

func (f *fakeRegistrations) Ensure(context.Context, bankprofile.BankProfile) (*registration.Registration, error) {
	return f.reg, nil
}

func (f *fakeRegistrations) AccessToken(context.Context, bankprofile.BankProfile, *registration.Registration) (string, error) {
	if f.tokenErr != nil {
		return "", f.tokenErr
	}
	return "tok-1", nil
}

// recordingStore remembers every saved snapshot so tests can follow a
// consent they never got a handle on.
type recordingStore struct {
	*InMemoryStore
	mu    sync.Mutex
	saved []Consent
}

func newRecordingStore() *recordingStore {
	return &recordingStore{InMemoryStore: NewInMemoryStore()}
}

func (r *recordingStore) Save(ctx context.Context, consent *Consent) error {
	r.mu.Lock()
	r.saved = append(r.saved, *consent)
	r.mu.Unlock()
	return r.InMemoryStore.Save(ctx, consent)
}

func (r *recordingStore) lastSaved(t *testing.T) Consent {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.saved)
	return r.saved[len(r.saved)-1]
}

type serviceFixture struct {
	service    *Service
	store      *recordingStore
	gateway    *fakeGateway
	auditStore *audit.InMemoryStore
}

func newServiceFixture(t *testing.T, gw *fakeGateway) *serviceFixture {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	signer := signing.NewSigner(keystore.SigningKey{KeyID: "kid-1", PrivateKey: key}, "org-1/software-1")
	store := newRecordingStore()
	auditStore := audit.NewInMemoryStore()
	logger := slog.New(slog.DiscardHandler)
	regs := &fakeRegistrations{reg: &registration.Registration{
		ID:       id.NewRegistrationID(),
		Group:    bankprofile.RegistrationGroup("barclays:sandbox"),
		ClientID: "client-abc",
	}}

	svc := NewService(bankprofile.NewRegistry(), store, regs, gw, signer,
		audit.NewPublisher(auditStore, nil, logger), logger)
	return &serviceFixture{service: svc, store: store, gateway: gw, auditStore: auditStore}
}

func (f *serviceFixture) seed(t *testing.T, state State, externalID string) *Consent {
	t.Helper()
	c := newTestConsent(state, externalID)
	require.NoError(t, f.store.Save(context.Background(), c))
	return c
}

func validCreateRequest() CreateRequest {
	return CreateRequest{
		ProfileID: bankprofile.ProfileBarclaysSandbox,
		DebtorAccount: DebtorAccount{
			SchemeName:     "UK.OBIE.SortCodeAccountNumber",
			Identification: "40400512345678",
			Name:           "J Doe",
		},
	}
}

func TestCreate_Success(t *testing.T) {
	gw := &fakeGateway{responses: map[string]string{
		"consent_create": `{"Data":{"ConsentId":"ext-1","Status":"AwaitingAuthorisation"}}`,
	}}
	f := newServiceFixture(t, gw)

	consent, err := f.service.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)
	assert.Equal(t, StatePendingAuthorization, consent.State)
	assert.Equal(t, "ext-1", consent.ExternalID)

	stored, err := f.store.FindByID(context.Background(), consent.ID)
	require.NoError(t, err)
	assert.Equal(t, StatePendingAuthorization, stored.State)

	events, err := f.auditStore.ListByConsent(context.Background(), consent.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionConsentCreated, events[0].Action)
	assert.Equal(t, audit.OutcomeSuccess, events[0].Outcome)
}

func TestCreate_InvalidRequestNeverReachesBank(t *testing.T) {
	gw := &fakeGateway{}
	f := newServiceFixture(t, gw)

	req := validCreateRequest()
	req.DebtorAccount.Identification = ""
	_, err := f.service.Create(context.Background(), req)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	assert.Empty(t, gw.calls)
}

func TestCreate_UnknownProfile(t *testing.T) {
	f := newServiceFixture(t, &fakeGateway{})

	req := validCreateRequest()
	req.ProfileID = "natwest-sandbox"
	_, err := f.service.Create(context.Background(), req)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnknownProfile))
}

func TestCreate_BankRejectionLeavesRejectedRecord(t *testing.T) {
	bankErr := &gateway.BankAPIError{HTTPStatus: 400, Code: "UK.OBIE.Field.Invalid", Message: "scheme not supported"}
	gw := &fakeGateway{errs: map[string]error{"consent_create": bankErr}}
	f := newServiceFixture(t, gw)

	_, err := f.service.Create(context.Background(), validCreateRequest())
	require.Error(t, err)
	var got *gateway.BankAPIError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, "UK.OBIE.Field.Invalid", got.Code)

	last := f.store.lastSaved(t)
	assert.Equal(t, StateRejected, last.State)
	stored, err := f.store.FindByID(context.Background(), last.ID)
	require.NoError(t, err)
	assert.Equal(t, StateRejected, stored.State)
}

func TestCreate_TransportTimeoutLeavesNoRecord(t *testing.T) {
	gw := &fakeGateway{errs: map[string]error{
		"consent_create": &gateway.TransportError{TimedOut: true, Err: errors.New("deadline exceeded")},
	}}
	f := newServiceFixture(t, gw)

	_, err := f.service.Create(context.Background(), validCreateRequest())
	require.Error(t, err)
	var transportErr *gateway.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.True(t, transportErr.TimedOut)

	created := f.store.lastSaved(t)
	_, err = f.store.FindByID(context.Background(), created.ID)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestCreate_MissingConsentIDDiscardsRecord(t *testing.T) {
	gw := &fakeGateway{responses: map[string]string{
		"consent_create": `{"Data":{"Status":"AwaitingAuthorisation"}}`,
	}}
	f := newServiceFixture(t, gw)

	_, err := f.service.Create(context.Background(), validCreateRequest())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeContractViolation))

	created := f.store.lastSaved(t)
	_, err = f.store.FindByID(context.Background(), created.ID)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestRead_LocalOnlyWhenOptedOut(t *testing.T) {
	gw := &fakeGateway{}
	f := newServiceFixture(t, gw)
	seeded := f.seed(t, StatePendingAuthorization, "ext-1")

	result, err := f.service.Read(context.Background(), seeded.ID, ReadOptions{ExcludeExternalAPIOperation: true})
	require.NoError(t, err)
	assert.False(t, result.Fresh)
	assert.Empty(t, result.Warning)
	assert.Empty(t, gw.calls)
}

func TestRead_RefreshesFromBank(t *testing.T) {
	gw := &fakeGateway{responses: map[string]string{
		"consent_read": `{"Data":{"ConsentId":"ext-1","Status":"Authorised"}}`,
	}}
	f := newServiceFixture(t, gw)
	seeded := f.seed(t, StatePendingAuthorization, "ext-1")

	result, err := f.service.Read(context.Background(), seeded.ID, ReadOptions{})
	require.NoError(t, err)
	assert.True(t, result.Fresh)
	assert.Equal(t, StateAuthorized, result.Consent.State)

	stored, err := f.store.FindByID(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, StateAuthorized, stored.State)
}

func TestRead_BankFailureReturnsStaleRecordWithWarning(t *testing.T) {
	gw := &fakeGateway{errs: map[string]error{
		"consent_read": &gateway.TransportError{Err: errors.New("connection reset")},
	}}
	f := newServiceFixture(t, gw)
	seeded := f.seed(t, StateAuthorized, "ext-1")

	result, err := f.service.Read(context.Background(), seeded.ID, ReadOptions{})
	require.NoError(t, err)
	assert.False(t, result.Fresh)
	assert.NotEmpty(t, result.Warning)
	assert.Equal(t, StateAuthorized, result.Consent.State)
}

func TestRead_UsedConsentRefreshesFromBank(t *testing.T) {
	gw := &fakeGateway{responses: map[string]string{
		"consent_read": `{"Data":{"ConsentId":"ext-1","Status":"Revoked"}}`,
	}}
	f := newServiceFixture(t, gw)
	seeded := f.seed(t, StateUsed, "ext-1")

	result, err := f.service.Read(context.Background(), seeded.ID, ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, gw.callCount("consent_read"))
	assert.True(t, result.Fresh)
	assert.Equal(t, StateRevoked, result.Consent.State)

	stored, err := f.store.FindByID(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, StateRevoked, stored.State)
}

func TestRead_TerminalStateSkipsBank(t *testing.T) {
	gw := &fakeGateway{}
	f := newServiceFixture(t, gw)
	seeded := f.seed(t, StateRejected, "ext-1")

	result, err := f.service.Read(context.Background(), seeded.ID, ReadOptions{})
	require.NoError(t, err)
	assert.False(t, result.Fresh)
	assert.Equal(t, StateRejected, result.Consent.State)
	assert.Empty(t, gw.calls)
}

func TestRead_UnknownBankStatusIgnored(t *testing.T) {
	gw := &fakeGateway{responses: map[string]string{
		"consent_read": `{"Data":{"ConsentId":"ext-1","Status":"Frobnicated"}}`,
	}}
	f := newServiceFixture(t, gw)
	seeded := f.seed(t, StatePendingAuthorization, "ext-1")

	result, err := f.service.Read(context.Background(), seeded.ID, ReadOptions{})
	require.NoError(t, err)
	assert.True(t, result.Fresh)
	assert.Equal(t, StatePendingAuthorization, result.Consent.State)
}

func TestRead_NotFound(t *testing.T) {
	f := newServiceFixture(t, &fakeGateway{})

	_, err := f.service.Read(context.Background(), id.NewConsentID(), ReadOptions{})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestReadFundsConfirmation_InvalidStates(t *testing.T) {
	gw := &fakeGateway{}
	f := newServiceFixture(t, gw)

	for _, state := range []State{StateCreated, StatePendingAuthorization, StateRevoked, StateExpired, StateRejected} {
		seeded := f.seed(t, state, "ext-1")
		_, err := f.service.ReadFundsConfirmation(context.Background(), seeded.ID, FundsConfirmationRequest{Amount: "20.00", Currency: "GBP"})
		require.Error(t, err, "%s", state)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState), "%s", state)
	}
	assert.Empty(t, gw.calls)
}

func TestReadFundsConfirmation_FirstSuccessMarksUsed(t *testing.T) {
	gw := &fakeGateway{responses: map[string]string{
		"funds_confirmation": `{"Data":{"FundsAvailableResult":{"FundsAvailable":true,"FundsAvailableDateTime":"2026-09-01T10:00:00Z"}}}`,
	}}
	f := newServiceFixture(t, gw)
	seeded := f.seed(t, StateAuthorized, "ext-1")

	result, err := f.service.ReadFundsConfirmation(context.Background(), seeded.ID, FundsConfirmationRequest{Amount: "20.00", Currency: "GBP"})
	require.NoError(t, err)
	assert.True(t, result.FundsAvailable)
	assert.Equal(t, "interaction-1", result.InteractionID)

	stored, err := f.store.FindByID(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, StateUsed, stored.State)

	// Further confirmations are allowed from used and leave the state alone.
	result, err = f.service.ReadFundsConfirmation(context.Background(), seeded.ID, FundsConfirmationRequest{Amount: "5.00", Currency: "GBP"})
	require.NoError(t, err)
	assert.True(t, result.FundsAvailable)
	stored, err = f.store.FindByID(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, StateUsed, stored.State)
	assert.Equal(t, 2, gw.callCount("funds_confirmation"))
}

func TestReadFundsConfirmation_BankFailureLeavesStateUnchanged(t *testing.T) {
	gw := &fakeGateway{errs: map[string]error{
		"funds_confirmation": &gateway.BankAPIError{HTTPStatus: 403, Code: "UK.OBIE.Resource.InvalidConsentStatus", Message: "consent not authorised"},
	}}
	f := newServiceFixture(t, gw)
	seeded := f.seed(t, StateAuthorized, "ext-1")

	_, err := f.service.ReadFundsConfirmation(context.Background(), seeded.ID, FundsConfirmationRequest{Amount: "20.00", Currency: "GBP"})
	require.Error(t, err)

	stored, err := f.store.FindByID(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, StateAuthorized, stored.State)
}

func TestCompleteAuthorization_Authorized(t *testing.T) {
	f := newServiceFixture(t, &fakeGateway{})
	seeded := f.seed(t, StatePendingAuthorization, "ext-1")

	consent, err := f.service.CompleteAuthorization(context.Background(), seeded.ID, OutcomeAuthorized)
	require.NoError(t, err)
	assert.Equal(t, StateAuthorized, consent.State)
	assert.Equal(t, "authorization-callback", consent.LastModifiedBy)
}

func TestCompleteAuthorization_Rejected(t *testing.T) {
	f := newServiceFixture(t, &fakeGateway{})
	seeded := f.seed(t, StatePendingAuthorization, "ext-1")

	consent, err := f.service.CompleteAuthorization(context.Background(), seeded.ID, OutcomeRejected)
	require.NoError(t, err)
	assert.Equal(t, StateRejected, consent.State)
}

func TestCompleteAuthorization_InvalidFromAuthorized(t *testing.T) {
	f := newServiceFixture(t, &fakeGateway{})
	seeded := f.seed(t, StateAuthorized, "ext-1")

	_, err := f.service.CompleteAuthorization(context.Background(), seeded.ID, OutcomeAuthorized)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func TestCompleteAuthorization_UnknownOutcome(t *testing.T) {
	f := newServiceFixture(t, &fakeGateway{})
	seeded := f.seed(t, StatePendingAuthorization, "ext-1")

	_, err := f.service.CompleteAuthorization(context.Background(), seeded.ID, "granted")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestDeleteLocal(t *testing.T) {
	gw := &fakeGateway{}
	f := newServiceFixture(t, gw)
	seeded := f.seed(t, StateRevoked, "ext-1")

	require.NoError(t, f.service.DeleteLocal(context.Background(), seeded.ID))
	_, err := f.store.FindByID(context.Background(), seeded.ID)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	assert.Empty(t, gw.calls)

	err = f.service.DeleteLocal(context.Background(), seeded.ID)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestConcurrentTransitionsOnOneConsentSerialize(t *testing.T) {
	gw := &fakeGateway{responses: map[string]string{
		"funds_confirmation": `{"Data":{"FundsAvailableResult":{"FundsAvailable":true,"FundsAvailableDateTime":"2026-09-01T10:00:00Z"}}}`,
	}}
	f := newServiceFixture(t, gw)
	seeded := f.seed(t, StateAuthorized, "ext-1")

	const callers = 10
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.service.ReadFundsConfirmation(context.Background(), seeded.ID, FundsConfirmationRequest{Amount: "1.00", Currency: "GBP"})
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	stored, err := f.store.FindByID(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, StateUsed, stored.State)
}
