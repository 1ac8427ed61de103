package registration

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"

	"obconnect/internal/audit"
	"obconnect/internal/bankprofile"
	"obconnect/internal/signing"
	"obconnect/internal/software"
	id "obconnect/pkg/domain"
	dErrors "obconnect/pkg/domain-errors"
)

var registrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "obconnect_registrations_total",
	Help: "Dynamic client registrations performed against banks",
}, []string{"group"})

// Gateway is the slice of the external API gateway the manager needs.
type Gateway interface {
	Send(ctx context.Context, operation string, rc *signing.RequestContext, out any) (string, error)
}

// Manager ensures exactly one registration exists per registration group and
// hands out cached access credentials for it.
type Manager struct {
	registry  *bankprofile.Registry
	store     Store
	tokens    TokenCache
	gateway   Gateway
	statement software.Statement
	audit     *audit.Publisher
	logger    *slog.Logger

	// One in-flight registration (and token fetch) per group: concurrent
	// callers await the single network call instead of issuing duplicates,
	// which most banks reject or turn into orphaned clients.
	regFlight   singleflight.Group
	tokenFlight singleflight.Group
}

func NewManager(registry *bankprofile.Registry, store Store, tokens TokenCache, gw Gateway, statement software.Statement, auditPub *audit.Publisher, logger *slog.Logger) *Manager {
	return &Manager{
		registry:  registry,
		store:     store,
		tokens:    tokens,
		gateway:   gw,
		statement: statement,
		audit:     auditPub,
		logger:    logger,
	}
}

type registrationRequest struct {
	RedirectURIs            []string `json:"redirect_uris"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	GrantTypes              []string `json:"grant_types"`
	Scope                   string   `json:"scope"`
	SoftwareID              string   `json:"software_id"`
	OrganisationID          string   `json:"org_id"`
}

type registrationResponse struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Ensure returns the registration for the profile's registration group,
// performing dynamic registration against the bank on first use. Idempotent;
// concurrent callers for the same group share one network call.
func (m *Manager) Ensure(ctx context.Context, profile bankprofile.BankProfile) (*Registration, error) {
	group := m.registry.RegistrationGroupFor(profile, profile.RegistrationScope)

	v, err, _ := m.regFlight.Do(string(group), func() (any, error) {
		existing, err := m.store.FindByGroup(ctx, group)
		if err == nil {
			return existing, nil
		}
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, err
		}
		return m.register(ctx, profile, group)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Registration), nil
}

func (m *Manager) register(ctx context.Context, profile bankprofile.BankProfile, group bankprofile.RegistrationGroup) (*Registration, error) {
	req := registrationRequest{
		RedirectURIs:            []string{m.statement.QueryRedirectURL, m.statement.FragmentRedirectURL},
		TokenEndpointAuthMethod: "client_secret_basic",
		GrantTypes:              []string{"client_credentials", "authorization_code"},
		Scope:                   scopeValue(profile.RegistrationScope),
		SoftwareID:              m.statement.SoftwareID,
		OrganisationID:          m.statement.OrganisationID,
	}
	rc, err := jsonRequest(http.MethodPost, profile.Endpoints.Registration, req)
	if err != nil {
		return nil, err
	}

	var resp registrationResponse
	if _, err := m.gateway.Send(ctx, "registration_create", rc, &resp); err != nil {
		m.emitAudit(ctx, profile, audit.OutcomeFailure, err.Error())
		return nil, dErrors.Wrap(err, dErrors.CodeOf(err),
			fmt.Sprintf("dynamic registration against %s failed", profile.ID))
	}
	if resp.ClientID == "" {
		return nil, dErrors.New(dErrors.CodeContractViolation, "registration response missing client_id")
	}

	now := time.Now()
	reg := &Registration{
		ID:           id.NewRegistrationID(),
		ProfileID:    profile.ID,
		Group:        group,
		Scope:        profile.RegistrationScope,
		ClientID:     resp.ClientID,
		ClientSecret: resp.ClientSecret,
		ExternalID:   resp.ClientID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := m.store.Save(ctx, reg); err != nil {
		return nil, err
	}

	registrationsTotal.WithLabelValues(string(group)).Inc()
	m.emitAudit(ctx, profile, audit.OutcomeSuccess, "group "+string(group))
	m.logger.InfoContext(ctx, "registered client with bank",
		"profile", profile.ID,
		"group", group,
		"client_id", resp.ClientID,
	)
	return reg, nil
}

// emitAudit records the registration attempt. Registrations are not tied to
// a consent, so the event carries only the profile.
func (m *Manager) emitAudit(ctx context.Context, profile bankprofile.BankProfile, outcome, detail string) {
	if m.audit == nil {
		return
	}
	err := m.audit.Emit(ctx, audit.Event{
		ProfileID: string(profile.ID),
		Action:    audit.ActionClientRegistration,
		Outcome:   outcome,
		Detail:    detail,
	})
	if err != nil {
		m.logger.WarnContext(ctx, "audit emit failed", "profile", profile.ID, "error", err)
	}
}

// AccessToken returns a valid access credential for the registration,
// fetching via the client-credentials grant and caching until expiry.
//
// The registration must belong to the profile's registration group;
// cross-group reuse is a programming error, not a recoverable condition.
func (m *Manager) AccessToken(ctx context.Context, profile bankprofile.BankProfile, reg *Registration) (string, error) {
	if group := m.registry.RegistrationGroupFor(profile, reg.Scope); group != reg.Group {
		panic(fmt.Sprintf("registration for group %q used with profile %q (group %q)", reg.Group, profile.ID, group))
	}

	if token, err := m.tokens.Get(ctx, reg.Group); err == nil {
		return token, nil
	} else if !dErrors.HasCode(err, dErrors.CodeNotFound) {
		return "", err
	}

	v, err, _ := m.tokenFlight.Do(string(reg.Group), func() (any, error) {
		return m.fetchToken(ctx, profile, reg)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (m *Manager) fetchToken(ctx context.Context, profile bankprofile.BankProfile, reg *Registration) (string, error) {
	form := url.Values{
		"grant_type": {"client_credentials"},
		"scope":      {scopeValue(reg.Scope)},
	}
	h := http.Header{}
	h.Set("Content-Type", "application/x-www-form-urlencoded")
	h.Set("Authorization", "Basic "+
		base64.StdEncoding.EncodeToString([]byte(reg.ClientID+":"+reg.ClientSecret)))
	rc := &signing.RequestContext{
		Method: http.MethodPost,
		URL:    profile.Endpoints.Token,
		Body:   []byte(form.Encode()),
		Header: h,
	}

	var resp tokenResponse
	if _, err := m.gateway.Send(ctx, "token_fetch", rc, &resp); err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", dErrors.New(dErrors.CodeContractViolation, "token response missing access_token")
	}

	ttl := time.Duration(resp.ExpiresIn) * time.Second
	if margin := 30 * time.Second; ttl > margin {
		ttl -= margin
	}
	// A missing or zero expires_in would cache the token with no expiry.
	// Serve it uncached instead; the next call fetches a fresh one.
	if ttl <= 0 {
		return resp.AccessToken, nil
	}
	if err := m.tokens.Set(ctx, reg.Group, resp.AccessToken, ttl); err != nil {
		// A cold cache only costs an extra token fetch.
		m.logger.WarnContext(ctx, "token cache write failed", "group", reg.Group, "error", err)
	}
	return resp.AccessToken, nil
}

func scopeValue(scope bankprofile.RegistrationScope) string {
	switch scope {
	case bankprofile.ScopeAccountAccess:
		return "openid accounts"
	case bankprofile.ScopePaymentInitiation:
		return "openid payments"
	default:
		return "openid payments accounts fundsconfirmations"
	}
}

func jsonRequest(method, u string, payload any) (*signing.RequestContext, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeEncoding, "marshal registration payload")
	}
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	return &signing.RequestContext{Method: method, URL: u, Body: body, Header: h}, nil
}
