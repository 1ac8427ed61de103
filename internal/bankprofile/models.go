// Package bankprofile resolves logical bank profiles to the behavior the
// signed-request pipeline needs: bank group, group-specific variant,
// registration scope, and endpoints.
//
// Per-bank behavioral divergence is confined to the RegistrationGroupResolver
// strategies in groups.go; every other component stays bank-agnostic.
package bankprofile

// ProfileID is the logical identifier callers use to select a bank.
type ProfileID string

const (
	ProfileBarclaysSandbox   ProfileID = "barclays-sandbox"
	ProfileBarclaysPersonal  ProfileID = "barclays-personal"
	ProfileBarclaysWealth    ProfileID = "barclays-wealth"
	ProfileBarclaysBusiness  ProfileID = "barclays-business"
	ProfileBarclaysCorporate ProfileID = "barclays-corporate"

	ProfileHsbcSandbox     ProfileID = "hsbc-sandbox"
	ProfileHsbcUkPersonal  ProfileID = "hsbc-uk-personal"
	ProfileHsbcUkBusiness  ProfileID = "hsbc-uk-business"
	ProfileHsbcUkKinetic   ProfileID = "hsbc-uk-kinetic"
	ProfileHsbcFirstDirect ProfileID = "hsbc-first-direct"

	ProfileLloydsSandbox  ProfileID = "lloyds-sandbox"
	ProfileLloydsPersonal ProfileID = "lloyds-personal"
	ProfileLloydsBusiness ProfileID = "lloyds-business"

	ProfileMonzoSandbox ProfileID = "monzo-sandbox"
	ProfileMonzo        ProfileID = "monzo"
)

// BankGroup identifies the operating group a profile belongs to.
type BankGroup string

const (
	GroupBarclays BankGroup = "barclays"
	GroupHsbc     BankGroup = "hsbc"
	GroupLloyds   BankGroup = "lloyds"
	GroupMonzo    BankGroup = "monzo"
)

// Variant is the bank-group-specific brand or environment of a profile.
type Variant string

// RegistrationScope is the functional scope requested at registration time.
type RegistrationScope string

const (
	ScopeAccountAccess     RegistrationScope = "account-access"
	ScopePaymentInitiation RegistrationScope = "payment-initiation"
	ScopeAll               RegistrationScope = "all"
)

// RegistrationGroup partitions bank environments requiring independent
// dynamic client registrations. Values are namespaced by bank group so
// groups from different banks can never collide.
type RegistrationGroup string

// Endpoints are the bank-side URLs the connector calls for a profile.
type Endpoints struct {
	PaymentInitiationBase string
	Token                 string
	Registration          string
}

// BankProfile is immutable after registry construction.
type BankProfile struct {
	ID                ProfileID
	Group             BankGroup
	Variant           Variant
	RegistrationScope RegistrationScope
	// FinancialID is the bank's organisation identifier sent as
	// x-fapi-financial-id on every signed request.
	FinancialID string
	Endpoints   Endpoints
	// UseB64 enables the legacy b64 payload-encoding negotiation required
	// by profile versions before PISP v3.1.4.
	UseB64 bool
}
