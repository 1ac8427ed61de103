package bankprofile

import (
	dErrors "obconnect/pkg/domain-errors"
)

// Registry resolves profile IDs to immutable bank profiles. Both maps are
// built once at construction and never mutated afterwards, so concurrent
// reads need no synchronization.
type Registry struct {
	profiles  map[ProfileID]BankProfile
	resolvers map[BankGroup]RegistrationGroupResolver
}

func NewRegistry() *Registry {
	r := &Registry{
		profiles: make(map[ProfileID]BankProfile),
		resolvers: map[BankGroup]RegistrationGroupResolver{
			GroupBarclays: barclaysResolver{},
			GroupHsbc:     hsbcResolver{},
			GroupLloyds:   lloydsResolver{},
			GroupMonzo:    monzoResolver{},
		},
	}
	for _, p := range profileTable {
		r.profiles[p.ID] = p
	}
	return r
}

// Resolve returns the profile for the given ID.
func (r *Registry) Resolve(id ProfileID) (BankProfile, error) {
	p, ok := r.profiles[id]
	if !ok {
		return BankProfile{}, dErrors.New(dErrors.CodeUnknownProfile, "unknown bank profile: "+string(id))
	}
	return p, nil
}

// RegistrationGroupFor returns the registration group for a profile and
// requested scope. Pure function of (bank group, variant, scope).
func (r *Registry) RegistrationGroupFor(p BankProfile, scope RegistrationScope) RegistrationGroup {
	resolver := r.resolvers[p.Group]
	return RegistrationGroup(string(p.Group) + ":" + resolver.GroupFor(p.Variant, scope))
}

// Profiles returns all registered profiles.
func (r *Registry) Profiles() []BankProfile {
	out := make([]BankProfile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, p)
	}
	return out
}

// profileTable is the static profile mapping. FinancialIDs are the banks'
// directory organisation identifiers.
var profileTable = []BankProfile{
	{
		ID: ProfileBarclaysSandbox, Group: GroupBarclays, Variant: "sandbox",
		RegistrationScope: ScopePaymentInitiation,
		FinancialID:       "0015800000jfwxXAAQ",
		Endpoints: Endpoints{
			PaymentInitiationBase: "https://sandbox.api.barclays/open-banking/v3.1/pisp",
			Token:                 "https://token.sandbox.barclays.com/oauth/token",
			Registration:          "https://token.sandbox.barclays.com/register",
		},
	},
	{
		ID: ProfileBarclaysPersonal, Group: GroupBarclays, Variant: "personal",
		RegistrationScope: ScopePaymentInitiation,
		FinancialID:       "0015800000jfwxXAAQ",
		Endpoints: Endpoints{
			PaymentInitiationBase: "https://telesto.api.barclays/open-banking/v3.1/pisp",
			Token:                 "https://token.barclays.com/oauth/token",
			Registration:          "https://token.barclays.com/register",
		},
	},
	{
		ID: ProfileBarclaysWealth, Group: GroupBarclays, Variant: "wealth",
		RegistrationScope: ScopePaymentInitiation,
		FinancialID:       "0015800000jfwxXAAQ",
		Endpoints: Endpoints{
			PaymentInitiationBase: "https://telesto.api.barclays/open-banking/v3.1/pisp",
			Token:                 "https://token.barclays.com/oauth/token",
			Registration:          "https://token.barclays.com/register",
		},
	},
	{
		ID: ProfileBarclaysBusiness, Group: GroupBarclays, Variant: "business",
		RegistrationScope: ScopePaymentInitiation,
		FinancialID:       "0015800000jfwxXAAQ",
		Endpoints: Endpoints{
			PaymentInitiationBase: "https://telesto.api.barclays/open-banking/v3.1/pisp",
			Token:                 "https://token.barclays.com/oauth/token",
			Registration:          "https://token.barclays.com/register",
		},
	},
	{
		ID: ProfileBarclaysCorporate, Group: GroupBarclays, Variant: "corporate",
		RegistrationScope: ScopePaymentInitiation,
		FinancialID:       "0015800000jfwxXAAQ",
		Endpoints: Endpoints{
			PaymentInitiationBase: "https://telesto.api.barclays/open-banking/v3.1/pisp",
			Token:                 "https://token.barclays.com/oauth/token",
			Registration:          "https://token.barclays.com/register",
		},
	},
	{
		ID: ProfileHsbcSandbox, Group: GroupHsbc, Variant: "sandbox",
		RegistrationScope: ScopePaymentInitiation,
		FinancialID:       "0015800000jfAW1AAM",
		// The HSBC sandbox still negotiates payload encoding (pre-v3.1.4).
		UseB64: true,
		Endpoints: Endpoints{
			PaymentInitiationBase: "https://sandbox.hsbc.com/psd2/obie/v3.1/pisp",
			Token:                 "https://sandbox.hsbc.com/psd2/obie/v3.1/as/token.oauth2",
			Registration:          "https://sandbox.hsbc.com/psd2/obie/v3.1/register",
		},
	},
	{
		ID: ProfileHsbcUkPersonal, Group: GroupHsbc, Variant: "uk-personal",
		RegistrationScope: ScopePaymentInitiation,
		FinancialID:       "0015800000jfAW1AAM",
		Endpoints: Endpoints{
			PaymentInitiationBase: "https://api.ob.hsbc.co.uk/obie/open-banking/v3.1/pisp",
			Token:                 "https://api.ob.hsbc.co.uk/obie/open-banking/v3.1/as/token.oauth2",
			Registration:          "https://api.ob.hsbc.co.uk/obie/open-banking/v3.1/register",
		},
	},
	{
		ID: ProfileHsbcUkBusiness, Group: GroupHsbc, Variant: "uk-business",
		RegistrationScope: ScopePaymentInitiation,
		FinancialID:       "0015800000jfAW1AAM",
		Endpoints: Endpoints{
			PaymentInitiationBase: "https://api.ob.business.hsbc.co.uk/obie/open-banking/v3.1/pisp",
			Token:                 "https://api.ob.business.hsbc.co.uk/obie/open-banking/v3.1/as/token.oauth2",
			Registration:          "https://api.ob.business.hsbc.co.uk/obie/open-banking/v3.1/register",
		},
	},
	{
		ID: ProfileHsbcUkKinetic, Group: GroupHsbc, Variant: "uk-kinetic",
		RegistrationScope: ScopePaymentInitiation,
		FinancialID:       "0015800000jfAW1AAM",
		Endpoints: Endpoints{
			PaymentInitiationBase: "https://api.ob.hsbckinetic.co.uk/obie/open-banking/v3.1/pisp",
			Token:                 "https://api.ob.hsbckinetic.co.uk/obie/open-banking/v3.1/as/token.oauth2",
			Registration:          "https://api.ob.hsbckinetic.co.uk/obie/open-banking/v3.1/register",
		},
	},
	{
		ID: ProfileHsbcFirstDirect, Group: GroupHsbc, Variant: "first-direct",
		RegistrationScope: ScopePaymentInitiation,
		FinancialID:       "0015800000jfAW1AAM",
		Endpoints: Endpoints{
			PaymentInitiationBase: "https://api.ob.firstdirect.com/obie/open-banking/v3.1/pisp",
			Token:                 "https://api.ob.firstdirect.com/obie/open-banking/v3.1/as/token.oauth2",
			Registration:          "https://api.ob.firstdirect.com/obie/open-banking/v3.1/register",
		},
	},
	{
		ID: ProfileLloydsSandbox, Group: GroupLloyds, Variant: "sandbox",
		RegistrationScope: ScopePaymentInitiation,
		FinancialID:       "0015800000jf9GgAAI",
		Endpoints: Endpoints{
			PaymentInitiationBase: "https://matls.rs.aspsp.sandbox.lloydsbanking.com/open-banking/v3.1/pisp",
			Token:                 "https://matls.as.aspsp.sandbox.lloydsbanking.com/oauth2/token",
			Registration:          "https://matls.as.aspsp.sandbox.lloydsbanking.com/register",
		},
	},
	{
		ID: ProfileLloydsPersonal, Group: GroupLloyds, Variant: "personal",
		RegistrationScope: ScopePaymentInitiation,
		FinancialID:       "0015800000jf9GgAAI",
		Endpoints: Endpoints{
			PaymentInitiationBase: "https://secure-api.lloydsbank.com/prod01/lbg/lyds/open-banking/v3.1/pisp",
			Token:                 "https://authorise-api.lloydsbank.co.uk/prod01/lbg/lyds/mtls-token-api/v1/token",
			Registration:          "https://authorise-api.lloydsbank.co.uk/prod01/lbg/lyds/register",
		},
	},
	{
		ID: ProfileLloydsBusiness, Group: GroupLloyds, Variant: "business",
		RegistrationScope: ScopePaymentInitiation,
		FinancialID:       "0015800000jf9GgAAI",
		Endpoints: Endpoints{
			PaymentInitiationBase: "https://secure-api.lloydsbank.com/prod01/lbg/lyds/open-banking/v3.1/pisp",
			Token:                 "https://authorise-api.lloydsbank.co.uk/prod01/lbg/lyds/mtls-token-api/v1/token",
			Registration:          "https://authorise-api.lloydsbank.co.uk/prod01/lbg/lyds/register",
		},
	},
	{
		ID: ProfileMonzoSandbox, Group: GroupMonzo, Variant: "sandbox",
		RegistrationScope: ScopePaymentInitiation,
		FinancialID:       "001580000103U9RAAU",
		Endpoints: Endpoints{
			PaymentInitiationBase: "https://openbanking.s101.nonprod-ffs.io/open-banking/v3.1/pisp",
			Token:                 "https://api.s101.nonprod-ffs.io/open-banking/token",
			Registration:          "https://api.s101.nonprod-ffs.io/open-banking/register",
		},
	},
	{
		ID: ProfileMonzo, Group: GroupMonzo, Variant: "production",
		RegistrationScope: ScopePaymentInitiation,
		FinancialID:       "001580000103U9RAAU",
		Endpoints: Endpoints{
			PaymentInitiationBase: "https://openbanking.monzo.com/open-banking/v3.1/pisp",
			Token:                 "https://api.monzo.com/open-banking/token",
			Registration:          "https://api.monzo.com/open-banking/register",
		},
	},
}
