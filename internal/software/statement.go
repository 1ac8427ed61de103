// Package software holds the software statement: the connector's own
// directory identity used in JOSE headers and dynamic registrations.
package software

import (
	"strings"

	"github.com/asaskevich/govalidator"

	dErrors "obconnect/pkg/domain-errors"
)

// Statement is immutable after a successful Load.
type Statement struct {
	OrganisationID      string
	SoftwareID          string
	CertificateIDs      []string
	QueryRedirectURL    string
	FragmentRedirectURL string
}

// Load validates and freezes a software statement. Identifiers must be
// non-whitespace, at least one certificate ID is required, and redirect URLs
// must be well-formed.
func Load(s Statement) (Statement, error) {
	if strings.TrimSpace(s.OrganisationID) == "" {
		return Statement{}, dErrors.New(dErrors.CodeInvalidInput, "organisation id must not be blank")
	}
	if strings.TrimSpace(s.SoftwareID) == "" {
		return Statement{}, dErrors.New(dErrors.CodeInvalidInput, "software id must not be blank")
	}
	if len(s.CertificateIDs) == 0 {
		return Statement{}, dErrors.New(dErrors.CodeInvalidInput, "at least one certificate id is required")
	}
	for _, certID := range s.CertificateIDs {
		if strings.TrimSpace(certID) == "" {
			return Statement{}, dErrors.New(dErrors.CodeInvalidInput, "certificate ids must not be blank")
		}
	}
	if !govalidator.IsURL(s.QueryRedirectURL) {
		return Statement{}, dErrors.New(dErrors.CodeInvalidInput, "query redirect URL is not a valid URL")
	}
	if !govalidator.IsURL(s.FragmentRedirectURL) {
		return Statement{}, dErrors.New(dErrors.CodeInvalidInput, "fragment redirect URL is not a valid URL")
	}
	return s, nil
}

// Issuer returns the JOSE issuer claim value, "<orgId>/<softwareId>".
func (s Statement) Issuer() string {
	return s.OrganisationID + "/" + s.SoftwareID
}
