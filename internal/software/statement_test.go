package software

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "obconnect/pkg/domain-errors"
)

func validStatement() Statement {
	return Statement{
		OrganisationID:      "0015800001041RbAAI",
		SoftwareID:          "9mg0gpXm6LB6mOtzL21A7b",
		CertificateIDs:      []string{"seal-1", "wac-1"},
		QueryRedirectURL:    "https://connector.example.com/callback/query",
		FragmentRedirectURL: "https://connector.example.com/callback/fragment",
	}
}

func TestLoad_Valid(t *testing.T) {
	s, err := Load(validStatement())
	require.NoError(t, err)
	assert.Equal(t, "0015800001041RbAAI/9mg0gpXm6LB6mOtzL21A7b", s.Issuer())
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Statement)
	}{
		{"blank organisation id", func(s *Statement) { s.OrganisationID = "   " }},
		{"blank software id", func(s *Statement) { s.SoftwareID = "" }},
		{"no certificate ids", func(s *Statement) { s.CertificateIDs = nil }},
		{"blank certificate id", func(s *Statement) { s.CertificateIDs = []string{"seal-1", " "} }},
		{"malformed query redirect", func(s *Statement) { s.QueryRedirectURL = "::not-a-url" }},
		{"malformed fragment redirect", func(s *Statement) { s.FragmentRedirectURL = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := validStatement()
			tc.mutate(&s)
			_, err := Load(s)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		})
	}
}
