package signing

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"obconnect/internal/bankprofile"
	dErrors "obconnect/pkg/domain-errors"
)

func testBuilder(t *testing.T) *Builder {
	t.Helper()
	signer, _ := testSigner(t)
	return NewBuilder(signer, bankprofile.BankProfile{
		ID:          bankprofile.ProfileBarclaysSandbox,
		FinancialID: "0015800000jfwxXAAQ",
	})
}

type payment struct {
	Amount   string `json:"amount"`
	Optional string `json:"optional,omitempty"`
}

func TestPost_FixedHeaders(t *testing.T) {
	b := testBuilder(t)

	rc, err := b.Post("https://bank.example/pisp/domestic-payment-consents",
		payment{Amount: "10.00"}, "token-abc", nil)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, rc.Method)
	assert.Equal(t, "0015800000jfwxXAAQ", rc.Header.Get(HeaderFinancialID))
	assert.Equal(t, "Bearer token-abc", rc.Header.Get("Authorization"))
	assert.NotEmpty(t, rc.Header.Get(HeaderIdempotencyKey))
	assert.NotEmpty(t, rc.Header.Get(HeaderJWSSignature))
	assert.Equal(t, "application/json", rc.Header.Get("Content-Type"))
}

func TestPost_OmitsNullFields(t *testing.T) {
	b := testBuilder(t)

	rc, err := b.Post("https://bank.example/x", payment{Amount: "10.00"}, "t", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"10.00"}`, string(rc.Body))
}

// Two builds from identical inputs must mint different idempotency keys.
func TestPost_IdempotencyKeyIsFreshPerCall(t *testing.T) {
	b := testBuilder(t)

	first, err := b.Post("https://bank.example/x", payment{Amount: "10.00"}, "t", nil)
	require.NoError(t, err)
	second, err := b.Post("https://bank.example/x", payment{Amount: "10.00"}, "t", nil)
	require.NoError(t, err)

	assert.NotEqual(t,
		first.Header.Get(HeaderIdempotencyKey),
		second.Header.Get(HeaderIdempotencyKey))
}

func TestPost_ExtraHeadersAppendedNotDeduped(t *testing.T) {
	b := testBuilder(t)

	extra := http.Header{}
	extra.Set(HeaderCustomerIPAddress, "203.0.113.7")
	extra.Set(HeaderFinancialID, "caller-override-attempt")

	rc, err := b.Post("https://bank.example/x", payment{Amount: "10.00"}, "t", extra)
	require.NoError(t, err)

	assert.Equal(t, "203.0.113.7", rc.Header.Get(HeaderCustomerIPAddress))
	// Collisions send both values; the fixed header stays first.
	values := rc.Header.Values(HeaderFinancialID)
	assert.Equal(t, []string{"0015800000jfwxXAAQ", "caller-override-attempt"}, values)
}

func TestPost_UnserializablePayload(t *testing.T) {
	b := testBuilder(t)

	_, err := b.Post("https://bank.example/x", func() {}, "t", nil)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeEncoding))
}

func TestGet_NoBodyNoSignatureNoIdempotencyKey(t *testing.T) {
	b := testBuilder(t)

	rc := b.Get("https://bank.example/x/123", "token-abc", nil)

	assert.Equal(t, http.MethodGet, rc.Method)
	assert.Nil(t, rc.Body)
	assert.Equal(t, "Bearer token-abc", rc.Header.Get("Authorization"))
	assert.Equal(t, "0015800000jfwxXAAQ", rc.Header.Get(HeaderFinancialID))
	assert.Empty(t, rc.Header.Get(HeaderJWSSignature))
	assert.Empty(t, rc.Header.Get(HeaderIdempotencyKey))
}
