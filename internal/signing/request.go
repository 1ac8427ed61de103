package signing

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"obconnect/internal/bankprofile"
	dErrors "obconnect/pkg/domain-errors"
)

// Wire header names of the financial-grade profile.
const (
	HeaderFinancialID       = "x-fapi-financial-id"
	HeaderIdempotencyKey    = "x-idempotency-key"
	HeaderJWSSignature      = "x-jws-signature"
	HeaderInteractionID     = "x-fapi-interaction-id"
	HeaderCustomerIPAddress = "x-fapi-customer-ip-address"
)

// RequestContext is an assembled outbound request. It is ephemeral:
// constructed per call, handed to the gateway, and discarded.
type RequestContext struct {
	Method string
	URL    string
	Body   []byte
	Header http.Header
}

// Builder assembles signed requests for one bank profile.
type Builder struct {
	signer      *Signer
	financialID string
	useB64      bool
}

func NewBuilder(signer *Signer, profile bankprofile.BankProfile) *Builder {
	return &Builder{
		signer:      signer,
		financialID: profile.FinancialID,
		useB64:      profile.UseB64,
	}
}

// Post builds a signed POST. The payload is serialized with null fields
// omitted (DTOs carry omitempty tags), signed, and the detached signature
// attached. The idempotency key is minted fresh on every call and never
// reused, so a retry of the same logical request is a new call from the
// bank's point of view.
//
// Caller extras are appended after the fixed headers; a name collision sends
// both values rather than deduplicating, matching bank expectations.
func (b *Builder) Post(url string, payload any, accessToken string, extra http.Header) (*RequestContext, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeEncoding, "marshal request payload")
	}

	jws, err := b.signer.DetachedJWS(body, b.useB64)
	if err != nil {
		return nil, err
	}

	h := http.Header{}
	h.Set(HeaderFinancialID, b.financialID)
	h.Set("Authorization", "Bearer "+accessToken)
	h.Set(HeaderIdempotencyKey, uuid.NewString())
	h.Set(HeaderJWSSignature, jws)
	h.Set("Content-Type", contentType)
	appendExtra(h, extra)

	return &RequestContext{Method: http.MethodPost, URL: url, Body: body, Header: h}, nil
}

// Get builds a bank read. Reads carry no body, so no signature and no
// idempotency key.
func (b *Builder) Get(url string, accessToken string, extra http.Header) *RequestContext {
	h := http.Header{}
	h.Set(HeaderFinancialID, b.financialID)
	h.Set("Authorization", "Bearer "+accessToken)
	appendExtra(h, extra)

	return &RequestContext{Method: http.MethodGet, URL: url, Header: h}
}

func appendExtra(h, extra http.Header) {
	for name, values := range extra {
		for _, v := range values {
			h.Add(name, v)
		}
	}
}
