package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"obconnect/internal/signing"
	dErrors "obconnect/pkg/domain-errors"
)

func postContext(url string) *signing.RequestContext {
	h := http.Header{}
	h.Set("Authorization", "Bearer t")
	h.Set(signing.HeaderFinancialID, "fin-1")
	return &signing.RequestContext{
		Method: http.MethodPost,
		URL:    url,
		Body:   []byte(`{"Data":{}}`),
		Header: h,
	}
}

func TestSend_SuccessDecodesAndCapturesInteractionID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer t", r.Header.Get("Authorization"))
		assert.Equal(t, "fin-1", r.Header.Get(signing.HeaderFinancialID))
		w.Header().Set(signing.HeaderInteractionID, "interaction-42")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"Data":{"ConsentId":"ext-1","Status":"AwaitingAuthorisation"}}`))
	}))
	defer srv.Close()

	var out struct {
		Data struct {
			ConsentID string `json:"ConsentId"`
			Status    string `json:"Status"`
		} `json:"Data"`
	}
	interactionID, err := New().Send(context.Background(), "consent_create", postContext(srv.URL), &out)
	require.NoError(t, err)
	assert.Equal(t, "interaction-42", interactionID)
	assert.Equal(t, "ext-1", out.Data.ConsentID)
}

func TestSend_BankErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"Code":"400","Message":"Consent invalid","Errors":[{"ErrorCode":"UK.OBIE.Field.Invalid","Message":"Amount malformed"}]}`))
	}))
	defer srv.Close()

	_, err := New().Send(context.Background(), "consent_create", postContext(srv.URL), nil)
	require.Error(t, err)

	var bankErr *BankAPIError
	require.ErrorAs(t, err, &bankErr)
	assert.Equal(t, http.StatusBadRequest, bankErr.HTTPStatus)
	assert.Equal(t, "UK.OBIE.Field.Invalid", bankErr.Code)
	assert.Equal(t, "Amount malformed", bankErr.Message)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBankAPI))
}

func TestSend_UnparseableErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`<html>502 Bad Gateway</html>`))
	}))
	defer srv.Close()

	_, err := New().Send(context.Background(), "consent_create", postContext(srv.URL), nil)
	require.Error(t, err)

	var unexpected *UnexpectedResponseError
	require.ErrorAs(t, err, &unexpected)
	assert.Equal(t, http.StatusBadGateway, unexpected.HTTPStatus)
}

func TestSend_ContractViolationOnUndecodableSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json at all`))
	}))
	defer srv.Close()

	var out map[string]any
	_, err := New().Send(context.Background(), "consent_read", postContext(srv.URL), &out)
	require.Error(t, err)

	var violation *ContractViolationError
	require.ErrorAs(t, err, &violation)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeContractViolation))
}

func TestSend_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := New(WithHTTPClient(&http.Client{Timeout: 20 * time.Millisecond}))
	_, err := client.Send(context.Background(), "consent_create", postContext(srv.URL), nil)
	require.Error(t, err)

	var transport *TransportError
	require.ErrorAs(t, err, &transport)
	assert.True(t, transport.TimedOut)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTransport))
}

func TestSend_ContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := New().Send(ctx, "consent_create", postContext(srv.URL), nil)
	require.Error(t, err)

	var transport *TransportError
	require.ErrorAs(t, err, &transport)
	assert.True(t, transport.TimedOut)
}

func TestSend_ConnectionRefused(t *testing.T) {
	_, err := New().Send(context.Background(), "consent_create",
		postContext("http://127.0.0.1:1/nothing"), nil)
	require.Error(t, err)

	var transport *TransportError
	require.ErrorAs(t, err, &transport)
	assert.False(t, transport.TimedOut)
	assert.NotNil(t, errors.Unwrap(transport))
}
