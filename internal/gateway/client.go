// Package gateway sends signed requests to bank APIs and classifies what
// comes back. It is the only component that touches the network; everything
// above it deals in RequestContexts and typed errors.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"obconnect/internal/signing"
	dErrors "obconnect/pkg/domain-errors"
)

// Client executes assembled requests over HTTPS.
type Client struct {
	http   *http.Client
	logger *slog.Logger
	tracer trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client (mTLS transport,
// custom timeouts, test fakes).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger for contract-violation and transport logging.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func New(opts ...Option) *Client {
	c := &Client{
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: slog.New(slog.DiscardHandler),
		tracer: otel.Tracer("obconnect/gateway"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// bankErrorBody is the OBIE error envelope banks return on rejection.
type bankErrorBody struct {
	Code    string `json:"Code"`
	ID      string `json:"Id"`
	Message string `json:"Message"`
	Errors  []struct {
		ErrorCode string `json:"ErrorCode"`
		Message   string `json:"Message"`
		Path      string `json:"Path"`
	} `json:"Errors"`
}

// Send executes the request and decodes a 2xx JSON body into out (skipped
// when out is nil). Returns the bank's interaction ID when one was received;
// it is diagnostic only and may be empty.
//
// Failure classification:
//   - transport/DNS/TLS/timeout: *TransportError (TimedOut set on deadline)
//   - non-2xx, parseable bank error body: *BankAPIError
//   - non-2xx, unparseable body: *UnexpectedResponseError
//   - 2xx, body fails to decode into out: *ContractViolationError
//
// No classification is retried here; retry policy belongs to callers.
func (c *Client) Send(ctx context.Context, operation string, rc *signing.RequestContext, out any) (string, error) {
	ctx, span := c.tracer.Start(ctx, "gateway.send", trace.WithAttributes(
		attribute.String("obconnect.operation", operation),
		attribute.String("http.request.method", rc.Method),
		attribute.String("url.full", rc.URL),
	))
	defer span.End()

	start := time.Now()
	interactionID, err := c.send(ctx, rc, out)
	sendDurationSeconds.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	sendTotal.WithLabelValues(operation, outcomeLabel(err)).Inc()

	if interactionID != "" {
		span.SetAttributes(attribute.String("fapi.interaction_id", interactionID))
	}
	if err != nil {
		span.RecordError(err)
	}
	return interactionID, err
}

func (c *Client) send(ctx context.Context, rc *signing.RequestContext, out any) (string, error) {
	var body io.Reader
	if rc.Body != nil {
		body = bytes.NewReader(rc.Body)
	}
	req, err := http.NewRequestWithContext(ctx, rc.Method, rc.URL, body)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "build http request")
	}
	req.Header = rc.Header.Clone()

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &TransportError{TimedOut: isTimeout(err), Err: err}
	}
	defer resp.Body.Close()

	interactionID := resp.Header.Get(signing.HeaderInteractionID)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return interactionID, &TransportError{TimedOut: isTimeout(err), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var bankErr bankErrorBody
		if unmarshalErr := json.Unmarshal(respBody, &bankErr); unmarshalErr == nil && bankErr.hasDetail() {
			return interactionID, &BankAPIError{
				HTTPStatus: resp.StatusCode,
				Code:       bankErr.code(),
				Message:    bankErr.message(),
				Body:       respBody,
			}
		}
		return interactionID, &UnexpectedResponseError{HTTPStatus: resp.StatusCode, Body: respBody}
	}

	if out != nil {
		if unmarshalErr := json.Unmarshal(respBody, out); unmarshalErr != nil {
			c.logger.ErrorContext(ctx, "bank response contract violation",
				"method", rc.Method,
				"url", rc.URL,
				"interaction_id", interactionID,
				"error", unmarshalErr,
			)
			return interactionID, &ContractViolationError{Err: unmarshalErr, Body: respBody}
		}
	}
	return interactionID, nil
}

func (b bankErrorBody) hasDetail() bool {
	return b.Code != "" || b.Message != "" || len(b.Errors) > 0
}

func (b bankErrorBody) code() string {
	if len(b.Errors) > 0 && b.Errors[0].ErrorCode != "" {
		return b.Errors[0].ErrorCode
	}
	return b.Code
}

func (b bankErrorBody) message() string {
	if len(b.Errors) > 0 && b.Errors[0].Message != "" {
		return b.Errors[0].Message
	}
	return b.Message
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case dErrors.HasCode(err, dErrors.CodeTransport):
		return "transport_error"
	case dErrors.HasCode(err, dErrors.CodeBankAPI):
		return "bank_error"
	case dErrors.HasCode(err, dErrors.CodeContractViolation):
		return "contract_violation"
	default:
		return "error"
	}
}
