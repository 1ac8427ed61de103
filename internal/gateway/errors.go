package gateway

import (
	"fmt"

	dErrors "obconnect/pkg/domain-errors"
)

// TransportError covers failures before an HTTP response was read: DNS, TLS,
// connection resets, timeouts. Retryable by caller policy; the gateway never
// retries internally because idempotency keys are minted fresh per call.
type TransportError struct {
	TimedOut bool
	Err      error
}

func (e *TransportError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("transport failure (timed out): %v", e.Err)
	}
	return fmt.Sprintf("transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error            { return e.Err }
func (e *TransportError) DomainCode() dErrors.Code { return dErrors.CodeTransport }

// BankAPIError is a non-2xx response with a parseable bank error body. Not
// retried: the bank made a decision.
type BankAPIError struct {
	HTTPStatus int
	Code       string
	Message    string
	Body       []byte
}

func (e *BankAPIError) Error() string {
	return fmt.Sprintf("bank rejected request (HTTP %d, code %q): %s", e.HTTPStatus, e.Code, e.Message)
}

func (e *BankAPIError) DomainCode() dErrors.Code { return dErrors.CodeBankAPI }

// UnexpectedResponseError is a non-2xx response whose body could not be
// parsed as a bank error. Not retried.
type UnexpectedResponseError struct {
	HTTPStatus int
	Body       []byte
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("unexpected response (HTTP %d) with unparseable body", e.HTTPStatus)
}

func (e *UnexpectedResponseError) DomainCode() dErrors.Code { return dErrors.CodeContractViolation }

// ContractViolationError is a 2xx response whose body does not deserialize
// into the expected shape. Fatal: logged, surfaced, never retried.
type ContractViolationError struct {
	Err  error
	Body []byte
}

func (e *ContractViolationError) Error() string {
	return fmt.Sprintf("bank response violates expected contract: %v", e.Err)
}

func (e *ContractViolationError) Unwrap() error            { return e.Err }
func (e *ContractViolationError) DomainCode() dErrors.Code { return dErrors.CodeContractViolation }
