// Package domainerrors provides coded errors shared across the connector.
//
// Codes classify failures for callers (retry decisions, HTTP mapping, logs)
// without forcing them to match on message strings. Components that need
// structured detail beyond a code (bank error payloads, timeout flags) define
// their own error types and implement Coder so HasCode still works.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies a failure class.
type Code string

const (
	CodeUnknownProfile    Code = "unknown_profile"
	CodeNotFound          Code = "not_found"
	CodeInvalidState      Code = "invalid_state"
	CodeSigning           Code = "signing_error"
	CodeEncoding          Code = "encoding_error"
	CodeTransport         Code = "transport_error"
	CodeBankAPI           Code = "bank_api_error"
	CodeContractViolation Code = "contract_violation"
	CodeInvalidInput      Code = "invalid_input"
	CodeConflict          Code = "conflict"
	CodeInternal          Code = "internal"
)

// Coder is implemented by error types that carry a domain code of their own.
type Coder interface {
	DomainCode() Code
}

// Error is a coded error with an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.err }

// DomainCode lets *Error satisfy Coder alongside custom error types.
func (e *Error) DomainCode() Code { return e.Code }

// New creates a coded error without a cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, err: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	for err != nil {
		if c, ok := err.(Coder); ok && c.DomainCode() == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// CodeOf returns the code of the outermost coded error, or CodeInternal when
// the chain carries none.
func CodeOf(err error) Code {
	for err != nil {
		if c, ok := err.(Coder); ok {
			return c.DomainCode()
		}
		err = errors.Unwrap(err)
	}
	return CodeInternal
}
