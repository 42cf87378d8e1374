package domainerrors

import "errors"

// Code represents a domain error category independent of transport layer.
// These codes describe what went wrong in business terms, not HTTP terms.
type Code string

const (
	// Client-side field checks that never reach the network.
	CodeValidation Code = "validation_failed"
	// No response was obtained at all (DNS, connection refused).
	CodeNetwork Code = "network_error"
	// The request was aborted by its deadline.
	CodeTimeout Code = "timeout"
	// The backend responded with a non-2xx status.
	CodeHTTP Code = "http_error"
	// Admin session missing, placeholder, or expired.
	CodeUnauthenticated Code = "unauthenticated"
	// No payment reference was supplied at all.
	CodeNoReference Code = "no_reference"
	CodeNotFound    Code = "not_found"
	CodeInternal    Code = "internal_error"

	// Domain outcomes of a payment verification. These are results of the
	// reconciliation flow, not transport failures.
	CodePaymentPending   Code = "payment_pending"
	CodePaymentFailed    Code = "payment_failed"
	CodePaymentAbandoned Code = "payment_abandoned"
)

// Error wraps domain or infrastructure failures with a stable code.
// It is transport-agnostic and can be used across service, store, and
// reconciliation layers.
type Error struct {
	Code    Code
	Message string
	// HTTPStatus carries the upstream status for CodeHTTP errors; zero otherwise.
	HTTPStatus int
	// Body carries the raw upstream error body for CodeHTTP errors.
	Body []byte
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

// Unwrap implements error unwrapping for error chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is enables errors.Is() to match errors by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new domain error with the given code and message.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap creates a new domain error wrapping an existing error.
// If the wrapped error is already a domain error, the original code is preserved.
func Wrap(err error, code Code, msg string) error {
	var existing *Error
	if errors.As(err, &existing) {
		return &Error{Code: existing.Code, Message: msg, HTTPStatus: existing.HTTPStatus, Err: err}
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode checks if an error is a domain error with the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf extracts the domain code from an error, or CodeInternal when the
// error carries no code.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsTransport reports whether the error is a transport-level failure
// (network, timeout, or upstream HTTP failure) as opposed to a domain outcome.
func IsTransport(err error) bool {
	switch CodeOf(err) {
	case CodeNetwork, CodeTimeout, CodeHTTP:
		return true
	}
	return false
}
