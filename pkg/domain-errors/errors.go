// Package domainerrors defines the typed error taxonomy returned by services.
//
// Services translate store sentinels (pkg/platform/sentinel) into one of these
// codes so transport layers can map them without knowing about storage.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	CodeBadRequest            Code = "bad_request"
	CodeValidation            Code = "validation_error"
	CodeInvariantViolation    Code = "invariant_violation"
	CodeNotFound              Code = "not_found"
	CodeUnauthorized          Code = "unauthorized"
	CodeForbidden             Code = "forbidden"
	CodeNotOwner              Code = "not_owner"
	CodeNotVerified           Code = "not_verified"
	CodeAlreadyOwned          Code = "already_owned"
	CodeInvalidTransition     Code = "invalid_transition"
	CodeInvalidState          Code = "invalid_state"
	CodeTransactionInProgress Code = "transaction_in_progress"
	CodeDuplicateIdentifier   Code = "duplicate_identifier"
	CodeConflict              Code = "conflict"
	CodeIntegrityViolation    Code = "integrity_violation"
	CodeExpired               Code = "expired"
	CodeTooManyAttempts       Code = "too_many_attempts"
	CodeTimeout               Code = "timeout"
	CodeInternal              Code = "internal_error"
)

// Error is a coded error with a caller-safe message.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode reports whether the outermost domain error in err's chain carries code.
func HasCode(err error, code Code) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// CodeOf returns the code of the outermost domain error in err's chain.
func CodeOf(err error) (Code, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Code, true
	}
	return "", false
}

// MessageOf returns the caller-safe message of the outermost domain error.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}

// Retryable reports whether the caller may retry the operation unchanged.
func Retryable(err error) bool {
	c, ok := CodeOf(err)
	if !ok {
		return false
	}
	return c == CodeDuplicateIdentifier || c == CodeConflict || c == CodeTimeout
}
