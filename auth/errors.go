package auth

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies an authentication failure class. Codes are part of the API
// surface: they appear verbatim in the error envelope.
type Code string

const (
	CodeMissingSignature   Code = "MISSING_SIGNATURE"
	CodeUnknownIdentity    Code = "UNKNOWN_IDENTITY"
	CodeSignatureMismatch  Code = "SIGNATURE_MISMATCH"
	CodeStaleKey           Code = "STALE_KEY"
	CodeStaleTimestamp     Code = "STALE_TIMESTAMP"
	CodeReplayedDelegation Code = "REPLAYED_DELEGATION"
	CodeInvalidDelegation  Code = "INVALID_DELEGATION"
	CodeConcurrentRotation Code = "CONCURRENT_ROTATION"
	CodeStoreUnavailable   Code = "STORE_UNAVAILABLE"
)

// Error is a coded authentication error with an HTTP status. Messages never
// carry signature bytes, keys, or secret material.
type Error struct {
	Code    Code
	Message string
	Status  int
	cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Retryable reports whether the caller may retry the same request unchanged.
func (e *Error) Retryable() bool {
	return e.Code == CodeStoreUnavailable || e.Code == CodeConcurrentRotation
}

func newError(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Status: defaultStatus(code)}
}

func wrapError(code Code, msg string, cause error) *Error {
	e := newError(code, msg)
	e.cause = cause
	return e
}

func defaultStatus(code Code) int {
	switch code {
	case CodeMissingSignature, CodeSignatureMismatch, CodeStaleKey,
		CodeInvalidDelegation, CodeUnknownIdentity:
		return http.StatusUnauthorized
	case CodeStaleTimestamp:
		return http.StatusBadRequest
	case CodeReplayedDelegation, CodeConcurrentRotation:
		return http.StatusConflict
	case CodeStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// AsError extracts the coded error, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
