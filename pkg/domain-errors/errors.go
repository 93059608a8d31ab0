// Package domainerrors carries the coded error taxonomy shared by the session
// controller, the identity provider client and the HTTP surface.
//
// Services return *Error values; callers branch on the Code with HasCode
// rather than on message text. Wrap keeps the cause reachable through
// errors.Is / errors.As so sentinel checks keep working.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	// CodeProviderUnavailable marks identity provider outages and malformed
	// provider responses. Surfaced to the UI, retryable by user action.
	CodeProviderUnavailable Code = "provider_unavailable"
	// CodeProfileMissing marks an authenticated subject without a role row.
	CodeProfileMissing Code = "profile_missing"
	// CodeProfileLookup marks a lookup-layer failure that is not transient
	// (schema problems, a role value outside the closed set).
	CodeProfileLookup Code = "profile_lookup_error"
	// CodeStaleToken marks a refresh token the provider no longer accepts.
	CodeStaleToken Code = "stale_token"
	// CodeValidation marks malformed credential input at sign-in or sign-up.
	CodeValidation Code = "validation_error"
	// CodeInvalidCredentials marks credentials the provider rejected.
	CodeInvalidCredentials Code = "invalid_credentials"
	CodeInvalidInput       Code = "invalid_input"
	CodeBadRequest         Code = "bad_request"
	CodeInternal           Code = "internal_error"
)

// Error is a coded domain error with an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns a coded error without a cause.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap returns a coded error that keeps err as its cause.
func Wrap(err error, code Code, msg string) error {
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode reports whether any *Error in err's chain carries code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// Is is an alias of HasCode kept for call sites that read better with it.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the outermost code in err's chain, or CodeInternal when err
// carries no domain code.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
