package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and provider transports
// return these (optionally wrapped) so the session service can translate them
// into domain errors.
//
// These describe the state of a resource, not the validity of user input:
//   - ErrNotFound: the keyed record does not exist (e.g. no profile row)
//   - ErrExpired: a token or session is past its expiry
//   - ErrRejected: the provider refused a credential it once issued
//   - ErrInvalidState: a record exists but cannot be used as stored
//   - ErrUnavailable: the backing service could not be reached
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrExpired      = errors.New("expired")
	ErrRejected     = errors.New("rejected")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
