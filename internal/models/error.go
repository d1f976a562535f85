package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Decision errors: expected, terminal for the attempt
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrAccountLocked     = errors.New("account is temporarily locked")

	// ErrStoreUnavailable signals that history or lockout state could not
	// be read. The engine fails closed: the attempt is denied and the
	// caller may retry.
	ErrStoreUnavailable = errors.New("attempt store unavailable")
)
