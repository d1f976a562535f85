package models

import (
	"strings"
	"time"
)

// Attempt outcomes recorded in the history store
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// LoginAttempt represents a single login attempt for one account.
// Immutable once recorded.
type LoginAttempt struct {
	ID                string    `db:"id"`
	AccountID         string    `db:"account_id"`
	SourceID          string    `db:"source_id"`
	UserAgent         string    `db:"user_agent"`
	DeviceFingerprint *string   `db:"device_fingerprint"`
	Outcome           string    `db:"outcome"`
	AttemptTime       time.Time `db:"attempt_time"`
	ExpiresAt         time.Time `db:"expires_at"`
}

// Success reports whether the attempt was a successful login
func (a *LoginAttempt) Success() bool {
	return a.Outcome == OutcomeSuccess
}

// Validate checks the input contract before any state mutation.
// A malformed attempt must never reach the history store.
func (a *LoginAttempt) Validate() error {
	if strings.TrimSpace(a.AccountID) == "" {
		return ErrBadRequest
	}
	if strings.TrimSpace(a.SourceID) == "" {
		return ErrBadRequest
	}
	if a.Outcome != OutcomeSuccess && a.Outcome != OutcomeFailure {
		return ErrBadRequest
	}
	if a.DeviceFingerprint != nil && strings.TrimSpace(*a.DeviceFingerprint) == "" {
		return ErrBadRequest
	}
	return nil
}
