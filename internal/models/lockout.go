package models

import "time"

// Lock reasons, ordered by severity via lockSeverity below
const (
	LockReasonRepeatedFailures = "repeated_failed_attempts"
	LockReasonHighRisk         = "consecutive_high_risk_assessments"
	LockReasonAdmin            = "administrative_lock"
)

// lockSeverity ranks lock reasons. Re-locking an already locked account
// only extends locked_until when the new reason is at least as severe.
var lockSeverity = map[string]int{
	LockReasonRepeatedFailures: 1,
	LockReasonHighRisk:         2,
	LockReasonAdmin:            3,
}

// LockSeverity returns the severity rank for a lock reason (0 for unknown)
func LockSeverity(reason string) int {
	return lockSeverity[reason]
}

// LockoutState tracks whether an account may authenticate.
// Accounts are implicitly unlocked until the lockout manager locks them.
type LockoutState struct {
	AccountID   string     `db:"account_id"`
	IsLocked    bool       `db:"is_locked"`
	LockedUntil *time.Time `db:"locked_until"`
	Reason      *string    `db:"reason"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

// Expired reports whether a lock exists but its expiry has passed
func (ls *LockoutState) Expired(now time.Time) bool {
	return ls.IsLocked && ls.LockedUntil != nil && !now.Before(*ls.LockedUntil)
}

// Active reports whether the account is currently locked
func (ls *LockoutState) Active(now time.Time) bool {
	return ls.IsLocked && !ls.Expired(now)
}

// LockoutDecision is the result of evaluating lockout rules after an attempt
type LockoutDecision struct {
	State       LockoutState
	NewlyLocked bool
}
