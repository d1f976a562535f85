package models_test

import (
	"testing"
	"time"

	"github.com/palisadeauth/palisade/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestTierThresholds_BoundariesResolveToHigherTier(t *testing.T) {
	thresholds := models.DefaultTierThresholds()

	assert.Equal(t, models.TierLow, thresholds.Tier(0))
	assert.Equal(t, models.TierLow, thresholds.Tier(39))
	assert.Equal(t, models.TierMedium, thresholds.Tier(40))
	assert.Equal(t, models.TierMedium, thresholds.Tier(59))
	assert.Equal(t, models.TierHigh, thresholds.Tier(60))
	assert.Equal(t, models.TierHigh, thresholds.Tier(100))
}

func TestLoginAttemptValidate(t *testing.T) {
	valid := models.LoginAttempt{
		AccountID:   "acct-1",
		SourceID:    "192.168.1.10",
		Outcome:     models.OutcomeFailure,
		AttemptTime: time.Now(),
	}
	assert.NoError(t, valid.Validate())

	missingAccount := valid
	missingAccount.AccountID = "  "
	assert.ErrorIs(t, missingAccount.Validate(), models.ErrBadRequest)

	missingSource := valid
	missingSource.SourceID = ""
	assert.ErrorIs(t, missingSource.Validate(), models.ErrBadRequest)

	badOutcome := valid
	badOutcome.Outcome = "maybe"
	assert.ErrorIs(t, badOutcome.Validate(), models.ErrBadRequest)

	emptyFingerprint := valid
	blank := ""
	emptyFingerprint.DeviceFingerprint = &blank
	assert.ErrorIs(t, emptyFingerprint.Validate(), models.ErrBadRequest)
}

func TestLockoutStateExpiry(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(30 * time.Minute)

	reason := models.LockReasonRepeatedFailures
	locked := models.LockoutState{AccountID: "acct-1", IsLocked: true, LockedUntil: &future, Reason: &reason}
	assert.True(t, locked.Active(now))
	assert.False(t, locked.Expired(now))

	expired := models.LockoutState{AccountID: "acct-1", IsLocked: true, LockedUntil: &past, Reason: &reason}
	assert.False(t, expired.Active(now))
	assert.True(t, expired.Expired(now))

	unlocked := models.LockoutState{AccountID: "acct-1"}
	assert.False(t, unlocked.Active(now))
}

func TestLockSeverityOrdering(t *testing.T) {
	assert.Greater(t, models.LockSeverity(models.LockReasonHighRisk), models.LockSeverity(models.LockReasonRepeatedFailures))
	assert.Greater(t, models.LockSeverity(models.LockReasonAdmin), models.LockSeverity(models.LockReasonHighRisk))
	assert.Zero(t, models.LockSeverity("unknown"))
}
