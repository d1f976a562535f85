package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/palisadeauth/palisade/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLockoutConfig() LockoutConfig {
	return LockoutConfig{
		FailureThreshold:  5,
		FailureWindow:     15 * time.Minute,
		HighRiskThreshold: 3,
		Duration:          30 * time.Minute,
	}
}

func lowAssessment(accountID string) *models.RiskAssessment {
	return &models.RiskAssessment{
		AccountID:  accountID,
		SourceID:   "10.0.0.1",
		Score:      0,
		Tier:       models.TierLow,
		AssessedAt: time.Now(),
	}
}

func highAssessment(accountID string) *models.RiskAssessment {
	return &models.RiskAssessment{
		AccountID:  accountID,
		SourceID:   "10.0.0.1",
		Score:      75,
		Tier:       models.TierHigh,
		AssessedAt: time.Now(),
	}
}

func TestLockoutService_Evaluate_FailureThreshold(t *testing.T) {
	t.Run("locks at the threshold", func(t *testing.T) {
		store := &MockLockoutStore{}
		svc := NewLockoutService(store, &MockTierHistory{}, testLockoutConfig(), testLogger())

		decision, err := svc.Evaluate(context.Background(), "acct-1", lowAssessment("acct-1"), 5)
		require.NoError(t, err)

		assert.True(t, decision.NewlyLocked)
		assert.True(t, decision.State.IsLocked)
		require.NotNil(t, decision.State.Reason)
		assert.Equal(t, models.LockReasonRepeatedFailures, *decision.State.Reason)
		require.NotNil(t, decision.State.LockedUntil)
		assert.WithinDuration(t, time.Now().Add(30*time.Minute), *decision.State.LockedUntil, 2*time.Second)
	})

	t.Run("does not lock below the threshold", func(t *testing.T) {
		store := &MockLockoutStore{}
		svc := NewLockoutService(store, &MockTierHistory{}, testLockoutConfig(), testLogger())

		decision, err := svc.Evaluate(context.Background(), "acct-1", lowAssessment("acct-1"), 4)
		require.NoError(t, err)

		assert.False(t, decision.NewlyLocked)
		assert.False(t, decision.State.IsLocked)
	})
}

func TestLockoutService_Evaluate_ConsecutiveHighRisk(t *testing.T) {
	t.Run("locks on a run of HIGH assessments", func(t *testing.T) {
		store := &MockLockoutStore{}
		tiers := &MockTierHistory{
			RecentTiersFunc: func(ctx context.Context, accountID string, limit int) ([]models.RiskTier, error) {
				return []models.RiskTier{models.TierHigh, models.TierHigh, models.TierHigh}, nil
			},
		}
		svc := NewLockoutService(store, tiers, testLockoutConfig(), testLogger())

		decision, err := svc.Evaluate(context.Background(), "acct-1", highAssessment("acct-1"), 0)
		require.NoError(t, err)

		assert.True(t, decision.NewlyLocked)
		require.NotNil(t, decision.State.Reason)
		assert.Equal(t, models.LockReasonHighRisk, *decision.State.Reason)
	})

	t.Run("a non-HIGH assessment breaks the run", func(t *testing.T) {
		store := &MockLockoutStore{}
		tiers := &MockTierHistory{
			RecentTiersFunc: func(ctx context.Context, accountID string, limit int) ([]models.RiskTier, error) {
				return []models.RiskTier{models.TierHigh, models.TierMedium, models.TierHigh}, nil
			},
		}
		svc := NewLockoutService(store, tiers, testLockoutConfig(), testLogger())

		decision, err := svc.Evaluate(context.Background(), "acct-1", highAssessment("acct-1"), 0)
		require.NoError(t, err)

		assert.False(t, decision.State.IsLocked)
	})

	t.Run("tier history is not consulted for non-HIGH assessments", func(t *testing.T) {
		store := &MockLockoutStore{}
		tiers := &MockTierHistory{
			RecentTiersFunc: func(ctx context.Context, accountID string, limit int) ([]models.RiskTier, error) {
				t.Fatal("tier history should not be read")
				return nil, nil
			},
		}
		svc := NewLockoutService(store, tiers, testLockoutConfig(), testLogger())

		_, err := svc.Evaluate(context.Background(), "acct-1", lowAssessment("acct-1"), 0)
		require.NoError(t, err)
	})
}

func TestLockoutService_Evaluate_SeverityOrdering(t *testing.T) {
	t.Run("more severe reason extends an active lock", func(t *testing.T) {
		store := &MockLockoutStore{}
		existing := NewTestLockedState("acct-1", models.LockReasonRepeatedFailures, time.Now().Add(5*time.Minute))
		require.NoError(t, store.Upsert(context.Background(), existing))

		tiers := &MockTierHistory{
			RecentTiersFunc: func(ctx context.Context, accountID string, limit int) ([]models.RiskTier, error) {
				return []models.RiskTier{models.TierHigh, models.TierHigh, models.TierHigh}, nil
			},
		}
		svc := NewLockoutService(store, tiers, testLockoutConfig(), testLogger())

		decision, err := svc.Evaluate(context.Background(), "acct-1", highAssessment("acct-1"), 5)
		require.NoError(t, err)

		// Still one continuous lock, but with the stronger reason and a fresh expiry
		assert.False(t, decision.NewlyLocked)
		require.NotNil(t, decision.State.Reason)
		assert.Equal(t, models.LockReasonHighRisk, *decision.State.Reason)
		assert.WithinDuration(t, time.Now().Add(30*time.Minute), *decision.State.LockedUntil, 2*time.Second)
	})

	t.Run("equal or lesser reason leaves the lock untouched", func(t *testing.T) {
		until := time.Now().Add(5 * time.Minute)
		store := &MockLockoutStore{}
		existing := NewTestLockedState("acct-1", models.LockReasonHighRisk, until)
		require.NoError(t, store.Upsert(context.Background(), existing))

		svc := NewLockoutService(store, &MockTierHistory{}, testLockoutConfig(), testLogger())

		decision, err := svc.Evaluate(context.Background(), "acct-1", lowAssessment("acct-1"), 7)
		require.NoError(t, err)

		assert.False(t, decision.NewlyLocked)
		require.NotNil(t, decision.State.LockedUntil)
		assert.WithinDuration(t, until, *decision.State.LockedUntil, time.Second)
		require.NotNil(t, decision.State.Reason)
		assert.Equal(t, models.LockReasonHighRisk, *decision.State.Reason)
	})
}

func TestLockoutService_Status(t *testing.T) {
	t.Run("reports an active lock", func(t *testing.T) {
		store := &MockLockoutStore{}
		existing := NewTestLockedState("acct-1", models.LockReasonRepeatedFailures, time.Now().Add(10*time.Minute))
		require.NoError(t, store.Upsert(context.Background(), existing))

		svc := NewLockoutService(store, &MockTierHistory{}, testLockoutConfig(), testLogger())

		state, err := svc.Status(context.Background(), "acct-1")
		require.NoError(t, err)
		assert.True(t, state.Active(time.Now()))
	})

	t.Run("clears an expired lock lazily", func(t *testing.T) {
		store := &MockLockoutStore{}
		existing := NewTestLockedState("acct-1", models.LockReasonRepeatedFailures, time.Now().Add(-time.Minute))
		require.NoError(t, store.Upsert(context.Background(), existing))

		svc := NewLockoutService(store, &MockTierHistory{}, testLockoutConfig(), testLogger())

		state, err := svc.Status(context.Background(), "acct-1")
		require.NoError(t, err)
		assert.False(t, state.IsLocked)
		assert.False(t, state.Active(time.Now()))

		// The expired row is gone, not merely ignored
		stored, err := store.Get(context.Background(), "acct-1")
		require.NoError(t, err)
		assert.False(t, stored.IsLocked)
	})

	t.Run("unknown accounts are unlocked", func(t *testing.T) {
		svc := NewLockoutService(&MockLockoutStore{}, &MockTierHistory{}, testLockoutConfig(), testLogger())

		state, err := svc.Status(context.Background(), "acct-never-seen")
		require.NoError(t, err)
		assert.False(t, state.IsLocked)
	})

	t.Run("wraps store failures", func(t *testing.T) {
		store := &MockLockoutStore{
			GetFunc: func(ctx context.Context, accountID string) (*models.LockoutState, error) {
				return nil, errors.New("connection refused")
			},
		}
		svc := NewLockoutService(store, &MockTierHistory{}, testLockoutConfig(), testLogger())

		_, err := svc.Status(context.Background(), "acct-1")
		assert.ErrorIs(t, err, models.ErrStoreUnavailable)
	})
}

func TestLockoutService_AdminUnlock(t *testing.T) {
	store := &MockLockoutStore{}
	existing := NewTestLockedState("acct-1", models.LockReasonRepeatedFailures, time.Now().Add(10*time.Minute))
	require.NoError(t, store.Upsert(context.Background(), existing))

	svc := NewLockoutService(store, &MockTierHistory{}, testLockoutConfig(), testLogger())

	require.NoError(t, svc.AdminUnlock(context.Background(), "acct-1"))

	state, err := svc.Status(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.False(t, state.IsLocked)
}
