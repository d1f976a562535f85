package services

import (
	"context"
	"testing"
	"time"

	"github.com/palisadeauth/palisade/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRiskConfig() RiskConfig {
	return RiskConfig{
		NovelDeviceWeight:   25,
		FailureWeight:       10,
		FailureWeightCap:    40,
		FailureBurstWeight:  20,
		FailureBurstMinimum: 3,
		VelocityWeight:      15,
		VelocityThreshold:   8,
		VelocityWindow:      5 * time.Minute,
		FailureLookback:     15 * time.Minute,
		Thresholds:          models.DefaultTierThresholds(),
	}
}

func newTestRiskService(store *InMemoryAttemptStore, config RiskConfig) (*RiskService, *HistoryService) {
	logger := testLogger()
	history := NewHistoryService(store, HistoryConfig{Retention: 90 * 24 * time.Hour}, logger)
	fingerprints := NewFingerprintService(store, FingerprintConfig{KnownWindow: 30 * 24 * time.Hour}, logger)
	return NewRiskService(history, fingerprints, config, logger), history
}

func TestRiskService_Score_KnownDeviceCleanHistory(t *testing.T) {
	store := &InMemoryAttemptStore{}
	risk, history := newTestRiskService(store, testRiskConfig())
	ctx := context.Background()

	now := time.Now()
	prior := NewTestAttemptWithDevice("acct-1", "10.0.0.1", models.OutcomeSuccess, "fp-laptop", now.Add(-24*time.Hour))
	require.NoError(t, history.Record(ctx, prior))

	current := NewTestAttemptWithDevice("acct-1", "10.0.0.1", models.OutcomeSuccess, "fp-laptop", now)
	require.NoError(t, history.Record(ctx, current))

	assessment, err := risk.Score(ctx, current)
	require.NoError(t, err)

	assert.Equal(t, 0, assessment.Score)
	assert.Equal(t, models.TierLow, assessment.Tier)
	assert.Empty(t, assessment.Factors)
}

func TestRiskService_Score_NovelDeviceSuccess(t *testing.T) {
	store := &InMemoryAttemptStore{}
	risk, history := newTestRiskService(store, testRiskConfig())
	ctx := context.Background()

	current := NewTestAttemptWithDevice("acct-1", "10.0.0.1", models.OutcomeSuccess, "fp-new-phone", time.Now())
	require.NoError(t, history.Record(ctx, current))

	assessment, err := risk.Score(ctx, current)
	require.NoError(t, err)

	// A successful login from an unseen device is never below MEDIUM
	assert.Equal(t, models.TierMedium, assessment.Tier)
	assert.GreaterOrEqual(t, assessment.Score, 40)
	assert.Less(t, assessment.Score, 60)
	assert.True(t, assessment.HasFactor(models.FactorNovelDevice))
}

func TestRiskService_Score_AbsentFingerprintIsNovel(t *testing.T) {
	store := &InMemoryAttemptStore{}
	risk, history := newTestRiskService(store, testRiskConfig())
	ctx := context.Background()

	current := NewTestAttempt("acct-1", "10.0.0.1", models.OutcomeSuccess, time.Now())
	require.NoError(t, history.Record(ctx, current))

	assessment, err := risk.Score(ctx, current)
	require.NoError(t, err)

	assert.True(t, assessment.HasFactor(models.FactorNovelDevice))
	assert.Equal(t, models.TierMedium, assessment.Tier)
}

func TestRiskService_Score_FailureBurstThenSuccess(t *testing.T) {
	store := &InMemoryAttemptStore{}
	risk, history := newTestRiskService(store, testRiskConfig())
	ctx := context.Background()

	now := time.Now()
	// Device was seen successfully well before the burst
	seed := NewTestAttemptWithDevice("acct-1", "10.0.0.1", models.OutcomeSuccess, "fp-laptop", now.Add(-24*time.Hour))
	require.NoError(t, history.Record(ctx, seed))

	for i := 4; i >= 1; i-- {
		failure := NewTestAttemptWithDevice("acct-1", "10.0.0.1", models.OutcomeFailure, "fp-laptop", now.Add(-time.Duration(i)*time.Minute))
		require.NoError(t, history.Record(ctx, failure))
	}

	current := NewTestAttemptWithDevice("acct-1", "10.0.0.1", models.OutcomeSuccess, "fp-laptop", now)
	require.NoError(t, history.Record(ctx, current))

	assessment, err := risk.Score(ctx, current)
	require.NoError(t, err)

	// 4 recent failures plus the burst signal on a known device
	assert.Equal(t, models.TierHigh, assessment.Tier)
	assert.True(t, assessment.HasFactor(models.FactorRecentFailures))
	assert.True(t, assessment.HasFactor(models.FactorFailureBurst))
	assert.False(t, assessment.HasFactor(models.FactorNovelDevice))
}

func TestRiskService_Score_FailureContributionCapped(t *testing.T) {
	store := &InMemoryAttemptStore{}
	config := testRiskConfig()
	risk, history := newTestRiskService(store, config)
	ctx := context.Background()

	now := time.Now()
	seed := NewTestAttemptWithDevice("acct-1", "10.0.0.1", models.OutcomeSuccess, "fp-laptop", now.Add(-24*time.Hour))
	require.NoError(t, history.Record(ctx, seed))

	for i := 7; i >= 1; i-- {
		failure := NewTestAttemptWithDevice("acct-1", "10.0.0.1", models.OutcomeFailure, "fp-laptop", now.Add(-time.Duration(i)*time.Second))
		require.NoError(t, history.Record(ctx, failure))
	}

	current := NewTestAttemptWithDevice("acct-1", "10.0.0.1", models.OutcomeFailure, "fp-laptop", now)
	require.NoError(t, history.Record(ctx, current))

	assessment, err := risk.Score(ctx, current)
	require.NoError(t, err)

	// 8 failures would be 80 raw; the cap holds the factor at 40
	assert.Equal(t, config.FailureWeightCap, assessment.Score)
	assert.True(t, assessment.HasFactor(models.FactorRecentFailures))
}

func TestRiskService_Score_VelocityFactor(t *testing.T) {
	store := &InMemoryAttemptStore{}
	risk, history := newTestRiskService(store, testRiskConfig())
	ctx := context.Background()

	now := time.Now()
	seed := NewTestAttemptWithDevice("acct-1", "10.0.0.1", models.OutcomeSuccess, "fp-laptop", now.Add(-24*time.Hour))
	require.NoError(t, history.Record(ctx, seed))

	for i := 8; i >= 1; i-- {
		attempt := NewTestAttemptWithDevice("acct-1", "10.0.0.1", models.OutcomeSuccess, "fp-laptop", now.Add(-time.Duration(i)*time.Second))
		require.NoError(t, history.Record(ctx, attempt))
	}

	current := NewTestAttemptWithDevice("acct-1", "10.0.0.1", models.OutcomeSuccess, "fp-laptop", now)
	require.NoError(t, history.Record(ctx, current))

	assessment, err := risk.Score(ctx, current)
	require.NoError(t, err)

	assert.True(t, assessment.HasFactor(models.FactorVelocity))
}

func TestRiskService_Score_ClampedAt100(t *testing.T) {
	store := &InMemoryAttemptStore{}
	config := testRiskConfig()
	config.NovelDeviceWeight = 90
	config.FailureWeightCap = 90
	risk, history := newTestRiskService(store, config)
	ctx := context.Background()

	now := time.Now()
	for i := 9; i >= 1; i-- {
		failure := NewTestAttempt("acct-1", "10.0.0.1", models.OutcomeFailure, now.Add(-time.Duration(i)*time.Second))
		require.NoError(t, history.Record(ctx, failure))
	}

	current := NewTestAttempt("acct-1", "10.0.0.1", models.OutcomeFailure, now)
	require.NoError(t, history.Record(ctx, current))

	assessment, err := risk.Score(ctx, current)
	require.NoError(t, err)

	assert.Equal(t, 100, assessment.Score)
	assert.Equal(t, models.TierHigh, assessment.Tier)
}

func TestRiskService_Score_DeviceKnownOnlyViaSuccess(t *testing.T) {
	store := &InMemoryAttemptStore{}
	risk, history := newTestRiskService(store, testRiskConfig())
	ctx := context.Background()

	now := time.Now()
	// The fingerprint has only ever failed
	failed := NewTestAttemptWithDevice("acct-1", "10.0.0.1", models.OutcomeFailure, "fp-laptop", now.Add(-time.Hour))
	require.NoError(t, history.Record(ctx, failed))

	current := NewTestAttemptWithDevice("acct-1", "10.0.0.1", models.OutcomeSuccess, "fp-laptop", now)
	require.NoError(t, history.Record(ctx, current))

	assessment, err := risk.Score(ctx, current)
	require.NoError(t, err)

	assert.True(t, assessment.HasFactor(models.FactorNovelDevice))
}

func TestRiskService_Score_KnownWindowExpires(t *testing.T) {
	store := &InMemoryAttemptStore{}
	risk, history := newTestRiskService(store, testRiskConfig())
	ctx := context.Background()

	now := time.Now()
	// Last successful use of the fingerprint is outside the trailing window
	stale := NewTestAttemptWithDevice("acct-1", "10.0.0.1", models.OutcomeSuccess, "fp-laptop", now.Add(-31*24*time.Hour))
	require.NoError(t, history.Record(ctx, stale))

	current := NewTestAttemptWithDevice("acct-1", "10.0.0.1", models.OutcomeSuccess, "fp-laptop", now)
	require.NoError(t, history.Record(ctx, current))

	assessment, err := risk.Score(ctx, current)
	require.NoError(t, err)

	assert.True(t, assessment.HasFactor(models.FactorNovelDevice))
}
