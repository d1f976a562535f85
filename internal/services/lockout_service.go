package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/palisadeauth/palisade/internal/models"
)

// LockoutStore defines the interface for lockout state persistence
type LockoutStore interface {
	Get(ctx context.Context, accountID string) (*models.LockoutState, error)
	Upsert(ctx context.Context, state *models.LockoutState) error
	Unlock(ctx context.Context, accountID string) error
}

// TierHistory exposes the recent assessment tiers for an account,
// newest first
type TierHistory interface {
	RecentTiers(ctx context.Context, accountID string, limit int) ([]models.RiskTier, error)
}

// LockoutConfig holds the lockout thresholds
type LockoutConfig struct {
	// FailureThreshold failed attempts inside FailureWindow lock the
	// account regardless of risk tier.
	FailureThreshold int
	FailureWindow    time.Duration

	// HighRiskThreshold consecutive HIGH assessments lock the account.
	HighRiskThreshold int

	Duration time.Duration
}

// LockoutService owns the UNLOCKED -> LOCKED -> UNLOCKED state machine.
// Locks expire lazily: expiry is observed at the next status read.
type LockoutService struct {
	store   LockoutStore
	tiers   TierHistory
	config  LockoutConfig
	logger  *slog.Logger
}

// NewLockoutService creates a new LockoutService
func NewLockoutService(store LockoutStore, tiers TierHistory, config LockoutConfig, logger *slog.Logger) *LockoutService {
	return &LockoutService{
		store:  store,
		tiers:  tiers,
		config: config,
		logger: logger,
	}
}

// Status returns the current lockout state for an account, clearing any
// lock whose expiry has passed.
func (s *LockoutService) Status(ctx context.Context, accountID string) (*models.LockoutState, error) {
	state, err := s.store.Get(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}

	if state.Expired(time.Now()) {
		if err := s.store.Unlock(ctx, accountID); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
		}
		s.logger.Info("lock expired, account auto-unlocked", slog.String("account_id", accountID))
		state = &models.LockoutState{AccountID: accountID, UpdatedAt: time.Now()}
	}

	return state, nil
}

// Evaluate applies the lockout rules after an attempt has been recorded
// and assessed. failureCount is the failed-attempt count inside the
// configured failure window, including the attempt just recorded.
func (s *LockoutService) Evaluate(ctx context.Context, accountID string, assessment *models.RiskAssessment, failureCount int) (*models.LockoutDecision, error) {
	state, err := s.Status(ctx, accountID)
	if err != nil {
		return nil, err
	}

	reason, shouldLock, err := s.lockReason(ctx, accountID, assessment, failureCount)
	if err != nil {
		return nil, err
	}
	if !shouldLock {
		return &models.LockoutDecision{State: *state}, nil
	}

	now := time.Now()

	if state.Active(now) {
		// Already locked: only a more severe reason extends the lock.
		if state.Reason != nil && models.LockSeverity(reason) <= models.LockSeverity(*state.Reason) {
			return &models.LockoutDecision{State: *state}, nil
		}
	}

	until := now.Add(s.config.Duration)
	newState := &models.LockoutState{
		AccountID:   accountID,
		IsLocked:    true,
		LockedUntil: &until,
		Reason:      &reason,
		UpdatedAt:   now,
	}

	if err := s.store.Upsert(ctx, newState); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}

	s.logger.Warn("account locked",
		slog.String("account_id", accountID),
		slog.String("reason", reason),
		slog.Time("locked_until", until))

	return &models.LockoutDecision{State: *newState, NewlyLocked: !state.Active(now)}, nil
}

// AdminUnlock clears the lock for an account via administrative action
func (s *LockoutService) AdminUnlock(ctx context.Context, accountID string) error {
	if err := s.store.Unlock(ctx, accountID); err != nil {
		return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	s.logger.Info("account unlocked by administrator", slog.String("account_id", accountID))
	return nil
}

func (s *LockoutService) lockReason(ctx context.Context, accountID string, assessment *models.RiskAssessment, failureCount int) (string, bool, error) {
	// Consecutive HIGH assessments outrank the raw failure count when
	// both trip on the same attempt.
	if assessment != nil && assessment.Tier == models.TierHigh {
		tiers, err := s.tiers.RecentTiers(ctx, accountID, s.config.HighRiskThreshold)
		if err != nil {
			return "", false, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
		}

		consecutive := 0
		for _, tier := range tiers {
			if tier != models.TierHigh {
				break
			}
			consecutive++
		}

		if consecutive >= s.config.HighRiskThreshold {
			return models.LockReasonHighRisk, true, nil
		}
	}

	if failureCount >= s.config.FailureThreshold {
		return models.LockReasonRepeatedFailures, true, nil
	}

	return "", false, nil
}
