package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/palisadeauth/palisade/internal/models"
)

// AssessmentStore defines the interface for risk assessment persistence
type AssessmentStore interface {
	Insert(ctx context.Context, assessment *models.RiskAssessment) error
}

// CredentialVerifier checks a credential for an account. The engine does
// not own credentials; verification is delegated to the identity provider.
type CredentialVerifier interface {
	Verify(ctx context.Context, accountID, credential string) (bool, error)
}

// AssessmentConfig holds orchestration settings
type AssessmentConfig struct {
	// FailureWindow is the trailing window whose failure count feeds the
	// lockout evaluation. Matches the lockout failure window.
	FailureWindow time.Duration
}

// PrecheckResult reports the gate checks that run before credentials are
// ever verified
type PrecheckResult struct {
	RateLimit RateLimitResult
	Lockout   *models.LockoutState
	Allowed   bool
}

// Decision is the full outcome of recording and assessing one attempt
type Decision struct {
	Attempt     *models.LoginAttempt
	Assessment  *models.RiskAssessment
	Lockout     *models.LockoutState
	NewlyLocked bool

	// MFARequired is set on successful attempts assessed MEDIUM or above
	MFARequired bool
}

// AssessmentService orchestrates the per-attempt pipeline: gate checks,
// history recording, risk scoring, and lockout evaluation. Writes for one
// account are serialized so interleaved attempts cannot race the lockout
// state machine.
type AssessmentService struct {
	history     *HistoryService
	risk        *RiskService
	lockouts    *LockoutService
	limiter     *SlidingWindowLimiter
	assessments AssessmentStore
	notifier    Notifier
	config      AssessmentConfig
	logger      *slog.Logger

	accounts keyedMutex
}

// NewAssessmentService creates a new AssessmentService
func NewAssessmentService(
	history *HistoryService,
	risk *RiskService,
	lockouts *LockoutService,
	limiter *SlidingWindowLimiter,
	assessments AssessmentStore,
	notifier Notifier,
	config AssessmentConfig,
	logger *slog.Logger,
) *AssessmentService {
	return &AssessmentService{
		history:     history,
		risk:        risk,
		lockouts:    lockouts,
		limiter:     limiter,
		assessments: assessments,
		notifier:    notifier,
		config:      config,
		logger:      logger,
	}
}

// Precheck runs the gates that precede credential verification: the
// per-source rate limit, then the account lockout state. The rate limit
// is consulted first so a locked-out caller still burns budget.
func (s *AssessmentService) Precheck(ctx context.Context, accountID, sourceID string) (*PrecheckResult, error) {
	rate := s.limiter.Check(sourceID)
	if !rate.Allowed {
		return &PrecheckResult{RateLimit: rate}, nil
	}

	state, err := s.lockouts.Status(ctx, accountID)
	if err != nil {
		return nil, err
	}

	return &PrecheckResult{
		RateLimit: rate,
		Lockout:   state,
		Allowed:   !state.Active(time.Now()),
	}, nil
}

// RecordOutcome records an attempt whose outcome is already known, scores
// it, and applies the lockout rules. A successful outcome against an
// actively locked account is rejected; a lock can only end by expiry or
// administrative unlock.
func (s *AssessmentService) RecordOutcome(ctx context.Context, attempt *models.LoginAttempt) (*Decision, error) {
	if err := attempt.Validate(); err != nil {
		return nil, err
	}

	decision, err := s.assess(ctx, attempt)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, decision)
	return decision, nil
}

// ProcessLogin runs the whole pipeline for one credential presentation:
// precheck, credential verification, then record-and-assess.
func (s *AssessmentService) ProcessLogin(ctx context.Context, attempt *models.LoginAttempt, credential string, verifier CredentialVerifier) (*PrecheckResult, *Decision, error) {
	pre, err := s.Precheck(ctx, attempt.AccountID, attempt.SourceID)
	if err != nil {
		return nil, nil, err
	}
	if !pre.RateLimit.Allowed {
		return pre, nil, models.ErrRateLimitExceeded
	}
	if !pre.Allowed {
		return pre, nil, models.ErrAccountLocked
	}

	ok, err := verifier.Verify(ctx, attempt.AccountID, credential)
	if err != nil {
		return pre, nil, fmt.Errorf("failed to verify credentials: %w", err)
	}

	attempt.Outcome = models.OutcomeFailure
	if ok {
		attempt.Outcome = models.OutcomeSuccess
	}

	decision, err := s.RecordOutcome(ctx, attempt)
	if err != nil {
		return pre, nil, err
	}
	return pre, decision, nil
}

// assess holds the per-account lock for the record/score/lockout sequence.
// Notifications happen outside the lock.
func (s *AssessmentService) assess(ctx context.Context, attempt *models.LoginAttempt) (*Decision, error) {
	unlock := s.accounts.lock(attempt.AccountID)
	defer unlock()

	state, err := s.lockouts.Status(ctx, attempt.AccountID)
	if err != nil {
		return nil, err
	}
	if state.Active(time.Now()) && attempt.Success() {
		return nil, fmt.Errorf("%w: successful outcome rejected for locked account", models.ErrAccountLocked)
	}

	if err := s.history.Record(ctx, attempt); err != nil {
		return nil, err
	}

	assessment, err := s.risk.Score(ctx, attempt)
	if err != nil {
		return nil, err
	}

	if err := s.assessments.Insert(ctx, assessment); err != nil {
		s.logger.Error("failed to persist risk assessment",
			slog.String("account_id", attempt.AccountID),
			slog.Any("error", err))
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}

	failures, err := s.history.RecentFailures(ctx, attempt.AccountID, s.config.FailureWindow)
	if err != nil {
		return nil, err
	}

	lockDecision, err := s.lockouts.Evaluate(ctx, attempt.AccountID, assessment, failures)
	if err != nil {
		return nil, err
	}

	return &Decision{
		Attempt:     attempt,
		Assessment:  assessment,
		Lockout:     &lockDecision.State,
		NewlyLocked: lockDecision.NewlyLocked,
		MFARequired: attempt.Success() && assessment.Tier != models.TierLow,
	}, nil
}

func (s *AssessmentService) notify(ctx context.Context, decision *Decision) {
	if decision.NewlyLocked {
		if err := s.notifier.NotifyAccountLocked(ctx, decision.Lockout); err != nil {
			s.logger.Error("failed to send lockout notification",
				slog.String("account_id", decision.Lockout.AccountID),
				slog.Any("error", err))
		}
	}

	if decision.Attempt.Success() && decision.Assessment.Tier == models.TierHigh {
		if err := s.notifier.NotifyHighRiskLogin(ctx, decision.Assessment); err != nil {
			s.logger.Error("failed to send high-risk notification",
				slog.String("account_id", decision.Assessment.AccountID),
				slog.Any("error", err))
		}
	}
}

// IsStoreUnavailable reports whether the error means the pipeline failed
// closed on backing-store trouble rather than on caller input.
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, models.ErrStoreUnavailable)
}

// keyedMutex serializes work per string key. Entries are reference
// counted and removed when the last holder releases.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[string]*keyedMutexEntry
}

type keyedMutexEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.entries == nil {
		k.entries = make(map[string]*keyedMutexEntry)
	}
	entry, ok := k.entries[key]
	if !ok {
		entry = &keyedMutexEntry{}
		k.entries[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}
