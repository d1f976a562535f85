package handlers

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/palisadeauth/palisade/internal/models"
	"github.com/palisadeauth/palisade/internal/repositories"
	"github.com/palisadeauth/palisade/internal/services"
	pkglogger "github.com/palisadeauth/palisade/pkg/logger"
)

func testAuditLogger() *pkglogger.AuditLogger {
	return pkglogger.NewAuditLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// MockOrchestrator implements AssessmentOrchestrator for testing
type MockOrchestrator struct {
	PrecheckFunc      func(ctx context.Context, accountID, sourceID string) (*services.PrecheckResult, error)
	RecordOutcomeFunc func(ctx context.Context, attempt *models.LoginAttempt) (*services.Decision, error)
}

func (m *MockOrchestrator) Precheck(ctx context.Context, accountID, sourceID string) (*services.PrecheckResult, error) {
	if m.PrecheckFunc != nil {
		return m.PrecheckFunc(ctx, accountID, sourceID)
	}
	return &services.PrecheckResult{
		RateLimit: services.RateLimitResult{Allowed: true, Limit: 5, Remaining: 4, ResetAt: time.Now().Add(time.Minute)},
		Lockout:   &models.LockoutState{AccountID: accountID},
		Allowed:   true,
	}, nil
}

func (m *MockOrchestrator) RecordOutcome(ctx context.Context, attempt *models.LoginAttempt) (*services.Decision, error) {
	if m.RecordOutcomeFunc != nil {
		return m.RecordOutcomeFunc(ctx, attempt)
	}
	return &services.Decision{
		Attempt: attempt,
		Assessment: &models.RiskAssessment{
			ID:         "assessment-1",
			AccountID:  attempt.AccountID,
			SourceID:   attempt.SourceID,
			Score:      0,
			Tier:       models.TierLow,
			AssessedAt: time.Now(),
		},
		Lockout: &models.LockoutState{AccountID: attempt.AccountID},
	}, nil
}

// MockLockoutAdmin implements LockoutAdmin for testing
type MockLockoutAdmin struct {
	StatusFunc      func(ctx context.Context, accountID string) (*models.LockoutState, error)
	AdminUnlockFunc func(ctx context.Context, accountID string) error
}

func (m *MockLockoutAdmin) Status(ctx context.Context, accountID string) (*models.LockoutState, error) {
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, accountID)
	}
	return &models.LockoutState{AccountID: accountID}, nil
}

func (m *MockLockoutAdmin) AdminUnlock(ctx context.Context, accountID string) error {
	if m.AdminUnlockFunc != nil {
		return m.AdminUnlockFunc(ctx, accountID)
	}
	return nil
}

// MockAssessmentReader implements AssessmentReader for testing
type MockAssessmentReader struct {
	ListByAccountFunc      func(ctx context.Context, accountID string, limit int) ([]*models.RiskAssessment, error)
	ListByMinimumScoreFunc func(ctx context.Context, minScore int, since time.Time, limit int) ([]*models.RiskAssessment, error)
}

func (m *MockAssessmentReader) ListByAccount(ctx context.Context, accountID string, limit int) ([]*models.RiskAssessment, error) {
	if m.ListByAccountFunc != nil {
		return m.ListByAccountFunc(ctx, accountID, limit)
	}
	return []*models.RiskAssessment{}, nil
}

func (m *MockAssessmentReader) ListByMinimumScore(ctx context.Context, minScore int, since time.Time, limit int) ([]*models.RiskAssessment, error) {
	if m.ListByMinimumScoreFunc != nil {
		return m.ListByMinimumScoreFunc(ctx, minScore, since, limit)
	}
	return []*models.RiskAssessment{}, nil
}

// MockSourceReader implements SourceReader for testing
type MockSourceReader struct {
	ListHighFailureSourcesFunc func(ctx context.Context, since time.Time, minFailures, limit int) ([]repositories.SourceFailureCount, error)
}

func (m *MockSourceReader) ListHighFailureSources(ctx context.Context, since time.Time, minFailures, limit int) ([]repositories.SourceFailureCount, error) {
	if m.ListHighFailureSourcesFunc != nil {
		return m.ListHighFailureSourcesFunc(ctx, since, minFailures, limit)
	}
	return []repositories.SourceFailureCount{}, nil
}
