package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/palisadeauth/palisade/internal/models"
)

// AttemptStore defines the interface for attempt history database operations
type AttemptStore interface {
	RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error
	CountFailures(ctx context.Context, accountID string, since time.Time) (int, error)
	CountAttempts(ctx context.Context, accountID string, since time.Time) (int, error)
	RecentAttempts(ctx context.Context, accountID string, limit int) ([]*models.LoginAttempt, error)
	HasKnownDevice(ctx context.Context, accountID, fingerprint string, since, before time.Time) (bool, error)
	CountFailuresBySource(ctx context.Context, sourceID string, since time.Time) (int, error)
}

// HistoryConfig holds configuration for the attempt history store
type HistoryConfig struct {
	Retention time.Duration
}

// HistoryService is the append-only attempt history store. Entries are
// immutable once recorded; retention is stamped on write and enforced
// lazily on read plus a background sweep.
type HistoryService struct {
	store  AttemptStore
	config HistoryConfig
	logger *slog.Logger
}

// NewHistoryService creates a new HistoryService
func NewHistoryService(store AttemptStore, config HistoryConfig, logger *slog.Logger) *HistoryService {
	return &HistoryService{
		store:  store,
		config: config,
		logger: logger,
	}
}

// Record appends a login attempt. Recording is idempotent under retry:
// the store de-duplicates on (account, attempt time, source).
//
// Failed attempts are a security signal and must survive caller
// cancellation, so the write for a failure runs on a detached context.
func (s *HistoryService) Record(ctx context.Context, attempt *models.LoginAttempt) error {
	if err := attempt.Validate(); err != nil {
		return err
	}

	if attempt.AttemptTime.IsZero() {
		attempt.AttemptTime = time.Now()
	}
	attempt.ExpiresAt = attempt.AttemptTime.Add(s.config.Retention)

	writeCtx := ctx
	if !attempt.Success() {
		writeCtx = context.WithoutCancel(ctx)
	}

	if err := s.store.RecordAttempt(writeCtx, attempt); err != nil {
		s.logger.Error("failed to record login attempt",
			slog.String("account_id", attempt.AccountID),
			slog.Any("error", err))
		return fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}

	return nil
}

// RecentFailures returns the count of failed attempts for an account within the window
func (s *HistoryService) RecentFailures(ctx context.Context, accountID string, window time.Duration) (int, error) {
	count, err := s.store.CountFailures(ctx, accountID, time.Now().Add(-window))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return count, nil
}

// AttemptVelocity returns the count of attempts of any outcome for an account within the window
func (s *HistoryService) AttemptVelocity(ctx context.Context, accountID string, window time.Duration) (int, error) {
	count, err := s.store.CountAttempts(ctx, accountID, time.Now().Add(-window))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return count, nil
}

// RecentAttempts returns the most recent attempts for an account, newest first
func (s *HistoryService) RecentAttempts(ctx context.Context, accountID string, limit int) ([]*models.LoginAttempt, error) {
	attempts, err := s.store.RecentAttempts(ctx, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return attempts, nil
}

// SourceFailures returns the count of failed attempts from a source identifier within the window
func (s *HistoryService) SourceFailures(ctx context.Context, sourceID string, window time.Duration) (int, error) {
	count, err := s.store.CountFailuresBySource(ctx, sourceID, time.Now().Add(-window))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return count, nil
}
