package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/palisadeauth/palisade/internal/repositories"
	"github.com/palisadeauth/palisade/internal/services"
)

// CleanupConfig holds the sweep settings
type CleanupConfig struct {
	Interval            time.Duration
	AssessmentRetention time.Duration
}

// CleanupManager periodically sweeps expired attempt history, stale risk
// assessments, lapsed lockout rows, and idle rate limiter windows.
// Expiry is enforced lazily on the read path; this sweep just reclaims
// the space.
type CleanupManager struct {
	attempts    *repositories.AttemptRepository
	assessments *repositories.AssessmentRepository
	lockouts    *repositories.LockoutRepository
	limiter     *services.SlidingWindowLimiter
	config      CleanupConfig
	logger      *slog.Logger
	stopCh      chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	attempts *repositories.AttemptRepository,
	assessments *repositories.AssessmentRepository,
	lockouts *repositories.LockoutRepository,
	limiter *services.SlidingWindowLimiter,
	config CleanupConfig,
	logger *slog.Logger,
) *CleanupManager {
	return &CleanupManager{
		attempts:    attempts,
		assessments: assessments,
		lockouts:    lockouts,
		limiter:     limiter,
		config:      config,
		logger:      logger,
		stopCh:      make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.config.Interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cm.logger.Info("starting retention sweep")

	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	attemptsDeleted, err := cm.attempts.DeleteExpired(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to sweep expired attempts", slog.Any("error", err))
	}

	assessmentsDeleted, err := cm.assessments.DeleteOlderThan(cleanupCtx, time.Now().Add(-cm.config.AssessmentRetention))
	if err != nil {
		cm.logger.Error("failed to sweep stale assessments", slog.Any("error", err))
	}

	lockoutsDeleted, err := cm.lockouts.DeleteExpired(cleanupCtx, time.Now())
	if err != nil {
		cm.logger.Error("failed to sweep expired lockouts", slog.Any("error", err))
	}

	windowsPurged := cm.limiter.Purge()

	if attemptsDeleted > 0 || assessmentsDeleted > 0 || lockoutsDeleted > 0 || windowsPurged > 0 {
		cm.logger.Info("retention sweep completed",
			slog.Int64("attempts_deleted", attemptsDeleted),
			slog.Int64("assessments_deleted", assessmentsDeleted),
			slog.Int64("lockouts_deleted", lockoutsDeleted),
			slog.Int("rate_windows_purged", windowsPurged))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
