package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/palisadeauth/palisade/internal/models"
)

// RiskConfig holds the scoring weights and windows. All values are
// configuration defaults, not fixed constants.
type RiskConfig struct {
	NovelDeviceWeight   int
	FailureWeight       int
	FailureWeightCap    int
	FailureBurstWeight  int
	FailureBurstMinimum int
	VelocityWeight      int
	VelocityThreshold   int
	VelocityWindow      time.Duration
	FailureLookback     time.Duration
	Thresholds          models.TierThresholds
}

// RiskService computes a risk assessment for a recorded login attempt.
// Factors are additive and the total is clamped to [0,100].
type RiskService struct {
	history      *HistoryService
	fingerprints *FingerprintService
	config       RiskConfig
	logger       *slog.Logger
}

// NewRiskService creates a new RiskService
func NewRiskService(history *HistoryService, fingerprints *FingerprintService, config RiskConfig, logger *slog.Logger) *RiskService {
	return &RiskService{
		history:      history,
		fingerprints: fingerprints,
		config:       config,
		logger:       logger,
	}
}

// Score computes the risk assessment for an attempt that has already been
// recorded in the history store. The current attempt itself counts toward
// failure and velocity signals but never toward its own device novelty.
func (s *RiskService) Score(ctx context.Context, attempt *models.LoginAttempt) (*models.RiskAssessment, error) {
	score := 0
	var factors []string

	known, err := s.fingerprints.IsKnownDevice(ctx, attempt.AccountID, attempt.DeviceFingerprint, attempt.AttemptTime)
	if err != nil {
		return nil, err
	}
	novelDevice := !known
	if novelDevice {
		score += s.config.NovelDeviceWeight
		factors = append(factors, models.FactorNovelDevice)
	}

	failures, err := s.history.RecentFailures(ctx, attempt.AccountID, s.config.FailureLookback)
	if err != nil {
		return nil, err
	}
	// The attempt being scored is already in the store; keep prior
	// failures separate so a burst means "failures before this attempt".
	priorFailures := failures
	if !attempt.Success() && priorFailures > 0 {
		priorFailures--
	}

	if failures > 0 {
		contribution := failures * s.config.FailureWeight
		if contribution > s.config.FailureWeightCap {
			contribution = s.config.FailureWeightCap
		}
		score += contribution
		factors = append(factors, models.FactorRecentFailures)
	}

	if attempt.Success() && priorFailures >= s.config.FailureBurstMinimum {
		score += s.config.FailureBurstWeight
		factors = append(factors, models.FactorFailureBurst)
	}

	velocity, err := s.history.AttemptVelocity(ctx, attempt.AccountID, s.config.VelocityWindow)
	if err != nil {
		return nil, err
	}
	if velocity > s.config.VelocityThreshold {
		score += s.config.VelocityWeight
		factors = append(factors, models.FactorVelocity)
	}

	// A successful login from a never-seen device is at least MEDIUM,
	// even when no other signal fired.
	if attempt.Success() && novelDevice && score < s.config.Thresholds.Medium {
		score = s.config.Thresholds.Medium
	}

	if score > 100 {
		score = 100
	}

	assessment := &models.RiskAssessment{
		ID:         uuid.New().String(),
		AccountID:  attempt.AccountID,
		SourceID:   attempt.SourceID,
		Score:      score,
		Tier:       s.config.Thresholds.Tier(score),
		Factors:    factors,
		AssessedAt: attempt.AttemptTime,
	}

	if assessment.Tier != models.TierLow {
		s.logger.Info("elevated risk assessment",
			slog.String("account_id", attempt.AccountID),
			slog.Int("score", score),
			slog.String("tier", string(assessment.Tier)),
			slog.Any("factors", factors))
	}

	return assessment, nil
}
