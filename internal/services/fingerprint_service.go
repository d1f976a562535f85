package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/palisadeauth/palisade/internal/models"
)

// FingerprintConfig holds configuration for known-device tracking
type FingerprintConfig struct {
	// KnownWindow is the trailing window inside which a previously
	// successful fingerprint still counts as known.
	KnownWindow time.Duration
}

// FingerprintService derives known-vs-novel device classification from the
// attempt history. Matching is exact-string only; there is no fuzzy
// matching across fingerprint versions.
type FingerprintService struct {
	store  AttemptStore
	config FingerprintConfig
	logger *slog.Logger
}

// NewFingerprintService creates a new FingerprintService
func NewFingerprintService(store AttemptStore, config FingerprintConfig, logger *slog.Logger) *FingerprintService {
	return &FingerprintService{
		store:  store,
		config: config,
		logger: logger,
	}
}

// IsKnownDevice reports whether the fingerprint has at least one successful
// attempt for this account inside the trailing window, strictly before the
// given reference time. An absent fingerprint is never known.
func (s *FingerprintService) IsKnownDevice(ctx context.Context, accountID string, fingerprint *string, before time.Time) (bool, error) {
	if fingerprint == nil || *fingerprint == "" {
		return false, nil
	}

	since := before.Add(-s.config.KnownWindow)
	known, err := s.store.HasKnownDevice(ctx, accountID, *fingerprint, since, before)
	if err != nil {
		s.logger.Error("failed to check device fingerprint",
			slog.String("account_id", accountID),
			slog.Any("error", err))
		return false, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}

	return known, nil
}
