package models

import "time"

// RiskTier is the coarse bucket summarizing a numeric risk score
type RiskTier string

const (
	TierLow    RiskTier = "LOW"
	TierMedium RiskTier = "MEDIUM"
	TierHigh   RiskTier = "HIGH"
)

// Risk factors recorded on an assessment for audit/dashboard display
const (
	FactorNovelDevice    = "novel_device"
	FactorRecentFailures = "recent_failures"
	FactorFailureBurst   = "failure_burst"
	FactorVelocity       = "velocity"
)

// TierThresholds holds the score boundaries between tiers.
// Boundaries are inclusive toward the higher tier: a score equal to
// High is classified HIGH.
type TierThresholds struct {
	Medium int // scores >= Medium and < High are MEDIUM
	High   int // scores >= High are HIGH
}

// DefaultTierThresholds returns the standard LOW 0-39 / MEDIUM 40-59 / HIGH 60+ split
func DefaultTierThresholds() TierThresholds {
	return TierThresholds{Medium: 40, High: 60}
}

// Tier classifies an integer score into a risk tier
func (t TierThresholds) Tier(score int) RiskTier {
	switch {
	case score >= t.High:
		return TierHigh
	case score >= t.Medium:
		return TierMedium
	default:
		return TierLow
	}
}

// RiskAssessment is the scored result for one login attempt.
// Created once per attempt, never mutated, persisted for audit.
type RiskAssessment struct {
	ID         string    `db:"id"`
	AccountID  string    `db:"account_id"`
	SourceID   string    `db:"source_id"`
	Score      int       `db:"score"`
	Tier       RiskTier  `db:"tier"`
	Factors    []string  `db:"factors"`
	AssessedAt time.Time `db:"assessed_at"`
}

// HasFactor reports whether the given factor contributed to the score
func (ra *RiskAssessment) HasFactor(name string) bool {
	for _, f := range ra.Factors {
		if f == name {
			return true
		}
	}
	return false
}
