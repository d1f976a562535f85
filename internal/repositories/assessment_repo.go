package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/palisadeauth/palisade/internal/database"
	"github.com/palisadeauth/palisade/internal/models"
)

// AssessmentRepository persists risk assessments for audit and dashboards
type AssessmentRepository struct {
	db *database.DB
}

// NewAssessmentRepository creates a new AssessmentRepository
func NewAssessmentRepository(db *database.DB) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

// Insert stores a new assessment. Assessments are write-once.
func (r *AssessmentRepository) Insert(ctx context.Context, assessment *models.RiskAssessment) error {
	if assessment.ID == "" {
		assessment.ID = uuid.New().String()
	}

	query := `
		INSERT INTO risk_assessments (id, account_id, source_id, score, tier, factors, assessed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		assessment.ID,
		assessment.AccountID,
		assessment.SourceID,
		assessment.Score,
		string(assessment.Tier),
		pq.Array(assessment.Factors),
		assessment.AssessedAt,
	)

	return database.MapPostgresError(err)
}

// ListByAccount returns the most recent assessments for an account, newest first
func (r *AssessmentRepository) ListByAccount(ctx context.Context, accountID string, limit int) ([]*models.RiskAssessment, error) {
	query := `
		SELECT id, account_id, source_id, score, tier, factors, assessed_at
		FROM risk_assessments
		WHERE account_id = $1
		ORDER BY assessed_at DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAssessments(rows)
}

// RecentTiers returns the tiers of the latest assessments for an account,
// newest first. The lockout manager counts the consecutive-HIGH prefix.
func (r *AssessmentRepository) RecentTiers(ctx context.Context, accountID string, limit int) ([]models.RiskTier, error) {
	query := `
		SELECT tier FROM risk_assessments
		WHERE account_id = $1
		ORDER BY assessed_at DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tiers []models.RiskTier
	for rows.Next() {
		var tier string
		if err := rows.Scan(&tier); err != nil {
			return nil, err
		}
		tiers = append(tiers, models.RiskTier(tier))
	}

	return tiers, rows.Err()
}

// ListByMinimumScore returns assessments at or above a score since the given
// time, highest first. Used by the high-risk dashboard endpoint.
func (r *AssessmentRepository) ListByMinimumScore(ctx context.Context, minScore int, since time.Time, limit int) ([]*models.RiskAssessment, error) {
	query := `
		SELECT id, account_id, source_id, score, tier, factors, assessed_at
		FROM risk_assessments
		WHERE score >= $1 AND assessed_at >= $2
		ORDER BY score DESC, assessed_at DESC
		LIMIT $3
	`

	rows, err := r.db.Pool.Query(ctx, query, minScore, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanAssessments(rows)
}

// DeleteOlderThan removes assessments past the retention boundary
func (r *AssessmentRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM risk_assessments WHERE assessed_at < $1`
	tag, err := r.db.Pool.Exec(ctx, query, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type assessmentRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanAssessments(rows assessmentRows) ([]*models.RiskAssessment, error) {
	var assessments []*models.RiskAssessment
	for rows.Next() {
		var a models.RiskAssessment
		var tier string
		if err := rows.Scan(&a.ID, &a.AccountID, &a.SourceID, &a.Score, &tier, pq.Array(&a.Factors), &a.AssessedAt); err != nil {
			return nil, err
		}
		a.Tier = models.RiskTier(tier)
		assessments = append(assessments, &a)
	}
	return assessments, rows.Err()
}
