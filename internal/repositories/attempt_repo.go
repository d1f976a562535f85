package repositories

import (
	"context"
	"time"

	"github.com/palisadeauth/palisade/internal/database"
	"github.com/palisadeauth/palisade/internal/models"
)

// AttemptRepository handles database operations for the attempt history store
type AttemptRepository struct {
	db *database.DB
}

// NewAttemptRepository creates a new AttemptRepository
func NewAttemptRepository(db *database.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

// RecordAttempt appends a login attempt. The insert is idempotent under
// retry: a second write with the same (account, attempt_time, source) is
// silently dropped by the unique index.
func (r *AttemptRepository) RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	query := `
		INSERT INTO login_attempts (account_id, source_id, user_agent, device_fingerprint, outcome, attempt_time, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (account_id, source_id, attempt_time) DO NOTHING
	`

	_, err := r.db.Pool.Exec(ctx, query,
		attempt.AccountID,
		attempt.SourceID,
		attempt.UserAgent,
		attempt.DeviceFingerprint,
		attempt.Outcome,
		attempt.AttemptTime,
		attempt.ExpiresAt,
	)

	return database.MapPostgresError(err)
}

// CountFailures returns the number of failed attempts for an account within a time window
func (r *AttemptRepository) CountFailures(ctx context.Context, accountID string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM login_attempts
		WHERE account_id = $1 AND outcome = 'failure' AND attempt_time >= $2 AND expires_at > CURRENT_TIMESTAMP
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, accountID, since).Scan(&count)
	return count, database.MapPostgresError(err)
}

// CountAttempts returns the total number of attempts (any outcome) for an
// account within a time window. Used for velocity scoring.
func (r *AttemptRepository) CountAttempts(ctx context.Context, accountID string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM login_attempts
		WHERE account_id = $1 AND attempt_time >= $2 AND expires_at > CURRENT_TIMESTAMP
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, accountID, since).Scan(&count)
	return count, database.MapPostgresError(err)
}

// RecentAttempts returns the most recent attempts for an account, newest first
func (r *AttemptRepository) RecentAttempts(ctx context.Context, accountID string, limit int) ([]*models.LoginAttempt, error) {
	query := `
		SELECT id, account_id, source_id, user_agent, device_fingerprint, outcome, attempt_time, expires_at
		FROM login_attempts
		WHERE account_id = $1 AND expires_at > CURRENT_TIMESTAMP
		ORDER BY attempt_time DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []*models.LoginAttempt
	for rows.Next() {
		var a models.LoginAttempt
		if err := rows.Scan(&a.ID, &a.AccountID, &a.SourceID, &a.UserAgent, &a.DeviceFingerprint, &a.Outcome, &a.AttemptTime, &a.ExpiresAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, &a)
	}

	return attempts, rows.Err()
}

// HasKnownDevice reports whether the fingerprint appears in the account's
// history with at least one successful attempt inside [since, before).
// The upper bound lets the scorer exclude the attempt being scored.
func (r *AttemptRepository) HasKnownDevice(ctx context.Context, accountID, fingerprint string, since, before time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM login_attempts
			WHERE account_id = $1 AND device_fingerprint = $2 AND outcome = 'success'
				AND attempt_time >= $3 AND attempt_time < $4
		)
	`

	var known bool
	err := r.db.Pool.QueryRow(ctx, query, accountID, fingerprint, since, before).Scan(&known)
	return known, database.MapPostgresError(err)
}

// CountFailuresBySource returns the number of failed attempts from a source identifier within a time window
func (r *AttemptRepository) CountFailuresBySource(ctx context.Context, sourceID string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM login_attempts
		WHERE source_id = $1 AND outcome = 'failure' AND attempt_time >= $2 AND expires_at > CURRENT_TIMESTAMP
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, sourceID, since).Scan(&count)
	return count, database.MapPostgresError(err)
}

// SourceFailureCount pairs a source identifier with its failed attempt count
type SourceFailureCount struct {
	SourceID string
	Failures int
}

// ListHighFailureSources returns source identifiers that accumulated at
// least minFailures failed attempts since the given time, worst first
func (r *AttemptRepository) ListHighFailureSources(ctx context.Context, since time.Time, minFailures, limit int) ([]SourceFailureCount, error) {
	query := `
		SELECT source_id, COUNT(*) AS failures
		FROM login_attempts
		WHERE outcome = 'failure' AND attempt_time >= $1
		GROUP BY source_id
		HAVING COUNT(*) >= $2
		ORDER BY failures DESC
		LIMIT $3
	`

	rows, err := r.db.Pool.Query(ctx, query, since, minFailures, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []SourceFailureCount
	for rows.Next() {
		var c SourceFailureCount
		if err := rows.Scan(&c.SourceID, &c.Failures); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}

	return counts, rows.Err()
}

// DeleteExpired removes login attempts past their retention expiry
func (r *AttemptRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM login_attempts WHERE expires_at <= CURRENT_TIMESTAMP`
	tag, err := r.db.Pool.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
