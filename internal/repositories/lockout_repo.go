package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/palisadeauth/palisade/internal/database"
	"github.com/palisadeauth/palisade/internal/models"
)

// LockoutRepository handles database operations for per-account lockout state
type LockoutRepository struct {
	db *database.DB
}

// NewLockoutRepository creates a new LockoutRepository
func NewLockoutRepository(db *database.DB) *LockoutRepository {
	return &LockoutRepository{db: db}
}

// Get returns the lockout state for an account. Accounts with no row are
// implicitly unlocked and returned as such, not as an error.
func (r *LockoutRepository) Get(ctx context.Context, accountID string) (*models.LockoutState, error) {
	query := `
		SELECT account_id, is_locked, locked_until, reason, updated_at
		FROM account_lockouts
		WHERE account_id = $1
	`

	var state models.LockoutState
	err := r.db.Pool.QueryRow(ctx, query, accountID).Scan(
		&state.AccountID,
		&state.IsLocked,
		&state.LockedUntil,
		&state.Reason,
		&state.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return &models.LockoutState{AccountID: accountID, UpdatedAt: time.Now()}, nil
	}
	if err != nil {
		return nil, err
	}

	return &state, nil
}

// Upsert writes the lockout state for an account
func (r *LockoutRepository) Upsert(ctx context.Context, state *models.LockoutState) error {
	query := `
		INSERT INTO account_lockouts (account_id, is_locked, locked_until, reason, updated_at)
		VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP)
		ON CONFLICT (account_id) DO UPDATE SET
			is_locked = EXCLUDED.is_locked,
			locked_until = EXCLUDED.locked_until,
			reason = EXCLUDED.reason,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err := r.db.Pool.Exec(ctx, query,
		state.AccountID,
		state.IsLocked,
		state.LockedUntil,
		state.Reason,
	)

	return database.MapPostgresError(err)
}

// Unlock clears the lock for an account
func (r *LockoutRepository) Unlock(ctx context.Context, accountID string) error {
	query := `
		UPDATE account_lockouts
		SET is_locked = false, locked_until = NULL, reason = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE account_id = $1
	`

	_, err := r.db.Pool.Exec(ctx, query, accountID)
	return database.MapPostgresError(err)
}

// DeleteExpired removes lock rows whose expiry passed before the given time.
// Expired locks are already treated as unlocked on read; this is hygiene.
func (r *LockoutRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM account_lockouts WHERE is_locked = true AND locked_until IS NOT NULL AND locked_until < $1`
	tag, err := r.db.Pool.Exec(ctx, query, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
