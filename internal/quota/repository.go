package quota

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Repository defines storage operations for quota records. Increment must be
// a single atomic update so concurrent uploads by one user never lose counts.
type Repository interface {
	Get(ctx context.Context, userID string) (*Record, error)
	Increment(ctx context.Context, userID string, pages int, period time.Time) error
	SetTier(ctx context.Context, userID string, tier Tier) error
}

// DBRepository implements Repository using MySQL.
type DBRepository struct {
	db *sqlx.DB
}

// NewDBRepository creates a new DBRepository.
func NewDBRepository(db *sqlx.DB) *DBRepository {
	return &DBRepository{db: db}
}

// Get returns the quota record for a user, or nil if none exists yet.
func (r *DBRepository) Get(ctx context.Context, userID string) (*Record, error) {
	var record Record
	err := r.db.GetContext(ctx, &record,
		"SELECT * FROM quota_records WHERE user_id = ?", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("db.GetContext(quota_record) > %w", err)
	}
	return &record, nil
}

// Increment adds one upload and the processed pages in a single statement.
// A pending monthly reset is folded into the same write: when the stored
// period differs from the given one, counters restart from this increment
// instead of accumulating, so the reset is never double-applied.
func (r *DBRepository) Increment(ctx context.Context, userID string, pages int, period time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO quota_records (user_id, tier, uploads_this_month, pages_this_month, period_start, updated_at)
		VALUES (?, ?, 1, ?, ?, NOW())
		ON DUPLICATE KEY UPDATE
			uploads_this_month = IF(period_start = VALUES(period_start), uploads_this_month + 1, 1),
			pages_this_month = IF(period_start = VALUES(period_start), pages_this_month + VALUES(pages_this_month), VALUES(pages_this_month)),
			period_start = VALUES(period_start),
			updated_at = NOW()`,
		userID, TierFree, pages, period)
	if err != nil {
		return fmt.Errorf("db.ExecContext(increment quota_record) > %w", err)
	}
	return nil
}

// SetTier updates a user's subscription tier, creating the record if needed.
func (r *DBRepository) SetTier(ctx context.Context, userID string, tier Tier) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO quota_records (user_id, tier, uploads_this_month, pages_this_month, period_start, updated_at)
		VALUES (?, ?, 0, 0, ?, NOW())
		ON DUPLICATE KEY UPDATE tier = VALUES(tier), updated_at = NOW()`,
		userID, tier, monthStart(time.Now()))
	if err != nil {
		return fmt.Errorf("db.ExecContext(set quota tier) > %w", err)
	}
	return nil
}
