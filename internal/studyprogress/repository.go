package studyprogress

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Repository defines storage operations for study progress records.
type Repository interface {
	Find(ctx context.Context, userID, jobID string, cardIndex int) (*Progress, error)
	FindByJob(ctx context.Context, userID, jobID string) ([]Progress, error)
	FindDue(ctx context.Context, userID string, asOf time.Time) ([]Progress, error)
	Upsert(ctx context.Context, progress *Progress) error
}

// DBRepository implements Repository using MySQL.
type DBRepository struct {
	db *sqlx.DB
}

// NewDBRepository creates a new DBRepository.
func NewDBRepository(db *sqlx.DB) *DBRepository {
	return &DBRepository{db: db}
}

// Find returns the progress record for one card, or nil if the card has
// never been reviewed.
func (r *DBRepository) Find(ctx context.Context, userID, jobID string, cardIndex int) (*Progress, error) {
	var progress Progress
	err := r.db.GetContext(ctx, &progress,
		"SELECT * FROM study_progress WHERE user_id = ? AND job_id = ? AND card_index = ?",
		userID, jobID, cardIndex)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("db.GetContext(study_progress) > %w", err)
	}
	return &progress, nil
}

// FindByJob returns all progress records for one deck in card order.
func (r *DBRepository) FindByJob(ctx context.Context, userID, jobID string) ([]Progress, error) {
	var records []Progress
	if err := r.db.SelectContext(ctx, &records,
		"SELECT * FROM study_progress WHERE user_id = ? AND job_id = ? ORDER BY card_index",
		userID, jobID); err != nil {
		return nil, fmt.Errorf("db.SelectContext(study_progress by job) > %w", err)
	}
	return records, nil
}

// FindDue returns every card whose next review is at or before asOf,
// soonest first.
func (r *DBRepository) FindDue(ctx context.Context, userID string, asOf time.Time) ([]Progress, error) {
	var records []Progress
	if err := r.db.SelectContext(ctx, &records,
		"SELECT * FROM study_progress WHERE user_id = ? AND next_review_at <= ? ORDER BY next_review_at",
		userID, asOf); err != nil {
		return nil, fmt.Errorf("db.SelectContext(due study_progress) > %w", err)
	}
	return records, nil
}

// Upsert writes the full review state of one card, inserting it on the
// first review and replacing it afterwards.
func (r *DBRepository) Upsert(ctx context.Context, progress *Progress) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO study_progress (user_id, job_id, card_index, status, review_count, last_reviewed_at, next_review_at, difficulty_rating)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			status = VALUES(status),
			review_count = VALUES(review_count),
			last_reviewed_at = VALUES(last_reviewed_at),
			next_review_at = VALUES(next_review_at),
			difficulty_rating = VALUES(difficulty_rating)`,
		progress.UserID, progress.JobID, progress.CardIndex, progress.Status,
		progress.ReviewCount, progress.LastReviewedAt, progress.NextReviewAt,
		progress.DifficultyRating)
	if err != nil {
		return fmt.Errorf("db.ExecContext(upsert study_progress) > %w", err)
	}
	return nil
}
