// Package studyprogress persists per-card review state and schedules the
// next review for each card a user studies.
package studyprogress

import (
	"time"

	"github.com/khusa71/kardu/internal/review"
)

// Progress is one user's review state for a single card of a generated
// deck, keyed by (user, job, card index). It is created on the first
// review and updated in place afterwards; it is never deleted while the
// job it belongs to exists.
type Progress struct {
	UserID           string        `db:"user_id"`
	JobID            string        `db:"job_id"`
	CardIndex        int           `db:"card_index"`
	Status           review.Status `db:"status"`
	ReviewCount      int           `db:"review_count"`
	LastReviewedAt   time.Time     `db:"last_reviewed_at"`
	NextReviewAt     time.Time     `db:"next_review_at"`
	DifficultyRating review.Rating `db:"difficulty_rating"`
}
