package studyprogress

import (
	"context"
	"fmt"
	"time"

	"github.com/khusa71/kardu/internal/review"
)

// Recorder applies a single review to a card's progress record and
// schedules the next one.
type Recorder struct {
	repo Repository
	now  func() time.Time
}

func NewRecorder(repo Repository) *Recorder {
	return &Recorder{repo: repo, now: time.Now}
}

// newCardGraduationReviews is how many short-cycle reviews a new card gets
// before it moves into the long-interval regime.
const newCardGraduationReviews = 3

// RecordReview stores the outcome of one review and returns the updated
// progress. The first review of a card creates its record with status new.
// The next-review timestamp never precedes the review itself.
func (r *Recorder) RecordReview(ctx context.Context, userID, jobID string, cardIndex int, rating review.Rating) (*Progress, error) {
	now := r.now()

	progress, err := r.repo.Find(ctx, userID, jobID, cardIndex)
	if err != nil {
		return nil, fmt.Errorf("repo.Find() > %w", err)
	}
	if progress == nil {
		progress = &Progress{
			UserID:    userID,
			JobID:     jobID,
			CardIndex: cardIndex,
			Status:    review.StatusNew,
		}
	}

	progress.Status = nextStatus(progress.Status, rating, progress.ReviewCount)
	progress.NextReviewAt = review.NextReview(progress.Status, rating, progress.ReviewCount, now)
	if progress.NextReviewAt.Before(now) {
		progress.NextReviewAt = now
	}
	progress.ReviewCount++
	progress.LastReviewedAt = now
	progress.DifficultyRating = rating

	if err := r.repo.Upsert(ctx, progress); err != nil {
		return nil, fmt.Errorf("repo.Upsert() > %w", err)
	}
	return progress, nil
}

// Due returns the cards a user should review now.
func (r *Recorder) Due(ctx context.Context, userID string) ([]Progress, error) {
	records, err := r.repo.FindDue(ctx, userID, r.now())
	if err != nil {
		return nil, fmt.Errorf("repo.FindDue() > %w", err)
	}
	return records, nil
}

// nextStatus moves a card through new -> reviewing -> known. New cards
// graduate after a fixed number of short-cycle reviews, reviewing cards
// become known on an easy rating, and a hard rating on a known card
// demotes it back to reviewing.
func nextStatus(status review.Status, rating review.Rating, reviewCount int) review.Status {
	switch status {
	case review.StatusNew:
		if reviewCount+1 >= newCardGraduationReviews && rating != review.RatingHard {
			return review.StatusReviewing
		}
		return review.StatusNew
	case review.StatusReviewing:
		if rating == review.RatingEasy {
			return review.StatusKnown
		}
		return review.StatusReviewing
	case review.StatusKnown:
		if rating == review.RatingHard {
			return review.StatusReviewing
		}
		return review.StatusKnown
	default:
		return review.StatusNew
	}
}
