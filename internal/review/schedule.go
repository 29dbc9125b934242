// Package review computes spaced-repetition intervals for flashcards.
package review

import (
	"math"
	"time"
)

// Status is a card's place in the learning lifecycle.
type Status string

const (
	StatusNew       Status = "new"
	StatusReviewing Status = "reviewing"
	StatusKnown     Status = "known"
)

// Rating is the difficulty the learner reported on the last review.
type Rating string

const (
	RatingEasy   Rating = "easy"
	RatingMedium Rating = "medium"
	RatingHard   Rating = "hard"
)

const maxKnownIntervalDays = 180

var easeFactors = map[Rating]float64{
	RatingEasy:   2.8,
	RatingMedium: 2.5,
	RatingHard:   2.2,
}

// baseIntervalDays is the first interval in days per (status, rating).
// Reviewing cards rated hard come back within the same day.
var baseIntervalDays = map[Status]map[Rating]float64{
	StatusKnown:     {RatingEasy: 7, RatingMedium: 4, RatingHard: 2},
	StatusReviewing: {RatingEasy: 3, RatingMedium: 1, RatingHard: 0.5},
}

// NextReview returns when a card should come back given its status, the
// rating from the review that just happened, and how many reviews it has
// already had. New cards cycle on fixed short intervals until they graduate;
// reviewing and known cards grow geometrically by the rating's ease factor,
// with known intervals capped at 180 days.
func NextReview(status Status, rating Rating, reviewCount int, now time.Time) time.Time {
	bases, ok := baseIntervalDays[status]
	if !ok {
		return now.Add(newCardInterval(reviewCount))
	}

	base, ok := bases[rating]
	if !ok {
		base = bases[RatingMedium]
	}

	var days float64
	switch {
	case reviewCount <= 0:
		days = base
	case reviewCount == 1:
		days = base * 1.5
	default:
		ease := easeFactors[rating]
		if ease == 0 {
			ease = easeFactors[RatingMedium]
		}
		days = base * math.Pow(ease, float64(reviewCount-1))
	}

	if status == StatusKnown && days > maxKnownIntervalDays {
		days = maxKnownIntervalDays
	}

	// Sub-day intervals keep their hour-level precision; anything longer
	// rounds to whole days.
	if days < 1 {
		return now.Add(time.Duration(days * 24 * float64(time.Hour)))
	}
	return now.AddDate(0, 0, int(math.Round(days)))
}

// newCardInterval is the fixed re-exposure ladder for cards that have not
// graduated out of the new state yet.
func newCardInterval(reviewCount int) time.Duration {
	switch {
	case reviewCount <= 0:
		return 10 * time.Minute
	case reviewCount == 1:
		return time.Hour
	default:
		return 4 * time.Hour
	}
}
