// Package quota tracks and enforces per-user monthly upload and page
// allowances with a lazy calendar-month reset.
package quota

import (
	"fmt"
	"time"
)

// Tier is the subscription level gating monthly limits.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// Limits are the monthly allowances of a tier. MonthlyPages == 0 means no
// monthly page budget applies.
type Limits struct {
	MonthlyUploads  int
	MaxPagesPerFile int
	MonthlyPages    int
}

var tierLimits = map[Tier]Limits{
	TierFree:    {MonthlyUploads: 5, MaxPagesPerFile: 20, MonthlyPages: 100},
	TierPremium: {MonthlyUploads: 100, MaxPagesPerFile: 200, MonthlyPages: 0},
}

// Limits returns the allowances for the tier, defaulting to free.
func (t Tier) Limits() Limits {
	if limits, ok := tierLimits[t]; ok {
		return limits
	}
	return tierLimits[TierFree]
}

// Record is one user's usage for the current period. PeriodStart is the
// first day of the month the counters belong to; counters from an earlier
// month are treated as zero on read and reset on the next write.
type Record struct {
	UserID           string    `db:"user_id"`
	Tier             Tier      `db:"tier"`
	UploadsThisMonth int       `db:"uploads_this_month"`
	PagesThisMonth   int       `db:"pages_this_month"`
	PeriodStart      time.Time `db:"period_start"`
	UpdatedAt        time.Time `db:"updated_at"`
}

// Decision is the outcome of an upload admission check.
type Decision struct {
	Allowed          bool
	Reason           string
	PagesWillProcess int
}

// ExceededError reports a denied upload with the next reset date for user
// messaging.
type ExceededError struct {
	Reason    string
	NextReset time.Time
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("quota exceeded: %s", e.Reason)
}

// monthStart returns midnight UTC on the first day of t's month.
func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// nextReset returns midnight UTC on the first day of the month after t.
func nextReset(t time.Time) time.Time {
	return monthStart(t).AddDate(0, 1, 0)
}

// daysUntilReset rounds up to whole days remaining before the next reset.
func daysUntilReset(t time.Time) int {
	remaining := nextReset(t).Sub(t)
	days := int(remaining / (24 * time.Hour))
	if remaining%(24*time.Hour) != 0 {
		days++
	}
	return days
}
