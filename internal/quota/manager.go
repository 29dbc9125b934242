package quota

import (
	"context"
	"fmt"
	"time"
)

// Manager enforces per-user monthly allowances on top of a Repository.
type Manager struct {
	repo Repository
	now  func() time.Time
}

func NewManager(repo Repository) *Manager {
	return &Manager{repo: repo, now: time.Now}
}

// GetQuota returns the user's current usage with the lazy monthly reset
// applied: a record written in an earlier month reads as zero usage. The
// zeroed state is persisted by the next Increment, not here.
func (m *Manager) GetQuota(ctx context.Context, userID string) (Record, error) {
	period := monthStart(m.now())

	record, err := m.repo.Get(ctx, userID)
	if err != nil {
		return Record{}, fmt.Errorf("repo.Get() > %w", err)
	}
	if record == nil {
		return Record{UserID: userID, Tier: TierFree, PeriodStart: period}, nil
	}
	if !record.PeriodStart.Equal(period) {
		return Record{
			UserID:      userID,
			Tier:        record.Tier,
			PeriodStart: period,
			UpdatedAt:   record.UpdatedAt,
		}, nil
	}
	return *record, nil
}

// CanUpload decides whether a user may upload a document with pageCount
// pages. The upload count is a hard stop; the page count is clamped to the
// tier's per-file cap and to any remaining monthly page budget, and the
// upload is denied only when the clamped value reaches zero.
func (m *Manager) CanUpload(ctx context.Context, userID string, pageCount int) (Decision, error) {
	record, err := m.GetQuota(ctx, userID)
	if err != nil {
		return Decision{}, err
	}
	limits := record.Tier.Limits()

	if record.UploadsThisMonth >= limits.MonthlyUploads {
		return Decision{
			Allowed: false,
			Reason: fmt.Sprintf("monthly upload limit of %d reached; quota resets in %d days",
				limits.MonthlyUploads, daysUntilReset(m.now())),
		}, nil
	}

	pages := pageCount
	if pages > limits.MaxPagesPerFile {
		pages = limits.MaxPagesPerFile
	}
	if limits.MonthlyPages > 0 {
		remaining := limits.MonthlyPages - record.PagesThisMonth
		if pages > remaining {
			pages = remaining
		}
	}
	if pages <= 0 {
		return Decision{
			Allowed: false,
			Reason: fmt.Sprintf("monthly page budget of %d pages exhausted; quota resets in %d days",
				limits.MonthlyPages, daysUntilReset(m.now())),
		}, nil
	}

	return Decision{Allowed: true, PagesWillProcess: pages}, nil
}

// Increment records one upload with the given number of processed pages as
// a single atomic write, folding any pending monthly reset into it.
func (m *Manager) Increment(ctx context.Context, userID string, pagesProcessed int) error {
	if err := m.repo.Increment(ctx, userID, pagesProcessed, monthStart(m.now())); err != nil {
		return fmt.Errorf("repo.Increment() > %w", err)
	}
	return nil
}

// NextReset returns when the current quota period ends.
func (m *Manager) NextReset() time.Time {
	return nextReset(m.now())
}
