package quota

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(now time.Time) (*Manager, *MemoryRepository) {
	repo := NewMemoryRepository()
	manager := NewManager(repo)
	manager.now = func() time.Time { return now }
	return manager, repo
}

func TestManager_CanUpload(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)

	t.Run("free user at the upload limit is denied with reason", func(t *testing.T) {
		manager, repo := newTestManager(now)
		for i := 0; i < TierFree.Limits().MonthlyUploads; i++ {
			require.NoError(t, repo.Increment(ctx, "user-1", 5, monthStart(now)))
		}

		decision, err := manager.CanUpload(ctx, "user-1", 10)
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
		assert.Contains(t, decision.Reason, "upload limit of 5")
		assert.Contains(t, decision.Reason, "resets in 21 days")
	})

	t.Run("premium user below the limit is allowed with clamped pages", func(t *testing.T) {
		manager, repo := newTestManager(now)
		require.NoError(t, repo.SetTier(ctx, "user-2", TierPremium))
		for i := 0; i < TierPremium.Limits().MonthlyUploads-1; i++ {
			require.NoError(t, repo.Increment(ctx, "user-2", 1, monthStart(now)))
		}

		decision, err := manager.CanUpload(ctx, "user-2", 500)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		assert.Equal(t, TierPremium.Limits().MaxPagesPerFile, decision.PagesWillProcess)
	})

	t.Run("small file is processed in full", func(t *testing.T) {
		manager, _ := newTestManager(now)

		decision, err := manager.CanUpload(ctx, "user-3", 8)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		assert.Equal(t, 8, decision.PagesWillProcess)
	})

	t.Run("pages clamp to the remaining monthly budget", func(t *testing.T) {
		manager, repo := newTestManager(now)
		// Free tier: 100 pages per month; use 90 of them across 4 uploads.
		for i := 0; i < 3; i++ {
			require.NoError(t, repo.Increment(ctx, "user-4", 20, monthStart(now)))
		}
		require.NoError(t, repo.Increment(ctx, "user-4", 30, monthStart(now)))

		decision, err := manager.CanUpload(ctx, "user-4", 20)
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
		assert.Equal(t, 10, decision.PagesWillProcess)
	})

	t.Run("exhausted page budget denies with reason", func(t *testing.T) {
		manager, repo := newTestManager(now)
		// Below the upload limit but at the page budget.
		repo.records["user-5"] = Record{
			UserID:           "user-5",
			Tier:             TierFree,
			UploadsThisMonth: 2,
			PagesThisMonth:   100,
			PeriodStart:      monthStart(now),
		}

		decision, err := manager.CanUpload(ctx, "user-5", 10)
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
		assert.Contains(t, decision.Reason, "page budget of 100")
	})
}

func TestManager_Increment(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)

	t.Run("two increments in one month accumulate", func(t *testing.T) {
		manager, _ := newTestManager(now)

		require.NoError(t, manager.Increment(ctx, "user-1", 7))
		require.NoError(t, manager.Increment(ctx, "user-1", 3))

		record, err := manager.GetQuota(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, 2, record.UploadsThisMonth)
		assert.Equal(t, 10, record.PagesThisMonth)
	})

	t.Run("increment in a new month folds the reset into the write", func(t *testing.T) {
		manager, repo := newTestManager(now)
		lastMonth := monthStart(now).AddDate(0, -1, 0)
		require.NoError(t, repo.Increment(ctx, "user-1", 50, lastMonth))
		require.NoError(t, repo.Increment(ctx, "user-1", 30, lastMonth))

		require.NoError(t, manager.Increment(ctx, "user-1", 4))

		record, err := manager.GetQuota(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, 1, record.UploadsThisMonth)
		assert.Equal(t, 4, record.PagesThisMonth)
		assert.Equal(t, monthStart(now), record.PeriodStart)
	})
}

func TestManager_GetQuota(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)

	t.Run("unknown user reads as empty free-tier usage", func(t *testing.T) {
		manager, _ := newTestManager(now)

		record, err := manager.GetQuota(ctx, "nobody")
		require.NoError(t, err)
		assert.Equal(t, TierFree, record.Tier)
		assert.Zero(t, record.UploadsThisMonth)
		assert.Equal(t, monthStart(now), record.PeriodStart)
	})

	t.Run("stale record reads as zero usage without being rewritten", func(t *testing.T) {
		manager, repo := newTestManager(now)
		lastMonth := monthStart(now).AddDate(0, -1, 0)
		require.NoError(t, repo.Increment(ctx, "user-1", 50, lastMonth))

		// Two consecutive reads apply the reset view identically.
		for i := 0; i < 2; i++ {
			record, err := manager.GetQuota(ctx, "user-1")
			require.NoError(t, err)
			assert.Zero(t, record.UploadsThisMonth)
			assert.Zero(t, record.PagesThisMonth)
		}

		// The stored record still belongs to the old period.
		stored, err := repo.Get(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, lastMonth, stored.PeriodStart)
		assert.Equal(t, 1, stored.UploadsThisMonth)
	})
}
