package quota

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository is an in-process Repository for single-node CLI use and
// tests. The mutex gives Increment the same atomicity the SQL upsert has.
type MemoryRepository struct {
	mu      sync.Mutex
	records map[string]Record
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]Record)}
}

func (r *MemoryRepository) Get(_ context.Context, userID string) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[userID]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

func (r *MemoryRepository) Increment(_ context.Context, userID string, pages int, period time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[userID]
	if !ok || !record.PeriodStart.Equal(period) {
		tier := TierFree
		if ok {
			tier = record.Tier
		}
		record = Record{UserID: userID, Tier: tier, PeriodStart: period}
	}
	record.UploadsThisMonth++
	record.PagesThisMonth += pages
	record.UpdatedAt = time.Now()
	r.records[userID] = record
	return nil
}

func (r *MemoryRepository) SetTier(_ context.Context, userID string, tier Tier) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[userID]
	if !ok {
		record = Record{UserID: userID, PeriodStart: monthStart(time.Now())}
	}
	record.Tier = tier
	record.UpdatedAt = time.Now()
	r.records[userID] = record
	return nil
}
