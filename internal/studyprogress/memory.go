package studyprogress

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryRepository is an in-process Repository for single-node CLI use and
// tests.
type MemoryRepository struct {
	mu      sync.Mutex
	records map[string]Progress
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{records: make(map[string]Progress)}
}

func memoryKey(userID, jobID string, cardIndex int) string {
	return fmt.Sprintf("%s/%s/%d", userID, jobID, cardIndex)
}

func (r *MemoryRepository) Find(_ context.Context, userID, jobID string, cardIndex int) (*Progress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[memoryKey(userID, jobID, cardIndex)]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

func (r *MemoryRepository) FindByJob(_ context.Context, userID, jobID string) ([]Progress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var records []Progress
	for _, record := range r.records {
		if record.UserID == userID && record.JobID == jobID {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CardIndex < records[j].CardIndex
	})
	return records, nil
}

func (r *MemoryRepository) FindDue(_ context.Context, userID string, asOf time.Time) ([]Progress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var due []Progress
	for _, record := range r.records {
		if record.UserID == userID && !record.NextReviewAt.After(asOf) {
			due = append(due, record)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].NextReviewAt.Before(due[j].NextReviewAt)
	})
	return due, nil
}

func (r *MemoryRepository) Upsert(_ context.Context, progress *Progress) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[memoryKey(progress.UserID, progress.JobID, progress.CardIndex)] = *progress
	return nil
}
