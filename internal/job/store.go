package job

import (
	"sync"
	"time"
)

// Store is an in-memory job registry. It enforces two invariants: progress
// never moves backwards, and terminal jobs never change again.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	now  func() time.Time

	// progressHook observes every progress checkpoint a job reaches.
	progressHook func(jobID string, progress int)
}

func NewStore() *Store {
	return &Store{jobs: make(map[string]*Job), now: time.Now}
}

// Create registers a new pending job.
func (s *Store) Create(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job.Status = StatusPending
	job.CreatedAt = s.now()
	job.UpdatedAt = job.CreatedAt
	s.jobs[job.ID] = job
}

// Get returns a snapshot copy of a job.
func (s *Store) Get(jobID string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return Job{}, &ErrNotFound{JobID: jobID}
	}
	return *job, nil
}

// SetProcessing moves a pending job into processing.
func (s *Store) SetProcessing(jobID string) {
	s.update(jobID, func(job *Job) {
		job.Status = StatusProcessing
	})
}

// SetProgress advances a job's progress and current task. Regressions are
// ignored so concurrent late writers cannot move the bar backwards.
func (s *Store) SetProgress(jobID string, progress int, task string) {
	s.update(jobID, func(job *Job) {
		if progress > job.Progress {
			job.Progress = progress
		}
		job.CurrentTask = task
		if s.progressHook != nil {
			s.progressHook(jobID, job.Progress)
		}
	})
}

// Complete transitions a job to completed at 100% and attaches results
// through apply.
func (s *Store) Complete(jobID string, apply func(job *Job)) {
	s.update(jobID, func(job *Job) {
		apply(job)
		job.Status = StatusCompleted
		job.Progress = 100
		job.CurrentTask = "completed"
	})
}

// Fail transitions a job to failed with a readable message. Progress and
// partial state are retained for diagnostics.
func (s *Store) Fail(jobID, message string) {
	s.update(jobID, func(job *Job) {
		job.Status = StatusFailed
		job.ErrorMessage = message
		job.CurrentTask = "failed"
	})
}

// Apply runs a mutation against a live job under the store lock.
func (s *Store) Apply(jobID string, apply func(job *Job)) {
	s.update(jobID, apply)
}

func (s *Store) update(jobID string, apply func(job *Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok || job.Status.IsTerminal() {
		return
	}
	apply(job)
	job.UpdatedAt = s.now()
}
