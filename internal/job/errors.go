package job

import "fmt"

// ValidationError rejects a submission synchronously, before any job
// record exists.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid submission: %s", e.Message)
}

// ErrNotFound is returned when a job id is unknown.
type ErrNotFound struct {
	JobID string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("job %s not found", e.JobID)
}
