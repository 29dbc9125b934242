// Package job orchestrates document-to-flashcard generation jobs through
// extraction, caching, AI generation, and export.
package job

import (
	"time"

	"github.com/khusa71/kardu/internal/export"
	"github.com/khusa71/kardu/internal/flashcard"
)

// Status is a job's place in its lifecycle. completed and failed are
// terminal; no transition ever leaves them.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether the status admits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// QualityTier selects the generation quality level. The advanced tier is
// gated by the user's subscription.
type QualityTier string

const (
	QualityTierBasic    QualityTier = "basic"
	QualityTierAdvanced QualityTier = "advanced"
)

// Params are the user-supplied generation parameters, validated before a
// job is created.
type Params struct {
	Subject       string               `json:"subject" validate:"required"`
	Difficulty    flashcard.Difficulty `json:"difficulty" validate:"oneof=beginner intermediate advanced"`
	CardCount     int                  `json:"card_count" validate:"min=1,max=100"`
	QualityTier   QualityTier          `json:"quality_tier" validate:"oneof=basic advanced"`
	FocusAreas    []string             `json:"focus_areas,omitempty"`
	CustomContext string               `json:"custom_context,omitempty"`
	ExportFormats []export.Format      `json:"export_formats,omitempty" validate:"dive,oneof=pdf csv json yaml"`

	// RegenerateFrom references an earlier job whose deck this one
	// replaces. Regeneration creates a fresh job; failed jobs are never
	// resumed.
	RegenerateFrom string `json:"regenerate_from,omitempty"`
}

// Artifact is one exported deck file.
type Artifact struct {
	Format export.Format `json:"format"`
	Path   string        `json:"path"`
}

// Job is the full state of one generation job. Snapshots returned by the
// store are copies; only the store mutates the canonical record.
type Job struct {
	ID              string                `json:"id"`
	UserID          string                `json:"user_id"`
	Status          Status                `json:"status"`
	Progress        int                   `json:"progress"`
	CurrentTask     string                `json:"current_task"`
	ErrorMessage    string                `json:"error_message,omitempty"`
	Params          Params                `json:"params"`
	Cards           []flashcard.Flashcard `json:"cards,omitempty"`
	Artifacts       []Artifact            `json:"artifacts,omitempty"`
	SourceFilename  string                `json:"source_filename,omitempty"`
	FileSize        int64                 `json:"file_size"`
	PageCount       int                   `json:"page_count"`
	PagesProcessed  int                   `json:"pages_processed"`
	Model           string                `json:"model,omitempty"`
	CacheHit        bool                  `json:"cache_hit"`
	RegeneratedFrom string                `json:"regenerated_from,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// StatusSnapshot is the polling view of a job.
type StatusSnapshot struct {
	JobID        string `json:"job_id"`
	Status       Status `json:"status"`
	Progress     int    `json:"progress"`
	CurrentTask  string `json:"current_task"`
	ErrorMessage string `json:"error_message,omitempty"`
}
