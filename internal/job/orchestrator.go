package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/khusa71/kardu/internal/chunker"
	"github.com/khusa71/kardu/internal/contentcache"
	"github.com/khusa71/kardu/internal/export"
	"github.com/khusa71/kardu/internal/extraction"
	"github.com/khusa71/kardu/internal/flashcard"
	"github.com/khusa71/kardu/internal/inference"
	"github.com/khusa71/kardu/internal/quota"
)

// SubscriptionChecker is the billing collaborator gating the advanced
// quality tier.
type SubscriptionChecker interface {
	HasAdvancedTier(ctx context.Context, userID string) (bool, error)
}

// Submission is one upload handed to Submit. Path must point at a scratch
// copy owned by the job; the orchestrator removes it when the job ends.
type Submission struct {
	UserID    string
	Path      string
	Filename  string
	FileSize  int64
	DeckName  string
	PageCount int
	Params    Params
}

// Orchestrator validates submissions, admits them against the user's
// quota, and runs each accepted job as an independent asynchronous task.
// Jobs share no mutable state except the cache and the quota manager.
type Orchestrator struct {
	store         *Store
	extractor     extraction.Extractor
	client        inference.Client
	cache         *contentcache.Cache
	quota         *quota.Manager
	exporter      *export.Exporter
	billing       SubscriptionChecker
	validate      *validator.Validate
	maxChunkSize  int
	defaultModel  string
	advancedModel string
}

// Option adjusts orchestrator construction.
type Option func(*Orchestrator)

// WithChunkSize overrides the chunk size limit.
func WithChunkSize(size int) Option {
	return func(o *Orchestrator) { o.maxChunkSize = size }
}

// WithModels sets the model names used per quality tier.
func WithModels(basic, advanced string) Option {
	return func(o *Orchestrator) {
		o.defaultModel = basic
		o.advancedModel = advanced
	}
}

func NewOrchestrator(
	store *Store,
	extractor extraction.Extractor,
	client inference.Client,
	cache *contentcache.Cache,
	quotaManager *quota.Manager,
	exporter *export.Exporter,
	billing SubscriptionChecker,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		store:        store,
		extractor:    extractor,
		client:       client,
		cache:        cache,
		quota:        quotaManager,
		exporter:     exporter,
		billing:      billing,
		validate:     validator.New(),
		maxChunkSize: chunker.DefaultMaxChunkSize,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Submit validates the submission, checks the subscription and quota
// gates, creates a pending job, and schedules it. It returns the job id
// immediately; all later failures surface through the job's status.
func (o *Orchestrator) Submit(ctx context.Context, sub Submission) (string, error) {
	if err := o.validate.Struct(sub.Params); err != nil {
		return "", &ValidationError{Message: validationMessage(err)}
	}

	if sub.Params.QualityTier == QualityTierAdvanced {
		ok, err := o.billing.HasAdvancedTier(ctx, sub.UserID)
		if err != nil {
			return "", fmt.Errorf("billing.HasAdvancedTier() > %w", err)
		}
		if !ok {
			return "", &ValidationError{Message: "advanced quality tier requires an active subscription"}
		}
	}

	decision, err := o.quota.CanUpload(ctx, sub.UserID, sub.PageCount)
	if err != nil {
		return "", fmt.Errorf("quota.CanUpload() > %w", err)
	}
	if !decision.Allowed {
		return "", &quota.ExceededError{Reason: decision.Reason, NextReset: o.quota.NextReset()}
	}

	job := &Job{
		ID:              uuid.NewString(),
		UserID:          sub.UserID,
		Params:          sub.Params,
		SourceFilename:  sub.Filename,
		FileSize:        sub.FileSize,
		PageCount:       sub.PageCount,
		RegeneratedFrom: sub.Params.RegenerateFrom,
	}
	o.store.Create(job)

	go o.run(context.WithoutCancel(ctx), job.ID, sub, decision.PagesWillProcess)
	return job.ID, nil
}

// Status returns the polling snapshot for a job.
func (o *Orchestrator) Status(jobID string) (StatusSnapshot, error) {
	job, err := o.store.Get(jobID)
	if err != nil {
		return StatusSnapshot{}, err
	}
	return StatusSnapshot{
		JobID:        job.ID,
		Status:       job.Status,
		Progress:     job.Progress,
		CurrentTask:  job.CurrentTask,
		ErrorMessage: job.ErrorMessage,
	}, nil
}

// Job returns a full snapshot of a job, including cards and artifacts.
func (o *Orchestrator) Job(jobID string) (Job, error) {
	return o.store.Get(jobID)
}

// run executes one job through its fixed checkpoints. The scratch upload
// is removed on every exit path.
func (o *Orchestrator) run(ctx context.Context, jobID string, sub Submission, pagesAllowed int) {
	defer func() {
		if sub.Path == "" {
			return
		}
		if err := os.Remove(sub.Path); err != nil && !os.IsNotExist(err) {
			slog.Default().Warn("failed to remove scratch upload", "path", sub.Path, "error", err)
		}
	}()

	o.store.SetProcessing(jobID)
	o.store.SetProgress(jobID, 10, "extracting text")

	result, err := o.extractor.Extract(ctx, sub.Path, pagesAllowed)
	if err != nil {
		o.store.Fail(jobID, fmt.Sprintf("could not read the document: %v", err))
		return
	}
	if strings.TrimSpace(result.Text) == "" {
		o.store.Fail(jobID, "the document contains no extractable text")
		return
	}

	pagesProcessed := result.PageCount
	if pagesProcessed > pagesAllowed {
		pagesProcessed = pagesAllowed
	}
	// The processing attempt consumes the allowance even if a later stage
	// fails; only submissions rejected before job creation avoid it.
	if err := o.quota.Increment(ctx, sub.UserID, pagesProcessed); err != nil {
		slog.Default().Warn("failed to record quota usage", "job_id", jobID, "error", err)
	}
	o.store.Apply(jobID, func(job *Job) {
		// The extractor's observed page count replaces the client-declared one.
		job.PageCount = result.PageCount
		job.PagesProcessed = pagesProcessed
	})
	o.store.SetProgress(jobID, 25, "text extracted")

	params := sub.Params
	hash := contentcache.Key(result.Text, params.Subject, params.Difficulty, params.FocusAreas)

	cards, hit := o.cache.Get(hash)
	if hit {
		o.store.Apply(jobID, func(job *Job) { job.CacheHit = true })
		o.store.SetProgress(jobID, 80, "reusing cached flashcards")
	} else {
		cards, err = o.generate(ctx, jobID, result.Text, params)
		if err != nil {
			o.store.Fail(jobID, fmt.Sprintf("flashcard generation failed: %v", err))
			return
		}
		o.cache.Put(hash, cards, contentcache.Metadata{
			Subject:    params.Subject,
			Difficulty: params.Difficulty,
			FocusAreas: params.FocusAreas,
			SourceText: result.Text,
		})
	}

	artifacts, err := o.produceArtifacts(sub.DeckName, cards, params.ExportFormats)
	if err != nil {
		o.store.Fail(jobID, fmt.Sprintf("could not export the deck: %v", err))
		return
	}
	o.store.SetProgress(jobID, 90, "artifacts exported")

	o.store.Complete(jobID, func(job *Job) {
		job.Cards = cards
		job.Artifacts = artifacts
		job.Model = o.modelFor(params.QualityTier)
	})
}

// generate chunks the text and calls the AI client per chunk, advancing
// progress from 40 to 75. A failure on the first chunk aborts the job; a
// failure on a later chunk is tolerated and the partial deck is kept.
func (o *Orchestrator) generate(ctx context.Context, jobID, text string, params Params) ([]flashcard.Flashcard, error) {
	o.store.SetProgress(jobID, 30, "chunking content")
	chunks := chunker.Chunk(text, o.maxChunkSize)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no usable content after chunking")
	}
	perChunk := chunker.DistributeCount(params.CardCount, len(chunks))
	o.store.SetProgress(jobID, 35, "content chunked")

	o.store.SetProgress(jobID, 40, "generating flashcards")
	var cards []flashcard.Flashcard
	for i, chunk := range chunks {
		if len(cards) >= params.CardCount {
			break
		}
		response, err := o.client.Generate(ctx, inference.GenerateRequest{
			Text:          chunk,
			Subject:       params.Subject,
			Difficulty:    params.Difficulty,
			FocusAreas:    params.FocusAreas,
			CustomContext: params.CustomContext,
			CardCount:     perChunk,
		})
		if err != nil {
			if i == 0 {
				return nil, err
			}
			slog.Default().Warn("chunk generation failed, keeping partial results",
				"job_id", jobID, "chunk", i, "error", err)
			continue
		}
		cards = append(cards, response.Cards...)

		progress := 40 + (i+1)*35/len(chunks)
		o.store.SetProgress(jobID, progress, "generating flashcards")
	}

	if len(cards) > params.CardCount {
		cards = cards[:params.CardCount]
	}
	if len(cards) == 0 {
		return nil, fmt.Errorf("no flashcards were generated")
	}
	return cards, nil
}

func (o *Orchestrator) produceArtifacts(deckName string, cards []flashcard.Flashcard, formats []export.Format) ([]Artifact, error) {
	if len(formats) == 0 {
		formats = []export.Format{export.FormatCSV, export.FormatJSON}
	}

	artifacts := make([]Artifact, 0, len(formats))
	for _, format := range formats {
		path, err := o.exporter.Produce(deckName, cards, format)
		if err != nil {
			return nil, fmt.Errorf("exporter.Produce(%s) > %w", format, err)
		}
		artifacts = append(artifacts, Artifact{Format: format, Path: path})
	}
	return artifacts, nil
}

func (o *Orchestrator) modelFor(tier QualityTier) string {
	if tier == QualityTierAdvanced && o.advancedModel != "" {
		return o.advancedModel
	}
	return o.defaultModel
}

// validationMessage flattens validator errors into one readable line.
func validationMessage(err error) string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err.Error()
	}
	messages := make([]string, 0, len(validationErrs))
	for _, fieldErr := range validationErrs {
		messages = append(messages, fmt.Sprintf("%s failed %s validation", fieldErr.Field(), fieldErr.Tag()))
	}
	return strings.Join(messages, "; ")
}
