package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/khusa71/kardu/internal/contentcache"
	"github.com/khusa71/kardu/internal/export"
	"github.com/khusa71/kardu/internal/extraction"
	"github.com/khusa71/kardu/internal/flashcard"
	"github.com/khusa71/kardu/internal/inference"
	"github.com/khusa71/kardu/internal/inference/openai"
	"github.com/khusa71/kardu/internal/job"
	"github.com/khusa71/kardu/internal/quota"
)

// localUserID identifies the machine owner for CLI quota tracking.
const localUserID = "local"

// allowAllBilling treats the CLI user as subscribed; the advanced tier
// gate only matters for the hosted server.
type allowAllBilling struct{}

func (allowAllBilling) HasAdvancedTier(_ context.Context, _ string) (bool, error) {
	return true, nil
}

// difficultyValue is a pflag.Value that only accepts known difficulties.
type difficultyValue flashcard.Difficulty

func (d *difficultyValue) Set(val string) error {
	candidate := flashcard.Difficulty(val)
	if !candidate.IsValid() {
		return fmt.Errorf("must be one of beginner, intermediate or advanced")
	}
	*d = difficultyValue(candidate)
	return nil
}

func (d *difficultyValue) String() string {
	return string(*d)
}

func (d *difficultyValue) Type() string {
	return "difficulty"
}

var _ pflag.Value = (*difficultyValue)(nil)

func newGenerateCommand() *cobra.Command {
	var (
		subject     string
		difficulty  = difficultyValue(flashcard.DifficultyIntermediate)
		cardCount   int
		qualityTier string
		focusAreas  []string
		userContext string
		formats     []string
		deckName    string
		pageCount   int
	)

	command := &cobra.Command{
		Use:   "generate <document>",
		Short: "Generate a flashcard deck from a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if cfg.OpenAI.APIKey == "" {
				return fmt.Errorf("OPENAI_API_KEY environment variable is required")
			}

			documentPath := args[0]
			if deckName == "" {
				deckName = strings.TrimSuffix(filepath.Base(documentPath), filepath.Ext(documentPath))
			}

			fmt.Printf("Using OpenAI provider (model: %s)\n", cfg.OpenAI.Model)
			openaiClient := openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, inference.DefaultRetryConfig())
			defer func() {
				_ = openaiClient.Close()
			}()

			cache, err := contentcache.New(cfg.Cache.Directory)
			if err != nil {
				return fmt.Errorf("contentcache.New() > %w", err)
			}

			orchestrator := job.NewOrchestrator(
				job.NewStore(),
				extraction.NewCommandExtractor(cfg.Pipeline.ExtractorCommand),
				openaiClient,
				cache,
				quota.NewManager(quota.NewMemoryRepository()),
				export.NewExporter(cfg.Exports.Directory),
				allowAllBilling{},
				job.WithChunkSize(cfg.Pipeline.MaxChunkSize),
				job.WithModels(cfg.OpenAI.Model, cfg.OpenAI.AdvancedModel),
			)

			info, err := os.Stat(documentPath)
			if err != nil {
				return fmt.Errorf("os.Stat(%s) > %w", documentPath, err)
			}

			scratchPath, err := copyToScratch(documentPath, cfg.Pipeline.ScratchDirectory)
			if err != nil {
				return err
			}

			params := job.Params{
				Subject:       subject,
				Difficulty:    flashcard.Difficulty(difficulty),
				CardCount:     cardCount,
				QualityTier:   job.QualityTier(qualityTier),
				FocusAreas:    focusAreas,
				CustomContext: userContext,
			}
			for _, format := range formats {
				params.ExportFormats = append(params.ExportFormats, export.Format(format))
			}

			jobID, err := orchestrator.Submit(cmd.Context(), job.Submission{
				UserID:    localUserID,
				Path:      scratchPath,
				Filename:  filepath.Base(documentPath),
				FileSize:  info.Size(),
				DeckName:  deckName,
				PageCount: pageCount,
				Params:    params,
			})
			if err != nil {
				return err
			}

			finished, err := waitForJob(orchestrator, jobID)
			if err != nil {
				return err
			}
			if finished.Status == job.StatusFailed {
				color.Red("Generation failed: %s", finished.ErrorMessage)
				return fmt.Errorf("job %s failed", jobID)
			}

			color.Green("Generated %d flashcards", len(finished.Cards))
			for _, artifact := range finished.Artifacts {
				fmt.Printf("  %s: %s\n", artifact.Format, artifact.Path)
			}
			return nil
		},
	}

	command.Flags().StringVar(&subject, "subject", "", "subject of the deck (required)")
	command.Flags().Var(&difficulty, "difficulty", "card difficulty: beginner, intermediate or advanced")
	command.Flags().IntVar(&cardCount, "count", 20, "number of flashcards to generate (1-100)")
	command.Flags().StringVar(&qualityTier, "quality", "basic", "quality tier: basic or advanced")
	command.Flags().StringSliceVar(&focusAreas, "focus", nil, "focus areas to emphasize")
	command.Flags().StringVar(&userContext, "context", "", "extra context for the generator")
	command.Flags().StringSliceVar(&formats, "formats", []string{"csv", "json"}, "export formats: pdf, csv, json, yaml")
	command.Flags().StringVar(&deckName, "name", "", "deck name (defaults to the document name)")
	command.Flags().IntVar(&pageCount, "pages", 1, "page count of the document")
	_ = command.MarkFlagRequired("subject")

	return command
}

// waitForJob polls the job until it reaches a terminal state, printing
// progress as it advances.
func waitForJob(orchestrator *job.Orchestrator, jobID string) (job.Job, error) {
	lastProgress := -1
	for {
		snapshot, err := orchestrator.Status(jobID)
		if err != nil {
			return job.Job{}, err
		}
		if snapshot.Progress != lastProgress {
			fmt.Printf("  [%3d%%] %s\n", snapshot.Progress, snapshot.CurrentTask)
			lastProgress = snapshot.Progress
		}
		if snapshot.Status.IsTerminal() {
			return orchestrator.Job(jobID)
		}
		time.Sleep(200 * time.Millisecond)
	}
}

// copyToScratch copies the user's document into the scratch directory so
// the pipeline's cleanup never touches the original.
func copyToScratch(documentPath, scratchDir string) (string, error) {
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return "", fmt.Errorf("os.MkdirAll(%s) > %w", scratchDir, err)
	}

	in, err := os.Open(documentPath)
	if err != nil {
		return "", fmt.Errorf("os.Open(%s) > %w", documentPath, err)
	}
	defer in.Close()

	scratchPath := filepath.Join(scratchDir, uuid.NewString()+filepath.Ext(documentPath))
	out, err := os.Create(scratchPath)
	if err != nil {
		return "", fmt.Errorf("os.Create(%s) > %w", scratchPath, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		os.Remove(scratchPath)
		return "", fmt.Errorf("io.Copy() > %w", err)
	}
	return scratchPath, nil
}
