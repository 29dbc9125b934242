package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/khusa71/kardu/internal/database"
	"github.com/khusa71/kardu/internal/review"
	"github.com/khusa71/kardu/internal/studyprogress"
)

func newReviewCommand() *cobra.Command {
	reviewCommand := &cobra.Command{
		Use:   "review",
		Short: "Review commands for studying generated decks",
	}

	reviewCommand.AddCommand(newReviewDueCommand())
	reviewCommand.AddCommand(newReviewRecordCommand())

	return reviewCommand
}

func newReviewDueCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "due",
		Short: "List cards that are due for review",
		RunE: func(cmd *cobra.Command, args []string) error {
			recorder, cleanup, err := newRecorder()
			if err != nil {
				return err
			}
			defer cleanup()

			due, err := recorder.Due(cmd.Context(), localUserID)
			if err != nil {
				return err
			}
			if len(due) == 0 {
				fmt.Println("No cards are due. Nice work!")
				return nil
			}

			fmt.Printf("%d cards due:\n", len(due))
			for _, progress := range due {
				fmt.Printf("  job %s card %d (%s, %d reviews, due %s)\n",
					progress.JobID, progress.CardIndex, progress.Status,
					progress.ReviewCount, progress.NextReviewAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

func newReviewRecordCommand() *cobra.Command {
	var (
		jobID     string
		cardIndex int
		rating    string
	)

	command := &cobra.Command{
		Use:   "record",
		Short: "Record the outcome of reviewing a card",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch review.Rating(rating) {
			case review.RatingEasy, review.RatingMedium, review.RatingHard:
			default:
				return fmt.Errorf("rating must be easy, medium or hard")
			}

			recorder, cleanup, err := newRecorder()
			if err != nil {
				return err
			}
			defer cleanup()

			progress, err := recorder.RecordReview(cmd.Context(), localUserID, jobID, cardIndex, review.Rating(rating))
			if err != nil {
				return err
			}

			color.Green("Recorded. Card is %s; next review at %s",
				progress.Status, progress.NextReviewAt.Format("2006-01-02 15:04"))
			return nil
		},
	}

	command.Flags().StringVar(&jobID, "job", "", "job id of the deck (required)")
	command.Flags().IntVar(&cardIndex, "card", 0, "card index within the deck")
	command.Flags().StringVar(&rating, "rating", "", "difficulty rating: easy, medium or hard (required)")
	_ = command.MarkFlagRequired("job")
	_ = command.MarkFlagRequired("rating")

	return command
}

func newRecorder() (*studyprogress.Recorder, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("database.Open() > %w", err)
	}

	cleanup := func() { _ = db.Close() }
	return studyprogress.NewRecorder(studyprogress.NewDBRepository(db)), cleanup, nil
}
