// Package inference defines the AI generation client interface and the
// classification-driven error taxonomy shared by its implementations.
package inference

import (
	"context"
	"time"

	"github.com/khusa71/kardu/internal/flashcard"
)

//go:generate mockgen -source=interface.go -destination=../mocks/inference/mock_client.go -package=mock_inference

// Client is the external AI collaborator. Implementations retry retryable
// failures internally; errors returned to the caller keep their
// classification intact.
type Client interface {
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error)
}

// GenerateRequest describes one generation call for a single content chunk.
type GenerateRequest struct {
	Text          string
	Subject       string
	Difficulty    flashcard.Difficulty
	FocusAreas    []string
	CustomContext string
	CardCount     int
}

// GenerateResponse holds normalized flashcards produced from one chunk.
type GenerateResponse struct {
	Cards []flashcard.Flashcard
	Model string
}

// RetryConfig controls the capped exponential backoff applied to retryable
// errors: delay = min(BaseDelay * 2^attempt, MaxDelay).
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryConfig returns the retry settings used in production: at most
// 2 retries (3 total attempts) with 500ms base delay capped at 3s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 2,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   3 * time.Second,
	}
}
