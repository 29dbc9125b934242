// Package openai implements the inference.Client against the OpenAI chat
// completions API with classification-driven retries.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/avast/retry-go"
	"resty.dev/v3"

	"github.com/khusa71/kardu/internal/flashcard"
	"github.com/khusa71/kardu/internal/inference"
)

type Client struct {
	httpClient  *resty.Client
	model       string
	retryConfig inference.RetryConfig
}

func NewClient(apiKey, model string, retryConfig inference.RetryConfig) *Client {
	client := resty.New()
	client.SetBaseURL("https://api.openai.com/v1")
	client.SetHeader("Authorization", "Bearer "+apiKey)
	client.SetHeader("Content-Type", "application/json")

	return &Client{
		httpClient:  client,
		model:       model,
		retryConfig: retryConfig,
	}
}

func (client *Client) Close() error {
	return client.httpClient.Close()
}

// GetModel returns the model name configured for this client
func (client *Client) GetModel() string {
	return client.model
}

type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float32   `json:"temperature,omitempty"`
}

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

type Choice struct {
	Index        int           `json:"index"`
	Message      ChoiceMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type ChoiceMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Generate implements the inference.Client interface. Retryable failures are
// retried with capped exponential backoff; terminal failures abort
// immediately with no delay, and the classified error propagates as-is.
func (client *Client) Generate(
	ctx context.Context,
	req inference.GenerateRequest,
) (inference.GenerateResponse, error) {
	var result inference.GenerateResponse
	var lastErr error
	if err := retry.Do(
		func() error {
			response, err := client.generate(ctx, req)
			if err != nil {
				lastErr = err
				var genErr *inference.GenerationError
				if errors.As(err, &genErr) && !genErr.Retryable() {
					return retry.Unrecoverable(err)
				}
				return err
			}
			result = response
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(client.retryConfig.MaxRetries)+1),
		retry.Delay(client.retryConfig.BaseDelay),
		retry.MaxDelay(client.retryConfig.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	); err != nil {
		if lastErr != nil {
			return inference.GenerateResponse{}, lastErr
		}
		return inference.GenerateResponse{}, err
	}
	return result, nil
}

func (client *Client) generate(
	ctx context.Context,
	req inference.GenerateRequest,
) (inference.GenerateResponse, error) {
	requestBody := ChatCompletionRequest{
		Model:       client.model,
		Temperature: 0.3,
		Messages: []Message{
			{Role: RoleSystem, Content: systemPrompt},
			{Role: RoleUser, Content: buildUserMessage(req)},
		},
	}

	response, err := client.httpClient.R().
		SetContext(ctx).
		SetBody(requestBody).
		SetResult(&ChatCompletionResponse{}).
		Post("/chat/completions")
	if err != nil {
		return inference.GenerateResponse{}, inference.NewGenerationError(
			inference.ErrorClassNetworkError, "httpClient.Post", err)
	}
	if response.IsError() {
		return inference.GenerateResponse{}, classifyResponse(response.StatusCode(), response.String())
	}

	responseBody := response.Result().(*ChatCompletionResponse)
	if responseBody == nil || len(responseBody.Choices) == 0 {
		return inference.GenerateResponse{}, inference.NewGenerationError(
			inference.ErrorClassInvalidResponse, "empty response body or choices", nil)
	}

	content := responseBody.Choices[0].Message.Content
	if content == "" {
		return inference.GenerateResponse{}, inference.NewGenerationError(
			inference.ErrorClassInvalidResponse, "empty response content", nil)
	}
	slog.Default().Debug("openai response content",
		"model", responseBody.Model,
		"totalTokens", responseBody.Usage.TotalTokens,
	)

	raw, err := parseCards(content)
	if err != nil {
		return inference.GenerateResponse{}, err
	}

	cards := flashcard.Normalize(raw, req.Subject, req.Difficulty)
	if len(cards) == 0 {
		return inference.GenerateResponse{}, inference.NewGenerationError(
			inference.ErrorClassInvalidResponse, "no usable cards after normalization", nil)
	}

	return inference.GenerateResponse{Cards: cards, Model: responseBody.Model}, nil
}

// classifyResponse maps an HTTP error status to the error taxonomy.
// Provider quota exhaustion arrives as 429 with an insufficient_quota code
// and must not be retried.
func classifyResponse(statusCode int, body string) *inference.GenerationError {
	message := fmt.Sprintf("response error %d: %s", statusCode, body)
	switch {
	case statusCode == 429 && strings.Contains(body, "insufficient_quota"):
		return inference.NewGenerationError(inference.ErrorClassQuotaExceeded, message, nil)
	case statusCode == 429:
		return inference.NewGenerationError(inference.ErrorClassRateLimit, message, nil)
	case statusCode >= 500:
		return inference.NewGenerationError(inference.ErrorClassServerError, message, nil)
	default:
		return inference.NewGenerationError(inference.ErrorClassInvalidResponse, message, nil)
	}
}
