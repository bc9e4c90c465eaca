package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	domain "github.com/subwatch/subwatch/internal/domain/ai"
	"github.com/subwatch/subwatch/internal/infra/ai/prompt"
)

const (
	defaultModel    = "gpt-4o-mini"
	maxOutputTokens = 500
	temperature     = 0.2
)

type Client struct {
	*openai.Client
	Model string
}

func NewClient(apiKey, model string) *Client {
	return &Client{Client: openai.NewClient(apiKey), Model: model}
}

// ExtractSubscription sends the email text with the extraction prompt.
// A non-success API response maps to ErrExtraction (quota errors keep
// their own sentinel); an unparseable completion returns the empty
// Extraction, by the fail-open policy in the prompt package.
func (c *Client) ExtractSubscription(ctx context.Context, emailText string) (domain.Extraction, error) {
	content, err := c.complete(ctx,
		prompt.ExtractionSystemPrompt(),
		prompt.ExtractionUserPrompt(emailText))
	if err != nil {
		return domain.Extraction{}, err
	}
	return prompt.ParseExtraction(content), nil
}

// EnhanceSubscription looks up pricing/category for a service name.
func (c *Client) EnhanceSubscription(ctx context.Context, serviceName string) (*domain.Enhancement, error) {
	content, err := c.complete(ctx,
		prompt.EnhanceSystemPrompt(),
		prompt.EnhanceUserPrompt(serviceName))
	if err != nil {
		return nil, err
	}
	var out domain.Enhancement
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, fmt.Errorf("parse enhancement: %w", err)
	}
	return &out, nil
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	model := c.Model
	if model == "" {
		model = defaultModel
	}
	req := openai.ChatCompletionRequest{
		Model:       model,
		Temperature: temperature,
		MaxTokens:   maxOutputTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}

	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == 429 {
			return "", domain.ErrQuotaExceeded
		}
		return "", fmt.Errorf("%w: %v", domain.ErrExtraction, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", domain.ErrExtraction)
	}
	return resp.Choices[0].Message.Content, nil
}
