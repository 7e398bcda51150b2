package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const extractionPrompt = `You are given a webpage and a goal. Extract relevant content from the page in relation to the goal. If the content is insufficient or the page is mostly empty (like logins, loaders, blank pages), you must reply with: "%s". Otherwise, respond in markdown.

Goal: %s

Page:
%s`

// OpenAISummarizer implements Summarizer on the OpenAI chat completion API.
type OpenAISummarizer struct {
	client openai.Client
	model  string
}

// OpenAIOption configures an OpenAISummarizer.
type OpenAIOption func(*OpenAISummarizer)

// WithModel sets the completion model.
func WithModel(model string) OpenAIOption {
	return func(s *OpenAISummarizer) {
		s.model = model
	}
}

// NewOpenAISummarizer creates a summarizer authenticated with apiKey.
func NewOpenAISummarizer(apiKey string, opts ...OpenAIOption) *OpenAISummarizer {
	s := &OpenAISummarizer{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  "gpt-4o",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summarize asks the model for goal-relevant content from pageText.
func (s *OpenAISummarizer) Summarize(ctx context.Context, goal, pageText string) (string, error) {
	prompt := fmt.Sprintf(extractionPrompt, InsufficientContentMarker, goal, pageText)

	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("completion request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if strings.Contains(content, InsufficientContentMarker) {
		return "", ErrInsufficientContent
	}
	return content, nil
}
