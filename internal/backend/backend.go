// Package backend calls an OpenAI-compatible chat-completions endpoint to
// generate answers, and classifies its failures.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultBaseURL   = "https://generativelanguage.googleapis.com/v1beta/openai"
	DefaultModel     = "gemini-3-flash-preview"
	DefaultMaxTokens = 1000
)

// ErrEmptyResponse is returned when the completion carries no usable text.
var ErrEmptyResponse = errors.New("backend returned an empty response")

// Options configures NewClient.
type Options struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// Client generates answers through go-openai.
type Client struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewClient applies defaults for empty fields.
func NewClient(o Options) *Client {
	if o.BaseURL == "" {
		o.BaseURL = DefaultBaseURL
	}
	if o.Model == "" {
		o.Model = DefaultModel
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}

	config := openai.DefaultConfig(o.APIKey)
	config.BaseURL = strings.TrimRight(o.BaseURL, "/")
	if o.Timeout > 0 {
		config.HTTPClient = &http.Client{Timeout: o.Timeout}
	}

	return &Client{
		client:    openai.NewClientWithConfig(config),
		model:     o.Model,
		maxTokens: o.MaxTokens,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Generate sends the system prompt and question and returns the trimmed
// answer text.
func (c *Client) Generate(ctx context.Context, systemPrompt, question string) (string, error) {
	ctx, span := otel.Tracer("backend/Client").Start(ctx, "Generate",
		trace.WithAttributes(attribute.String("llm.model", c.model)))
	defer span.End()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: "Question: " + question},
		},
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
