// Package llm provides the chat completion client used for classification.
package llm

import (
	"context"

	"mailtriage/pkg/httputil"

	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultModel   = "openai/gpt-oss-20b"
)

// Client wraps an OpenAI-compatible completion API. It targets OpenRouter
// by default but works against any endpoint speaking the same protocol.
type Client struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

type ClientConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
}

func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 50
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.1
	}

	apiConfig := openai.DefaultConfig(cfg.APIKey)
	apiConfig.BaseURL = baseURL
	apiConfig.HTTPClient = httputil.NewClient(httputil.LLMClientConfig())

	return &Client{
		client:      openai.NewClientWithConfig(apiConfig),
		model:       model,
		maxTokens:   maxTokens,
		temperature: float32(temperature),
	}
}

// CompleteWithSystem runs a two-message chat completion and returns the
// assistant's text. An empty choice list yields an empty string.
func (c *Client) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: userPrompt,
			},
		},
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", nil
	}

	return resp.Choices[0].Message.Content, nil
}
