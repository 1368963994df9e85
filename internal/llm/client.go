package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ayalabs/aya/internal/config"
)

// Message is one chat turn sent to the model.
type Message struct {
	Role    string
	Content string
}

// Client talks to a DeepSeek-compatible chat completion API. Without an
// API key it degrades to a canned demo reply so the bot stays usable in
// local development.
type Client struct {
	api         *openai.Client
	model       string
	maxTokens   int
	temperature float64
	timeout     time.Duration
	demoMode    bool
}

const demoReply = "(демо) Я слышу тебя, расскажи больше."

func NewClient(cfg *config.ProviderConfig) *Client {
	c := &Client{
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     time.Duration(cfg.TimeoutSec) * time.Second,
	}
	if c.timeout <= 0 {
		c.timeout = config.DefaultChatTimeoutSec * time.Second
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		c.demoMode = true
		return c
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	c.api = openai.NewClientWithConfig(apiCfg)
	return c
}

// DemoMode reports whether the client runs without an API key.
func (c *Client) DemoMode() bool {
	return c.demoMode
}

// Chat sends the conversation and returns the assistant reply.
func (c *Client) Chat(ctx context.Context, messages []Message) (string, error) {
	if c.demoMode {
		return demoReply, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages:  make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	if c.temperature > 0 {
		req.Temperature = float32(c.temperature)
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty choices")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("chat completion: empty content")
	}
	return content, nil
}

// Complete is the two-message shorthand used by extraction and
// summarization.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	return c.Chat(ctx, []Message{
		{Role: openai.ChatMessageRoleSystem, Content: system},
		{Role: openai.ChatMessageRoleUser, Content: user},
	})
}

// HealthCheck verifies API reachability and auth. Returns ok plus a
// short human-readable detail for the /health command.
func (c *Client) HealthCheck(ctx context.Context) (bool, string) {
	if c.demoMode {
		return false, "api key not set"
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := c.api.ListModels(ctx); err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && (apiErr.HTTPStatusCode == 401 || apiErr.HTTPStatusCode == 403) {
			return false, fmt.Sprintf("auth error (%d)", apiErr.HTTPStatusCode)
		}
		return false, fmt.Sprintf("network error: %v", err)
	}
	return true, "auth ok"
}
