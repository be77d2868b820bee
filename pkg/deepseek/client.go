// Package deepseek wraps the DeepSeek chat API, which speaks the OpenAI
// chat completions protocol.
package deepseek

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://api.deepseek.com/v1"
	defaultModel   = "deepseek-chat"
)

// Client sends single-turn chat prompts.
type Client interface {
	Chat(ctx context.Context, system, prompt string) (string, error)
}

// Option configures the client.
type Option func(*chatClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *chatClient) { c.baseURL = u }
}

// WithModel overrides the default model.
func WithModel(m string) Option {
	return func(c *chatClient) {
		if m != "" {
			c.model = m
		}
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *chatClient) { c.http = hc }
}

type chatClient struct {
	baseURL string
	model   string
	http    *http.Client
	api     *openai.Client
}

// NewClient creates a DeepSeek client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &chatClient{
		baseURL: defaultBaseURL,
		model:   defaultModel,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimSuffix(c.baseURL, "/")
	cfg.HTTPClient = c.http
	c.api = openai.NewClientWithConfig(cfg)
	return c
}

func (c *chatClient) Chat(ctx context.Context, system, prompt string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: 0,
		MaxTokens:   64,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", eris.Errorf("deepseek: chat: status %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
		}
		return "", eris.Wrap(err, "deepseek: chat")
	}
	if len(resp.Choices) == 0 {
		return "", eris.New("deepseek: no choices in response")
	}

	zap.L().Debug("deepseek: chat completed",
		zap.String("model", c.model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)),
	)
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
