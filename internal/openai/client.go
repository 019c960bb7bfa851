// Package openai implements the gateway model port against any
// OpenAI-compatible chat completions endpoint.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/edgard/codegenius/internal/gateway"
)

// DefaultBaseURL is used when Config.BaseURL is empty.
const DefaultBaseURL = "https://api.openai.com/v1"

const (
	defaultTimeout = 60 * time.Second
	maxBodyExcerpt = 512
)

// ErrEmptyResponse is returned when the API answers without any choice text.
var ErrEmptyResponse = errors.New("openai returned empty content")

// Config holds the connection settings.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("openai chat completion: %s: %s", e.Status, e.Message)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    *float32        `json:"temperature,omitempty"`
	TopP           *float32        `json:"top_p,omitempty"`
	MaxTokens      int32           `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Client talks to the chat completions endpoint.
type Client struct {
	http *resty.Client
	log  *slog.Logger
}

var _ gateway.Model = (*Client)(nil)

// NewClient creates a client for cfg.BaseURL authenticated with cfg.APIKey.
func NewClient(cfg Config, log *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}

	hc := resty.New().
		SetBaseURL(base).
		SetAuthToken(cfg.APIKey).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	c := &Client{http: hc, log: log.With("component", "openai_client")}
	c.log.Info("OpenAI client initialized successfully", "base_url", base)
	return c, nil
}

// Generate sends prompt as a single user message.
func (c *Client) Generate(ctx context.Context, prompt string, opts gateway.GenerateOptions) (string, error) {
	messages := []chatMessage{{Role: "user", Content: prompt}}
	return c.complete(ctx, "generate", messages, opts)
}

// Chat sends the system instruction, history and message as one conversation.
func (c *Client) Chat(ctx context.Context, history []gateway.ChatMessage, systemInstruction, message string, opts gateway.GenerateOptions) (string, error) {
	messages := make([]chatMessage, 0, len(history)+2)
	if systemInstruction != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemInstruction})
	}
	for _, m := range history {
		messages = append(messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}
	messages = append(messages, chatMessage{Role: "user", Content: message})
	return c.complete(ctx, "chat", messages, opts)
}

func (c *Client) complete(ctx context.Context, op string, messages []chatMessage, opts gateway.GenerateOptions) (string, error) {
	body := chatRequest{
		Model:     opts.ModelName,
		Messages:  messages,
		MaxTokens: opts.MaxOutputTokens,
	}
	if opts.Temperature > 0 {
		body.Temperature = &opts.Temperature
	}
	if opts.TopP > 0 {
		body.TopP = &opts.TopP
	}
	if opts.JSON {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	c.log.DebugContext(ctx, "Sending chat completion", "operation", op, "model", opts.ModelName, "messages", len(messages))

	var (
		result  chatResponse
		failure errorResponse
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		SetError(&failure).
		Post("/chat/completions")
	if err != nil {
		c.log.WarnContext(ctx, "OpenAI request failed", "operation", op, "error", err)
		return "", fmt.Errorf("openai %s request: %w", op, err)
	}

	if resp.IsError() {
		msg := failure.Error.Message
		if msg == "" {
			msg = excerpt(resp.String())
		}
		c.log.WarnContext(ctx, "OpenAI returned an error status", "operation", op, "status", resp.StatusCode(), "message", msg)
		return "", &StatusError{StatusCode: resp.StatusCode(), Status: resp.Status(), Message: msg}
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("openai %s: %w (no choices)", op, ErrEmptyResponse)
	}
	choice := result.Choices[0]
	if strings.TrimSpace(choice.Message.Content) == "" {
		return "", fmt.Errorf("openai %s: %w (finish reason: %s)", op, ErrEmptyResponse, choice.FinishReason)
	}
	return choice.Message.Content, nil
}

func excerpt(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxBodyExcerpt {
		return s
	}
	return s[:maxBodyExcerpt] + "..."
}
