// Package gemini implements the gateway model port on top of Google's Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/edgard/codegenius/internal/gateway"
)

// Config holds the settings needed to reach the Gemini API.
type Config struct {
	APIKey string
}

// ErrEmptyResponse is returned when the API answers without any text.
var ErrEmptyResponse = errors.New("gemini returned empty content")

// contentGenerator is the subset of *genai.Models used by the client.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client sends prompts and chat turns to Gemini.
type Client struct {
	models contentGenerator
	log    *slog.Logger
}

var _ gateway.Model = (*Client)(nil)

// NewClient creates a Gemini client authenticated with cfg.APIKey.
func NewClient(ctx context.Context, cfg Config, log *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	c := newClient(gi.Models, log)
	c.log.Info("Gemini client initialized successfully")
	return c, nil
}

func newClient(models contentGenerator, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		models: models,
		log:    log.With("component", "gemini_client"),
	}
}

// Generate sends a single user prompt.
func (c *Client) Generate(ctx context.Context, prompt string, opts gateway.GenerateOptions) (string, error) {
	c.log.DebugContext(ctx, "Generating content", "model", opts.ModelName, "prompt_len", len(prompt), "json", opts.JSON)

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	return c.generate(ctx, "generate", contents, contentConfig(opts, ""), opts.ModelName)
}

// Chat sends history followed by message, with systemInstruction attached to
// the request config.
func (c *Client) Chat(ctx context.Context, history []gateway.ChatMessage, systemInstruction, message string, opts gateway.GenerateOptions) (string, error) {
	c.log.DebugContext(ctx, "Generating chat reply", "model", opts.ModelName, "history_len", len(history))

	contents := make([]*genai.Content, 0, len(history)+1)
	for _, m := range history {
		contents = append(contents, genai.NewContentFromText(m.Content, roleFor(m.Role)))
	}
	contents = append(contents, genai.NewContentFromText(message, genai.RoleUser))

	return c.generate(ctx, "chat", contents, contentConfig(opts, systemInstruction), opts.ModelName)
}

func (c *Client) generate(ctx context.Context, op string, contents []*genai.Content, cfg *genai.GenerateContentConfig, model string) (string, error) {
	resp, err := c.models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		if apiErr, ok := asAPIError(err); ok {
			c.log.WarnContext(ctx, "Gemini API call failed", "operation", op, "code", apiErr.Code, "status", apiErr.Status, "error", err)
			return "", fmt.Errorf("gemini API call failed (code %d): %w", apiErr.Code, err)
		}
		c.log.WarnContext(ctx, "Gemini API call failed", "operation", op, "error", err)
		return "", fmt.Errorf("gemini API call failed: %w", err)
	}

	return c.extractText(ctx, op, resp)
}

func (c *Client) extractText(ctx context.Context, op string, resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("%s: %w", op, ErrEmptyResponse)
	}

	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" && fb.BlockReason != genai.BlockedReasonUnspecified {
		reasonMsg := string(fb.BlockReason)
		if fb.BlockReasonMessage != "" {
			reasonMsg = fb.BlockReasonMessage
		}
		c.log.ErrorContext(ctx, "Gemini request blocked", "operation", op, "reason", reasonMsg)
		return "", fmt.Errorf("%s blocked by safety filter: %s", op, reasonMsg)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		finishReason := "unknown"
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" && resp.Candidates[0].FinishReason != genai.FinishReasonUnspecified {
			finishReason = string(resp.Candidates[0].FinishReason)
		}
		c.log.WarnContext(ctx, "Gemini response missing candidates or content", "operation", op, "finish_reason", finishReason)
		return "", fmt.Errorf("%s: %w (finish reason: %s)", op, ErrEmptyResponse, finishReason)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%s: %w", op, ErrEmptyResponse)
	}
	return text, nil
}

func contentConfig(opts gateway.GenerateOptions, systemInstruction string) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: opts.MaxOutputTokens,
	}
	if opts.Temperature > 0 {
		cfg.Temperature = &opts.Temperature
	}
	if opts.TopP > 0 {
		cfg.TopP = &opts.TopP
	}
	if opts.TopK > 0 {
		cfg.TopK = &opts.TopK
	}
	if opts.JSON {
		cfg.ResponseMIMEType = "application/json"
	}
	if systemInstruction != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: systemInstruction}}}
	}
	return cfg
}

// asAPIError matches both value and pointer forms returned by the SDK.
func asAPIError(err error) (genai.APIError, bool) {
	var v genai.APIError
	if errors.As(err, &v) {
		return v, true
	}
	var p *genai.APIError
	if errors.As(err, &p) && p != nil {
		return *p, true
	}
	return genai.APIError{}, false
}

func roleFor(r gateway.Role) genai.Role {
	if r == gateway.RoleAssistant {
		return genai.RoleModel
	}
	return genai.RoleUser
}
