package gateway

import "context"

// GenerateOptions are the sampling parameters sent with every model call.
type GenerateOptions struct {
	ModelName       string
	Temperature     float32
	TopP            float32
	TopK            float32
	MaxOutputTokens int32
	// JSON asks the provider for a JSON response body when it supports it.
	JSON bool
}

// Model is the upstream text-generation provider. Implementations may fail on
// quota or network problems and make no schema guarantees about their output.
type Model interface {
	// Generate runs a single-shot prompt and returns the raw response text.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// Chat continues a conversation: history holds the prior turns, message
	// is the new user turn.
	Chat(ctx context.Context, history []ChatMessage, systemInstruction, message string, opts GenerateOptions) (string, error)
}
