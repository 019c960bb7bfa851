// Package gateway turns code-assistance requests into validated results from
// an upstream text-generation model. It builds the prompt, calls the model,
// salvages JSON from the response text, fills defaults for anything missing
// and retries with backoff when the upstream fails or answers unusably.
//
// A Gateway keeps no state between calls and is safe for concurrent use.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/edgard/codegenius/internal/resilience"
)

// DefaultMaxCodeLength is the largest accepted code input, in characters.
const DefaultMaxCodeLength = 50000

var (
	errUnusableResponse = errors.New("model response was not usable")
	errEmptyReply       = errors.New("model returned an empty reply")
)

// Options configures a Gateway.
type Options struct {
	Generation GenerateOptions
	Retry      resilience.RetryConfig
	// RetryDegraded makes an unusable (defaulted) response consume a retry
	// attempt. When false the first degraded result is returned as is.
	RetryDegraded bool
	MaxCodeLength int
	// DefaultSystemPrompt replaces DefaultChatPersona when set.
	DefaultSystemPrompt string
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Generation: GenerateOptions{
			ModelName:       "gemini-2.0-flash",
			Temperature:     0.4,
			TopP:            0.95,
			TopK:            40,
			MaxOutputTokens: 8192,
			JSON:            true,
		},
		Retry:         resilience.DefaultRetryConfig(),
		RetryDegraded: true,
		MaxCodeLength: DefaultMaxCodeLength,
	}
}

// Gateway exposes the debug, translate, explain and chat operations.
type Gateway struct {
	model Model
	opts  Options
	log   *slog.Logger
}

// New creates a Gateway that sends every request to model.
func New(model Model, opts Options, log *slog.Logger) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{
		model: model,
		opts:  opts,
		log:   log.With("component", "gateway"),
	}
}

// AnalyzeCode asks the model for the issues in code and a corrected version.
// A response that cannot be salvaged after all retries yields a degraded
// result carrying the original code, not an error.
func (g *Gateway) AnalyzeCode(ctx context.Context, code, language string) (DebugResult, error) {
	if err := g.checkCode(code); err != nil {
		return DebugResult{}, err
	}
	if err := checkLanguage("language", language); err != nil {
		return DebugResult{}, err
	}

	return runStructured(ctx, g, OpDebug, BuildDebugPrompt(code, language), func(text string) Validation[DebugResult] {
		return ValidateDebug(text, code)
	})
}

// TranslateCode converts code between languages. Identical languages return
// the code untouched without calling the model.
func (g *Gateway) TranslateCode(ctx context.Context, code, fromLanguage, toLanguage string) (TranslationResult, error) {
	if err := g.checkCode(code); err != nil {
		return TranslationResult{}, err
	}
	if err := checkLanguage("fromLanguage", fromLanguage); err != nil {
		return TranslationResult{}, err
	}
	if err := checkLanguage("toLanguage", toLanguage); err != nil {
		return TranslationResult{}, err
	}

	if sameLanguage(fromLanguage, toLanguage) {
		g.log.DebugContext(ctx, "Skipping translation between identical languages", "language", fromLanguage)
		return TranslationResult{
			TranslatedCode: code,
			Explanation:    IdentityTranslationExplanation,
		}, nil
	}

	return runStructured(ctx, g, OpTranslate, BuildTranslationPrompt(code, fromLanguage, toLanguage), func(text string) Validation[TranslationResult] {
		return ValidateTranslation(text, code)
	})
}

// ExplainCode asks the model for an overview and walkthrough of code.
func (g *Gateway) ExplainCode(ctx context.Context, code, language string) (ExplanationResult, error) {
	if err := g.checkCode(code); err != nil {
		return ExplanationResult{}, err
	}
	if err := checkLanguage("language", language); err != nil {
		return ExplanationResult{}, err
	}

	return runStructured(ctx, g, OpExplain, BuildExplanationPrompt(code, language), ValidateExplanation)
}

// ChatWithModel answers the final user message of messages, using the earlier
// entries as history. Failures are never defaulted: once retries are spent
// the error is returned.
func (g *Gateway) ChatWithModel(ctx context.Context, messages []ChatMessage, systemPrompt string) (ChatMessage, error) {
	if len(messages) == 0 {
		return ChatMessage{}, invalidInput("messages", "must not be empty")
	}
	for i, m := range messages {
		if !m.Role.Valid() {
			return ChatMessage{}, invalidInput(fmt.Sprintf("messages[%d].role", i), "must be user or assistant")
		}
	}
	last := messages[len(messages)-1]
	if last.Role != RoleUser {
		return ChatMessage{}, invalidInput("messages", "last message must come from the user")
	}
	if strings.TrimSpace(last.Content) == "" {
		return ChatMessage{}, invalidInput("messages", "last message must not be empty")
	}

	history := make([]ChatMessage, len(messages)-1)
	copy(history, messages[:len(messages)-1])

	custom := systemPrompt
	if strings.TrimSpace(custom) == "" {
		custom = g.opts.DefaultSystemPrompt
	}
	instruction := BuildChatSystemInstruction(custom)

	opts := g.opts.Generation
	opts.JSON = false

	log := g.log.With("operation", OpChat)
	log.DebugContext(ctx, "Sending chat turn", "history_len", len(history))

	attempt := 0
	start := time.Now()
	reply, err := resilience.Retry(ctx, g.opts.Retry, func(ctx context.Context) (string, error) {
		attempt++
		text, err := g.model.Chat(ctx, history, instruction, last.Content, opts)
		if err == nil && strings.TrimSpace(text) == "" {
			err = errEmptyReply
		}
		if err != nil {
			log.WarnContext(ctx, "Model call failed", "attempt", attempt, "error", err)
			return "", &UpstreamTransientError{Op: OpChat, Err: err}
		}
		return text, nil
	})
	if err != nil {
		log.ErrorContext(ctx, "Chat failed", "attempts", attempt, "duration", time.Since(start), "error", err)
		return ChatMessage{}, err
	}

	return ChatMessage{Role: RoleAssistant, Content: reply}, nil
}

// runStructured drives one JSON-producing operation through the retry loop.
func runStructured[T any](ctx context.Context, g *Gateway, op Operation, prompt string, validate func(string) Validation[T]) (T, error) {
	var (
		degraded    T
		hasDegraded bool
		attempt     int
	)

	log := g.log.With("operation", op)
	opts := g.opts.Generation
	start := time.Now()

	result, err := resilience.Retry(ctx, g.opts.Retry, func(ctx context.Context) (T, error) {
		var zero T
		attempt++

		raw, err := g.model.Generate(ctx, prompt, opts)
		if err != nil {
			log.WarnContext(ctx, "Model call failed", "attempt", attempt, "error", err)
			return zero, &UpstreamTransientError{Op: op, Err: err}
		}

		v := validate(Sanitize(raw))
		if v.Usable {
			return v.Result, nil
		}

		degraded, hasDegraded = v.Result, true
		if v.Failure != nil {
			log.WarnContext(ctx, "Failed to parse model response", "attempt", attempt, "error", v.Failure.Err, "response_text", truncate(raw, 500))
		} else {
			log.WarnContext(ctx, "Model response is missing its primary field", "attempt", attempt)
		}

		if !g.opts.RetryDegraded {
			return v.Result, nil
		}
		return zero, errUnusableResponse
	})
	if err == nil {
		log.DebugContext(ctx, "Operation completed", "attempts", attempt, "duration", time.Since(start))
		return result, nil
	}

	if hasDegraded && ctx.Err() == nil {
		log.WarnContext(ctx, "Returning degraded result", "attempts", attempt, "last_error", err)
		return degraded, nil
	}

	log.ErrorContext(ctx, "Operation failed", "attempts", attempt, "duration", time.Since(start), "error", err)
	var zero T
	return zero, err
}

// checkCode applies the blank and length rules to code without its
// surrounding whitespace.
func (g *Gateway) checkCode(code string) error {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return invalidInput("code", "must not be empty")
	}
	if g.opts.MaxCodeLength > 0 && utf8.RuneCountInString(trimmed) > g.opts.MaxCodeLength {
		return invalidInput("code", fmt.Sprintf("exceeds maximum length of %d characters", g.opts.MaxCodeLength))
	}
	return nil
}

func checkLanguage(field, language string) error {
	if strings.TrimSpace(language) == "" {
		return invalidInput(field, "must not be empty")
	}
	return nil
}

func sameLanguage(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	return s[:maxLen-3] + "..."
}
