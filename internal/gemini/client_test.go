package gemini

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/genai"

	"github.com/edgard/codegenius/internal/gateway"
)

type fakeGenerator struct {
	resp *genai.GenerateContentResponse
	err  error

	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (f *fakeGenerator) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.contents = contents
	f.config = config
	return f.resp, f.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      genai.NewContentFromText(text, genai.RoleModel),
			FinishReason: genai.FinishReasonStop,
		}},
	}
}

func newTestClient(gen contentGenerator) *Client {
	return newClient(gen, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{resp: textResponse(`{"ok":true}`)}
	c := newTestClient(gen)

	opts := gateway.GenerateOptions{
		ModelName:       "gemini-2.0-flash",
		Temperature:     0.4,
		TopP:            0.95,
		TopK:            40,
		MaxOutputTokens: 8192,
		JSON:            true,
	}
	got, err := c.Generate(context.Background(), "analyze this", opts)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got != `{"ok":true}` {
		t.Errorf("Generate() = %q, want %q", got, `{"ok":true}`)
	}

	if gen.model != "gemini-2.0-flash" {
		t.Errorf("model = %q, want gemini-2.0-flash", gen.model)
	}
	if len(gen.contents) != 1 || gen.contents[0].Role != string(genai.RoleUser) || gen.contents[0].Parts[0].Text != "analyze this" {
		t.Errorf("unexpected contents: %+v", gen.contents)
	}

	cfg := gen.config
	if cfg.ResponseMIMEType != "application/json" {
		t.Errorf("ResponseMIMEType = %q, want application/json", cfg.ResponseMIMEType)
	}
	if cfg.Temperature == nil || *cfg.Temperature != 0.4 {
		t.Errorf("Temperature = %v, want 0.4", cfg.Temperature)
	}
	if cfg.TopP == nil || *cfg.TopP != 0.95 {
		t.Errorf("TopP = %v, want 0.95", cfg.TopP)
	}
	if cfg.TopK == nil || *cfg.TopK != 40 {
		t.Errorf("TopK = %v, want 40", cfg.TopK)
	}
	if cfg.MaxOutputTokens != 8192 {
		t.Errorf("MaxOutputTokens = %d, want 8192", cfg.MaxOutputTokens)
	}
	if cfg.SystemInstruction != nil {
		t.Errorf("SystemInstruction = %+v, want nil", cfg.SystemInstruction)
	}
}

func TestChat(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{resp: textResponse("Sure.")}
	c := newTestClient(gen)

	history := []gateway.ChatMessage{
		{Role: gateway.RoleUser, Content: "hi"},
		{Role: gateway.RoleAssistant, Content: "hello"},
	}
	got, err := c.Chat(context.Background(), history, "Be brief.", "help me", gateway.GenerateOptions{ModelName: "m"})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if got != "Sure." {
		t.Errorf("Chat() = %q, want %q", got, "Sure.")
	}

	type turn struct{ Role, Text string }
	var turns []turn
	for _, c := range gen.contents {
		turns = append(turns, turn{Role: c.Role, Text: c.Parts[0].Text})
	}
	want := []turn{
		{Role: string(genai.RoleUser), Text: "hi"},
		{Role: string(genai.RoleModel), Text: "hello"},
		{Role: string(genai.RoleUser), Text: "help me"},
	}
	if diff := cmp.Diff(want, turns); diff != "" {
		t.Errorf("contents mismatch (-want +got):\n%s", diff)
	}

	if gen.config.SystemInstruction == nil || gen.config.SystemInstruction.Parts[0].Text != "Be brief." {
		t.Errorf("SystemInstruction = %+v, want %q", gen.config.SystemInstruction, "Be brief.")
	}
	if gen.config.ResponseMIMEType != "" {
		t.Errorf("ResponseMIMEType = %q, want empty for chat", gen.config.ResponseMIMEType)
	}
	if gen.config.Temperature != nil {
		t.Errorf("Temperature = %v, want unset", *gen.config.Temperature)
	}
}

func TestGenerate_Errors(t *testing.T) {
	t.Parallel()

	apiErr := genai.APIError{Code: 429, Message: "quota exceeded", Status: "RESOURCE_EXHAUSTED"}

	tests := []struct {
		name    string
		gen     *fakeGenerator
		wantErr string
		wantIs  error
	}{
		{
			name:    "API error",
			gen:     &fakeGenerator{err: apiErr},
			wantErr: "code 429",
		},
		{
			name:    "Transport error",
			gen:     &fakeGenerator{err: errors.New("connection reset")},
			wantErr: "connection reset",
		},
		{
			name: "Blocked prompt",
			gen: &fakeGenerator{resp: &genai.GenerateContentResponse{
				PromptFeedback: &genai.GenerateContentResponsePromptFeedback{
					BlockReason:        genai.BlockedReasonSafety,
					BlockReasonMessage: "unsafe",
				},
			}},
			wantErr: "blocked by safety filter: unsafe",
		},
		{
			name:    "No candidates",
			gen:     &fakeGenerator{resp: &genai.GenerateContentResponse{}},
			wantIs:  ErrEmptyResponse,
			wantErr: "finish reason: unknown",
		},
		{
			name: "Truncated candidate",
			gen: &fakeGenerator{resp: &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonMaxTokens}},
			}},
			wantIs:  ErrEmptyResponse,
			wantErr: "MAX_TOKENS",
		},
		{
			name:   "Blank text",
			gen:    &fakeGenerator{resp: textResponse("  \n")},
			wantIs: ErrEmptyResponse,
		},
		{
			name:   "Nil response",
			gen:    &fakeGenerator{},
			wantIs: ErrEmptyResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := newTestClient(tt.gen).Generate(context.Background(), "p", gateway.GenerateOptions{})
			if err == nil {
				t.Fatal("Generate() error = nil, want error")
			}
			if tt.wantErr != "" && !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Generate() error = %q, want it to contain %q", err, tt.wantErr)
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("Generate() error = %v, want errors.Is %v", err, tt.wantIs)
			}
		})
	}
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(context.Background(), Config{}, nil); err == nil {
		t.Fatal("NewClient() error = nil, want error for missing API key")
	}
}
