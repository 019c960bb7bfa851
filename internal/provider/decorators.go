package provider

import (
	"context"
	"log/slog"
	"time"

	"github.com/edgard/codegenius/internal/gateway"
	"github.com/edgard/codegenius/internal/metrics"
	"github.com/edgard/codegenius/internal/resilience"
)

// Call kinds reported in metrics.
const (
	kindGenerate = "generate"
	kindChat     = "chat"
)

type instrumented struct {
	next    gateway.Model
	name    string
	log     *slog.Logger
	metrics *metrics.Metrics
}

// Instrument records latency and outcome of every call made through next.
func Instrument(next gateway.Model, name string, log *slog.Logger, m *metrics.Metrics) gateway.Model {
	if log == nil {
		log = slog.Default()
	}
	return &instrumented{
		next:    next,
		name:    name,
		log:     log.With("component", "provider", "provider", name),
		metrics: m,
	}
}

func (i *instrumented) Generate(ctx context.Context, prompt string, opts gateway.GenerateOptions) (string, error) {
	start := time.Now()
	text, err := i.next.Generate(ctx, prompt, opts)
	i.observe(ctx, kindGenerate, start, len(text), err)
	return text, err
}

func (i *instrumented) Chat(ctx context.Context, history []gateway.ChatMessage, systemInstruction, message string, opts gateway.GenerateOptions) (string, error) {
	start := time.Now()
	text, err := i.next.Chat(ctx, history, systemInstruction, message, opts)
	i.observe(ctx, kindChat, start, len(text), err)
	return text, err
}

func (i *instrumented) observe(ctx context.Context, kind string, start time.Time, size int, err error) {
	d := time.Since(start)
	i.metrics.ObserveModelCall(i.name, kind, err, d)
	if err != nil {
		i.log.DebugContext(ctx, "Model call failed", "kind", kind, "duration", d, "error", err)
		return
	}
	i.log.DebugContext(ctx, "Model call completed", "kind", kind, "duration", d, "response_len", size)
}

type breaker struct {
	next gateway.Model
	cb   *resilience.CircuitBreaker
}

// WithBreaker rejects calls with resilience.ErrCircuitOpen while cb is open.
func WithBreaker(next gateway.Model, cb *resilience.CircuitBreaker) gateway.Model {
	return &breaker{next: next, cb: cb}
}

func (b *breaker) Generate(ctx context.Context, prompt string, opts gateway.GenerateOptions) (string, error) {
	var text string
	err := b.cb.Execute(ctx, func(ctx context.Context) error {
		var err error
		text, err = b.next.Generate(ctx, prompt, opts)
		return err
	})
	return text, err
}

func (b *breaker) Chat(ctx context.Context, history []gateway.ChatMessage, systemInstruction, message string, opts gateway.GenerateOptions) (string, error) {
	var text string
	err := b.cb.Execute(ctx, func(ctx context.Context) error {
		var err error
		text, err = b.next.Chat(ctx, history, systemInstruction, message, opts)
		return err
	})
	return text, err
}
