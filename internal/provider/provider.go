// Package provider builds the upstream model used by the gateway.
package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/edgard/codegenius/internal/config"
	"github.com/edgard/codegenius/internal/gateway"
	"github.com/edgard/codegenius/internal/gemini"
	"github.com/edgard/codegenius/internal/metrics"
	"github.com/edgard/codegenius/internal/openai"
	"github.com/edgard/codegenius/internal/resilience"
)

// Provider names accepted in configuration.
const (
	Gemini = "gemini"
	OpenAI = "openai"
)

// New creates the configured model client. Calls are instrumented, and when
// the breaker is enabled they also pass through a circuit breaker.
// It acts as a factory, selecting either the Gemini or OpenAI implementation.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger, m *metrics.Metrics) (gateway.Model, error) {
	log.Info("Initializing model provider", "provider", cfg.Provider, "model", cfg.Model.Name)

	var (
		base gateway.Model
		err  error
	)
	switch cfg.Provider {
	case Gemini:
		base, err = gemini.NewClient(ctx, gemini.Config{APIKey: cfg.Gemini.APIKey}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
	case OpenAI:
		base, err = openai.NewClient(openai.Config{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Timeout: cfg.OpenAI.Timeout,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI client: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown model provider specified: %s", cfg.Provider)
	}

	return Wrap(base, cfg.Provider, cfg.Breaker, log, m), nil
}

// Wrap applies the instrumentation and breaker decorators to base.
func Wrap(base gateway.Model, name string, bc config.BreakerConfig, log *slog.Logger, m *metrics.Metrics) gateway.Model {
	model := Instrument(base, name, log, m)
	if !bc.Enabled {
		return model
	}

	m.SetBreakerState(name, resilience.StateClosed)
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:          name,
		MaxFailures:   bc.MaxFailures,
		HalfOpenLimit: bc.HalfOpenLimit,
		OpenTimeout:   bc.OpenTimeout,
		OnStateChange: func(name string, _, to resilience.CircuitState) {
			m.SetBreakerState(name, to)
		},
	})
	return WithBreaker(model, cb)
}
