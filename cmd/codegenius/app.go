package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/edgard/codegenius/internal/config"
	"github.com/edgard/codegenius/internal/gateway"
	"github.com/edgard/codegenius/internal/logger"
	"github.com/edgard/codegenius/internal/metrics"
	"github.com/edgard/codegenius/internal/provider"
	"github.com/edgard/codegenius/internal/resilience"
	"github.com/edgard/codegenius/internal/server"
)

// builder creates the service behind every command. Tests swap it for a fake.
type builder func(ctx context.Context, cfg *config.Config, log *slog.Logger, m *metrics.Metrics) (server.Service, error)

// app carries state shared by the subcommands.
type app struct {
	build builder

	configPath string
	logLevel   string
	logFormat  string

	cfg *config.Config
	log *slog.Logger
}

func newRootCmd(build builder) *cobra.Command {
	a := &app{build: build}

	root := &cobra.Command{
		Use:   "codegenius",
		Short: "LLM gateway for debugging, translating and explaining code",
		Long: `CodeGenius turns code-assistance requests into model prompts, calls the
configured provider with retries, and returns validated structured results.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to configuration file (default: ./config.yaml if present)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "Override log format (json, text)")

	root.AddCommand(
		newServeCmd(a),
		newDebugCmd(a),
		newTranslateCmd(a),
		newExplainCmd(a),
		newChatCmd(a),
	)
	return root
}

// setup loads configuration and builds the logger writing to w.
func (a *app) setup(w io.Writer) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}

	a.cfg = cfg
	a.log = logger.NewLogger(w, cfg.Log.Level, cfg.Log.Format == "json")
	a.log.Debug("Configuration loaded", "provider", cfg.Provider, "model", cfg.Model.Name)
	return nil
}

// buildGateway wires the configured provider into a Gateway.
func buildGateway(ctx context.Context, cfg *config.Config, log *slog.Logger, m *metrics.Metrics) (server.Service, error) {
	model, err := provider.New(ctx, cfg, log, m)
	if err != nil {
		return nil, err
	}
	return gateway.New(model, gatewayOptions(cfg), log), nil
}

func gatewayOptions(cfg *config.Config) gateway.Options {
	opts := gateway.DefaultOptions()
	opts.Generation.ModelName = cfg.Model.Name
	opts.Generation.Temperature = cfg.Model.Temperature
	opts.Generation.TopP = cfg.Model.TopP
	opts.Generation.TopK = cfg.Model.TopK
	opts.Generation.MaxOutputTokens = cfg.Model.MaxOutputTokens
	opts.Retry = resilience.RetryConfig{
		MaxAttempts: cfg.Gateway.MaxAttempts,
		BaseDelay:   cfg.Gateway.BaseDelay,
		MaxJitter:   cfg.Gateway.MaxJitter,
	}
	opts.RetryDegraded = cfg.Gateway.RetryDegraded
	opts.MaxCodeLength = cfg.Gateway.MaxCodeLength
	opts.DefaultSystemPrompt = cfg.Gateway.SystemPrompt
	return opts
}

// ginMode keeps gin's route dump and debug warnings to debug logging.
func ginMode(level string) string {
	if level == "debug" {
		return gin.DebugMode
	}
	return gin.ReleaseMode
}
