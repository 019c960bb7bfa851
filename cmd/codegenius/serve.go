package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/edgard/codegenius/internal/metrics"
	"github.com/edgard/codegenius/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(cmd.OutOrStdout()); err != nil {
				return err
			}
			log := a.log
			ctx := cmd.Context()

			m := metrics.NewWithDefaults()
			svc, err := a.build(ctx, a.cfg, log, m)
			if err != nil {
				log.Error("Failed to initialize gateway", "error", err)
				return fmt.Errorf("failed to initialize gateway: %w", err)
			}

			gin.SetMode(ginMode(a.cfg.Log.Level))
			srv := server.New(svc, a.cfg.Server, log, m, server.WithRetryAfter(a.cfg.Breaker.OpenTimeout))

			log.Info("Starting CodeGenius...", "addr", a.cfg.Server.Addr, "provider", a.cfg.Provider, "model", a.cfg.Model.Name)
			if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Server stopped due to error", "error", err)
				return err
			}
			log.Info("CodeGenius stopped gracefully.")
			return nil
		},
	}
}
