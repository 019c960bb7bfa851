// Package server exposes the gateway operations over HTTP with gin.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/edgard/codegenius/internal/config"
	"github.com/edgard/codegenius/internal/gateway"
	"github.com/edgard/codegenius/internal/logger"
	"github.com/edgard/codegenius/internal/metrics"
)

// Service is the set of gateway operations served over HTTP.
type Service interface {
	AnalyzeCode(ctx context.Context, code, language string) (gateway.DebugResult, error)
	TranslateCode(ctx context.Context, code, fromLanguage, toLanguage string) (gateway.TranslationResult, error)
	ExplainCode(ctx context.Context, code, language string) (gateway.ExplanationResult, error)
	ChatWithModel(ctx context.Context, messages []gateway.ChatMessage, systemPrompt string) (gateway.ChatMessage, error)
}

var _ Service = (*gateway.Gateway)(nil)

// Server owns the router and the listener lifecycle.
type Server struct {
	svc        Service
	cfg        config.ServerConfig
	log        *slog.Logger
	metrics    *metrics.Metrics
	retryAfter time.Duration
	router     *gin.Engine
}

// Option customizes a Server.
type Option func(*Server)

// WithRetryAfter sets the retry hint sent while the circuit breaker is open.
func WithRetryAfter(d time.Duration) Option {
	return func(s *Server) { s.retryAfter = d }
}

// New builds the router. m may be nil.
func New(svc Service, cfg config.ServerConfig, log *slog.Logger, m *metrics.Metrics, opts ...Option) *Server {
	registerValidators()

	s := &Server{
		svc:        svc,
		cfg:        cfg,
		log:        log.With("component", "server"),
		metrics:    m,
		retryAfter: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	var proxies []string
	if len(s.cfg.TrustedProxies) > 0 {
		proxies = s.cfg.TrustedProxies
	}
	// With no trusted proxies ClientIP is the peer address, so forwarding
	// headers cannot pick a rate limit bucket.
	if err := r.SetTrustedProxies(proxies); err != nil {
		s.log.Error("Invalid trusted proxies, ignoring forwarding headers", "error", err)
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(
		RequestID(),
		logger.Middleware(s.log),
		Instrument(s.metrics),
		Recovery(s.log),
	)
	r.NoRoute(handleNotFound)

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := r.Group("/api")
	if s.cfg.RateLimit > 0 {
		api.Use(RateLimit(NewRateLimiter(s.cfg.RateLimit, s.cfg.RateBurst)))
	}
	if s.cfg.MaxBodyBytes > 0 {
		api.Use(BodyLimit(s.cfg.MaxBodyBytes))
	}
	if s.cfg.RequestTimeout > 0 {
		api.Use(Timeout(s.cfg.RequestTimeout))
	}
	api.POST("/debug", s.handleDebug)
	api.POST("/translate", s.handleTranslate)
	api.POST("/explain", s.handleExplain)
	api.POST("/chat", s.handleChat)

	return r
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on the configured address until ctx is canceled, then shuts
// the server down within the configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		s.log.Info("Shutdown signal received, stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down http server: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	s.log.Info("HTTP server stopped gracefully.")
	return nil
}
