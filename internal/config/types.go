// Package config loads service configuration from defaults, an optional YAML
// file and CODEGENIUS_* environment variables.
package config

import (
	"errors"
	"time"
)

// ErrConfiguration wraps every error returned by Load.
var ErrConfiguration = errors.New("configuration error")

// Config is the complete service configuration.
type Config struct {
	Log      LogConfig     `mapstructure:"log"`
	Server   ServerConfig  `mapstructure:"server"`
	Provider string        `mapstructure:"provider" validate:"required,oneof=gemini openai"`
	Model    ModelConfig   `mapstructure:"model"`
	Gemini   GeminiConfig  `mapstructure:"gemini"`
	OpenAI   OpenAIConfig  `mapstructure:"openai"`
	Gateway  GatewayConfig `mapstructure:"gateway"`
	Breaker  BreakerConfig `mapstructure:"breaker"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level"  validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"             validate:"required"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"  validate:"min=1s,max=10m"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=1s,max=5m"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"   validate:"min=1024"`
	// RateLimit is the sustained requests per second allowed per client.
	// Zero disables limiting.
	RateLimit float64 `mapstructure:"rate_limit" validate:"min=0"`
	RateBurst int     `mapstructure:"rate_burst" validate:"min=1"`
	// TrustedProxies lists the proxy addresses or CIDRs whose forwarding
	// headers are honored when resolving the client IP. Empty means the
	// peer address is always used.
	TrustedProxies []string `mapstructure:"trusted_proxies" validate:"dive,ip|cidr"`
}

// ModelConfig holds the sampling parameters sent upstream.
type ModelConfig struct {
	Name            string  `mapstructure:"name"              validate:"required"`
	Temperature     float32 `mapstructure:"temperature"       validate:"min=0,max=2"`
	TopP            float32 `mapstructure:"top_p"             validate:"min=0,max=1"`
	TopK            float32 `mapstructure:"top_k"             validate:"min=0"`
	MaxOutputTokens int32   `mapstructure:"max_output_tokens" validate:"min=1"`
}

// GeminiConfig configures the Gemini provider.
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// OpenAIConfig configures the OpenAI-compatible provider.
type OpenAIConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout"  validate:"min=1s,max=10m"`
}

// GatewayConfig configures retries and input limits.
type GatewayConfig struct {
	MaxAttempts   int           `mapstructure:"max_attempts"    validate:"min=1,max=10"`
	BaseDelay     time.Duration `mapstructure:"base_delay"      validate:"min=0,max=1m"`
	MaxJitter     time.Duration `mapstructure:"max_jitter"      validate:"min=0,max=1m"`
	RetryDegraded bool          `mapstructure:"retry_degraded"`
	MaxCodeLength int           `mapstructure:"max_code_length" validate:"min=1"`
	SystemPrompt  string        `mapstructure:"system_prompt"`
}

// BreakerConfig configures the circuit breaker around the provider.
type BreakerConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	MaxFailures   int           `mapstructure:"max_failures"    validate:"min=1"`
	HalfOpenLimit int           `mapstructure:"half_open_limit" validate:"min=1"`
	OpenTimeout   time.Duration `mapstructure:"open_timeout"    validate:"min=1s"`
}
