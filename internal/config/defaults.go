package config

import "time"

// Default values for configuration
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultServerAddr            = ":5000"
	DefaultServerRequestTimeout  = 2 * time.Minute
	DefaultServerShutdownTimeout = 15 * time.Second
	DefaultServerMaxBodyBytes    = 1 << 20
	DefaultServerRateLimit       = 2.0 // requests per second per client
	DefaultServerRateBurst       = 10

	DefaultProvider = "gemini"

	DefaultModelName            = "gemini-2.0-flash"
	DefaultModelTemperature     = 0.4
	DefaultModelTopP            = 0.95
	DefaultModelTopK            = 40
	DefaultModelMaxOutputTokens = 8192

	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAITimeout = time.Minute

	DefaultGatewayMaxAttempts   = 3
	DefaultGatewayBaseDelay     = time.Second
	DefaultGatewayMaxJitter     = time.Second
	DefaultGatewayRetryDegraded = true
	DefaultGatewayMaxCodeLength = 50000

	DefaultBreakerEnabled       = true
	DefaultBreakerMaxFailures   = 5
	DefaultBreakerHalfOpenLimit = 1
	DefaultBreakerOpenTimeout   = 30 * time.Second
)

var defaults = map[string]any{
	"log.level":  DefaultLogLevel,
	"log.format": DefaultLogFormat,

	"server.addr":             DefaultServerAddr,
	"server.request_timeout":  DefaultServerRequestTimeout,
	"server.shutdown_timeout": DefaultServerShutdownTimeout,
	"server.max_body_bytes":   DefaultServerMaxBodyBytes,
	"server.rate_limit":       DefaultServerRateLimit,
	"server.rate_burst":       DefaultServerRateBurst,
	"server.trusted_proxies":  []string{},

	"provider": DefaultProvider,

	"model.name":              DefaultModelName,
	"model.temperature":       DefaultModelTemperature,
	"model.top_p":             DefaultModelTopP,
	"model.top_k":             DefaultModelTopK,
	"model.max_output_tokens": DefaultModelMaxOutputTokens,

	"gemini.api_key": "",

	"openai.api_key":  "",
	"openai.base_url": DefaultOpenAIBaseURL,
	"openai.timeout":  DefaultOpenAITimeout,

	"gateway.max_attempts":    DefaultGatewayMaxAttempts,
	"gateway.base_delay":      DefaultGatewayBaseDelay,
	"gateway.max_jitter":      DefaultGatewayMaxJitter,
	"gateway.retry_degraded":  DefaultGatewayRetryDegraded,
	"gateway.max_code_length": DefaultGatewayMaxCodeLength,
	"gateway.system_prompt":   "",

	"breaker.enabled":         DefaultBreakerEnabled,
	"breaker.max_failures":    DefaultBreakerMaxFailures,
	"breaker.half_open_limit": DefaultBreakerHalfOpenLimit,
	"breaker.open_timeout":    DefaultBreakerOpenTimeout,
}

// legacyEnv maps environment variables used by earlier deployments onto keys.
var legacyEnv = map[string]string{
	"gemini.api_key": "GEMINI_API_KEY",
	"openai.api_key": "OPENAI_API_KEY",
	"server.addr":    "PORT",
}
