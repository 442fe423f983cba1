package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - backend.go: Analysis backend configuration
//   - http.go: HTTP server configuration
//   - poll.go: Status polling configuration
//   - redis.go: Case-session store configuration
//   - auth.go: Authentication configuration
type AppConfig struct {
	// IsDev controls development mode behavior (template hot reloading,
	// relaxed auth, verbose template errors). Set DEV=true for development.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Backend is the analysis backend the UI submits cases to.
	Backend BackendConfig `envPrefix:"BACKEND_"`

	// HTTP server configuration
	HTTP HTTPConfig

	// Poll controls the status polling loop.
	Poll PollConfig `envPrefix:"POLL_"`

	// Redis configuration for the shared case-session store.
	Redis RedisConfig `envPrefix:"REDIS_"`

	// Authentication configuration
	Auth AuthConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Backend.Sanitize()
	c.HTTP.Sanitize()
	c.Poll.Sanitize()
	c.Redis.Sanitize()
	c.Auth.Sanitize()
	c.Observability.Sanitize()

	c.detectDevMode()
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
// NODE_ENV is checked as a fallback (common in frontend tooling).
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}
