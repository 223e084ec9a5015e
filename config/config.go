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
//   - api.go: remote diagnostic API client
//   - session.go: browser sessions, credential storage and login throttling
//   - database.go: Redis and PostgreSQL backends
//   - http.go: HTTP server configuration
//   - observability.go: metrics
type AppConfig struct {
	// IsDev controls development mode behavior (template reloading, memory store default).
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Remote API consumed by every page.
	API APIConfig `envPrefix:"API_"`

	// Browser session configuration
	Session     SessionConfig     `envPrefix:"SESSION_"`
	Credentials CredentialsConfig `envPrefix:"CREDENTIAL_"`
	RateLimit   RateLimitConfig   `envPrefix:"LOGIN_RATE_LIMIT_"`

	// Storage backends
	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	// HTTP server configuration
	HTTP HTTPConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	// Check NODE_ENV for dev mode first; the credential store default depends on it.
	c.detectDevMode()

	c.HTTP.Sanitize()
	c.API.Sanitize()
	c.Session.Sanitize()
	c.Credentials.Sanitize(c.IsDev)
	c.RateLimit.Sanitize()
	c.Observability.Sanitize()
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
// NODE_ENV is checked as a fallback (common in frontend tooling).
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}
