package config

import (
	"strings"
	"time"
)

const defaultAPITimeout = 10 * time.Second

// APIConfig describes the remote diagnostic API.
type APIConfig struct {
	// BaseURL selects the remote API (e.g., "https://api.laptopdoc.example.com").
	// When empty the application still starts and API-backed pages report
	// the service as unavailable.
	BaseURL string `env:"BASE_URL"`

	// Timeout bounds every outbound request.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`

	// ProfilePath is the "current user" endpoint.
	ProfilePath string `env:"PROFILE_PATH" envDefault:"/auth/me"`

	Breaker BreakerConfig `envPrefix:"BREAKER_"`
}

// BreakerConfig controls the circuit breaker in front of the remote API.
type BreakerConfig struct {
	Enabled      bool          `env:"ENABLED"       envDefault:"true"`
	MaxRequests  uint32        `env:"MAX_REQUESTS"  envDefault:"1"`
	Interval     time.Duration `env:"INTERVAL"      envDefault:"60s"`
	Timeout      time.Duration `env:"TIMEOUT"       envDefault:"30s"`
	FailureRatio float64       `env:"FAILURE_RATIO" envDefault:"0.5"`
	MinRequests  uint32        `env:"MIN_REQUESTS"  envDefault:"5"`
}

// Sanitize normalises the base URL and enforces a bounded timeout.
func (c *APIConfig) Sanitize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.Timeout <= 0 {
		c.Timeout = defaultAPITimeout
	}
	c.ProfilePath = strings.TrimSpace(c.ProfilePath)
	if c.ProfilePath == "" {
		c.ProfilePath = "/auth/me"
	}
	if !strings.HasPrefix(c.ProfilePath, "/") {
		c.ProfilePath = "/" + c.ProfilePath
	}

	if c.Breaker.FailureRatio <= 0 || c.Breaker.FailureRatio > 1 {
		c.Breaker.FailureRatio = 0.5
	}
	if c.Breaker.Timeout <= 0 {
		c.Breaker.Timeout = 30 * time.Second
	}
}

// Configured reports whether a remote API address is available.
func (c *APIConfig) Configured() bool {
	return c.BaseURL != ""
}
