package config

import (
	"fmt"
	"strings"
	"time"
)

// SessionConfig controls browser session lifetimes and hydration behaviour.
type SessionConfig struct {
	// TTL bounds how long a credential record is kept. Tokens carrying an
	// earlier JWT expiry shorten it further.
	TTL time.Duration `env:"TTL" envDefault:"168h"`

	// IdleTTL evicts in-memory session state that has not been touched.
	// Evicted sessions hydrate again on their next request.
	IdleTTL time.Duration `env:"IDLE_TTL" envDefault:"30m"`

	// ValidateTimeout bounds the background "current user" validation.
	ValidateTimeout time.Duration `env:"VALIDATE_TIMEOUT" envDefault:"10s"`

	// HydrationWait is how long a guarded page waits for hydration before
	// rendering the loading placeholder.
	HydrationWait time.Duration `env:"HYDRATION_WAIT" envDefault:"2s"`

	LoginPath   string `env:"LOGIN_PATH"   envDefault:"/login"`
	LandingPath string `env:"LANDING_PATH" envDefault:"/dashboard"`
	PublicPath  string `env:"PUBLIC_PATH"  envDefault:"/"`
}

// Sanitize applies guardrails to session configuration values.
func (c *SessionConfig) Sanitize() {
	if c.TTL <= 0 {
		c.TTL = 7 * 24 * time.Hour
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = 30 * time.Minute
	}
	if c.ValidateTimeout <= 0 {
		c.ValidateTimeout = defaultAPITimeout
	}
	if c.HydrationWait < 0 {
		c.HydrationWait = 0
	}
	c.LoginPath = sanitizePath(c.LoginPath, "/login")
	c.LandingPath = sanitizePath(c.LandingPath, "/dashboard")
	c.PublicPath = sanitizePath(c.PublicPath, "/")
}

func sanitizePath(raw, fallback string) string {
	p := strings.TrimSpace(raw)
	if p == "" || !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") {
		return fallback
	}
	return p
}

// CredentialBackend selects where credential records are persisted.
type CredentialBackend string

const (
	// CredentialBackendMemory keeps records in process memory (development, tests).
	CredentialBackendMemory CredentialBackend = "memory"
	// CredentialBackendRedis stores one hash per browser session.
	CredentialBackendRedis CredentialBackend = "redis"
	// CredentialBackendPostgres stores one row per browser session.
	CredentialBackendPostgres CredentialBackend = "postgres"
)

// UnmarshalText implements encoding.TextUnmarshaler for CredentialBackend.
func (b *CredentialBackend) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "":
		*b = ""
		return nil
	case "memory", "redis", "postgres":
		*b = CredentialBackend(v)
		return nil
	default:
		return fmt.Errorf("invalid CredentialBackend: %q (valid options: memory, redis, postgres)", v)
	}
}

// CredentialsConfig configures the credential store.
type CredentialsConfig struct {
	// Backend is CREDENTIAL_STORE. Defaults to memory in dev mode and redis otherwise.
	Backend CredentialBackend `env:"STORE"`

	// EncryptionKey seals tokens at rest (32 bytes, raw or base64).
	EncryptionKey string `env:"ENCRYPTION_KEY"`

	// RedisPrefix namespaces credential hashes.
	RedisPrefix string `env:"REDIS_PREFIX" envDefault:"credentials:"`
}

// Sanitize fills in the backend default.
func (c *CredentialsConfig) Sanitize(isDev bool) {
	if c.Backend == "" {
		if isDev {
			c.Backend = CredentialBackendMemory
		} else {
			c.Backend = CredentialBackendRedis
		}
	}
	c.EncryptionKey = strings.TrimSpace(c.EncryptionKey)
	if strings.TrimSpace(c.RedisPrefix) == "" {
		c.RedisPrefix = "credentials:"
	}
}

// RateLimitConfig throttles login attempts per client IP.
type RateLimitConfig struct {
	Enabled bool          `env:"ENABLED" envDefault:"true"`
	RPS     float64       `env:"RPS"     envDefault:"0.2"`
	Burst   int           `env:"BURST"   envDefault:"5"`
	TTL     time.Duration `env:"TTL"     envDefault:"10m"`
}

// Sanitize applies guardrails to rate limit values.
func (c *RateLimitConfig) Sanitize() {
	if c.RPS <= 0 {
		c.RPS = 0.2
	}
	if c.Burst < 1 {
		c.Burst = 1
	}
	if c.TTL <= 0 {
		c.TTL = 10 * time.Minute
	}
}
