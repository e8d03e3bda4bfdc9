// Package config loads service configuration from KEYSERVE_-prefixed
// environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Storage backend names accepted in StoreBackend.
const (
	BackendPostgres = "postgres"
	BackendFile     = "file"
)

// Config is the complete service configuration.
type Config struct {
	// Port the HTTP API listens on.
	Port int `envconfig:"PORT" default:"8080"`

	// AdminToken is the shared secret required on X-Admin-Token for the
	// admin surface. The service refuses to start without one.
	AdminToken string `envconfig:"ADMIN_TOKEN" required:"true"`

	// LicenseSecret is the HMAC key for signature verification; it must
	// match the value baked into the key generator.
	LicenseSecret string `envconfig:"LICENSE_SECRET" required:"true"`

	// StoreBackend selects the authorization store: "postgres" or "file".
	StoreBackend string `envconfig:"STORE_BACKEND" default:"file"`
	DatabaseURL  string `envconfig:"DATABASE_URL"`
	DataFile     string `envconfig:"DATA_FILE" default:"keys_data.json"`

	// RedisAddr, when set, enables the read-through record cache.
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// RateMax requests per RateWindow per client address on /verify.
	RateMax    int           `envconfig:"RATE_MAX" default:"15"`
	RateWindow time.Duration `envconfig:"RATE_WINDOW" default:"60s"`

	// AllowSelfRegister lets a correctly signed but unregistered key
	// register itself on first verification.
	AllowSelfRegister bool `envconfig:"ALLOW_SELF_REGISTER" default:"false"`

	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"10s"`
	StoreTimeout    time.Duration `envconfig:"STORE_TIMEOUT" default:"5s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("KEYSERVE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("KEYSERVE_DATABASE_URL is required for the postgres backend")
		}
	case BackendFile:
		if c.DataFile == "" {
			return fmt.Errorf("KEYSERVE_DATA_FILE is required for the file backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q (want %s or %s)", c.StoreBackend, BackendPostgres, BackendFile)
	}
	if c.RateMax <= 0 || c.RateWindow <= 0 {
		return fmt.Errorf("rate limit settings must be positive")
	}
	return nil
}
