// Package config loads and validates keygate configuration from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StoreDriverMemory = "memory"
	StoreDriverRedis  = "redis"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :9000).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// RedisURL is used by the redis session store and the event stream.
	RedisURL string `mapstructure:"REDIS_URL"`
	// StoreDriver selects the wallet session store: "memory" or "redis".
	StoreDriver string `mapstructure:"STORE_DRIVER"`

	// CustodianURL is the base URL of the custodial wallet backend.
	CustodianURL string `mapstructure:"CUSTODIAN_URL"`
	// CustodianAPIKey authenticates this service to the backend.
	CustodianAPIKey string `mapstructure:"CUSTODIAN_API_KEY"`
	// CustodianTimeout bounds every backend call (e.g. "10s").
	CustodianTimeout string `mapstructure:"CUSTODIAN_TIMEOUT"`

	// AuthPublicKey is the PEM-encoded ECDSA public key, or a path to it, verifying user tokens.
	AuthPublicKey string `mapstructure:"AUTH_PUBLIC_KEY"`
	// AuthAudience is the aud claim user tokens must carry.
	AuthAudience string `mapstructure:"AUTH_AUDIENCE"`

	// OwnershipCacheTTL caches positive ownership answers; "0s" disables the cache.
	OwnershipCacheTTL string `mapstructure:"OWNERSHIP_CACHE_TTL"`

	// EventsEnabled turns on publishing of wallet lifecycle events to Redis streams.
	EventsEnabled bool `mapstructure:"EVENTS_ENABLED"`
	// EventsTopicPrefix namespaces event topics.
	EventsTopicPrefix string `mapstructure:"EVENTS_TOPIC_PREFIX"`

	Debug bool `mapstructure:"DEBUG"`
}

// Load reads .env (if present), then builds and validates Config from KEYGATE_* environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore missing .env

	v.SetEnvPrefix("KEYGATE")
	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":9000")
	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("STORE_DRIVER", StoreDriverRedis)
	v.SetDefault("CUSTODIAN_URL", "")
	v.SetDefault("CUSTODIAN_API_KEY", "")
	v.SetDefault("CUSTODIAN_TIMEOUT", "10s")
	v.SetDefault("AUTH_PUBLIC_KEY", "")
	v.SetDefault("AUTH_AUDIENCE", "session:access")
	v.SetDefault("OWNERSHIP_CACHE_TTL", "0s")
	v.SetDefault("EVENTS_ENABLED", false)
	v.SetDefault("EVENTS_TOPIC_PREFIX", "keygate.")
	v.SetDefault("DEBUG", false)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if c.CustodianURL == "" {
		return errors.New("config: CUSTODIAN_URL must be set")
	}
	if c.AuthPublicKey == "" {
		return errors.New("config: AUTH_PUBLIC_KEY must be set")
	}
	switch c.StoreDriver {
	case StoreDriverMemory:
	case StoreDriverRedis:
		if c.RedisURL == "" {
			return errors.New("config: REDIS_URL must be set for the redis store")
		}
	default:
		return fmt.Errorf("config: unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.EventsEnabled && c.RedisURL == "" {
		return errors.New("config: REDIS_URL must be set when EVENTS_ENABLED is true")
	}
	if _, err := parsePositive(c.CustodianTimeout); err != nil {
		return fmt.Errorf("config: CUSTODIAN_TIMEOUT: %w", err)
	}
	return nil
}

func parsePositive(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, errors.New("must be positive")
	}
	return d, nil
}

// Timeout returns the custodian call timeout. Returns 10s if unset or invalid.
func (c *Config) Timeout() time.Duration {
	d, err := parsePositive(c.CustodianTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// OwnershipTTL returns the ownership cache TTL; zero when disabled or invalid.
func (c *Config) OwnershipTTL() time.Duration {
	d, err := time.ParseDuration(c.OwnershipCacheTTL)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// PublicKeyPEM returns the PEM bytes of AuthPublicKey, reading it from disk when it is a path.
func (c *Config) PublicKeyPEM() ([]byte, error) {
	if strings.Contains(c.AuthPublicKey, "-----BEGIN") {
		return []byte(c.AuthPublicKey), nil
	}
	data, err := os.ReadFile(c.AuthPublicKey)
	if err != nil {
		return nil, fmt.Errorf("config: read AUTH_PUBLIC_KEY: %w", err)
	}
	return data, nil
}
