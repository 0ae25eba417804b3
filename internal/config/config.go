package config

import (
	"errors"
	"fmt"
	"os"
	"time"
)

var ErrMissingRequiredValue = errors.New("missing required value")
var ErrInvalidValue = errors.New("invalid value")

type environment string

const (
	production  environment = "production"
	staging     environment = "staging"
	development environment = "development"
)

type Config struct {
	sentryDSN     string
	redisAddr     string
	evictionDelay time.Duration
	env           environment
}

func (c *Config) SentryDSN() string {
	return c.sentryDSN
}

func (c *Config) RedisAddr() string {
	return c.redisAddr
}

// EvictionDelay is the registry-wide default abandonment delay. Zero means
// "use the built-in fallback".
func (c *Config) EvictionDelay() time.Duration {
	return c.evictionDelay
}

func (c *Config) IsProduction() bool {
	return c.env == production
}

func (c *Config) IsStaging() bool {
	return c.env == staging
}

func (c *Config) IsDevelopment() bool {
	return c.env == development
}

// Return a string representation suitable for logging etc
func (c *Config) NonSensitiveString() string {
	return fmt.Sprintf("Config{env: %s, redisAddr: %s, evictionDelay: %s}", string(c.env), c.redisAddr, c.evictionDelay)
}

func ConfigFromEnv() (Config, error) {
	missingKey := func(key string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingRequiredValue, key)
	}

	var env environment
	rawEnv, ok := os.LookupEnv("WATCHLIGHT_ENVIRONMENT")
	if !ok {
		return missingKey("WATCHLIGHT_ENVIRONMENT")
	}
	switch rawEnv {
	case "production":
		env = production
	case "staging":
		env = staging
	case "development":
		env = development
	default:
		return Config{}, fmt.Errorf("%w: WATCHLIGHT_ENVIRONMENT (%s)", ErrInvalidValue, rawEnv)
	}

	sentryDSN := os.Getenv("SENTRY_DSN")
	redisAddr := os.Getenv("REDIS_ADDR")

	var evictionDelay time.Duration
	if rawDelay := os.Getenv("EVICTION_DELAY"); rawDelay != "" {
		parsed, err := time.ParseDuration(rawDelay)
		if err != nil || parsed <= 0 {
			return Config{}, fmt.Errorf("%w: EVICTION_DELAY (%s)", ErrInvalidValue, rawDelay)
		}
		evictionDelay = parsed
	}

	if env == production || env == staging {
		if sentryDSN == "" {
			return missingKey("SENTRY_DSN")
		}
		if redisAddr == "" {
			return missingKey("REDIS_ADDR")
		}
	}

	return Config{
		sentryDSN:     sentryDSN,
		redisAddr:     redisAddr,
		evictionDelay: evictionDelay,
		env:           env,
	}, nil
}
