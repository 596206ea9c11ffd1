// Package config loads client settings from the environment and an optional
// .env file.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"github.com/PaulBabatuyi/pairchat/internal/chatlist"
)

const (
	BackendMemory = "memory"
	BackendRemote = "remote"
)

type Config struct {
	Debug   bool   `env:"DEBUG" envDefault:"false"`
	Backend string `env:"BACKEND" envDefault:"memory"`

	// SessionToken resumes a session issued earlier instead of showing the
	// login screen.
	SessionToken         string `env:"SESSION_TOKEN"`
	MissingProfilePolicy string `env:"MISSING_PROFILE_POLICY" envDefault:"drop"`

	Mongo struct {
		URI      string `env:"MONGODB_URI"`
		Database string `env:"MONGODB_DATABASE" envDefault:"pairchat"`
	}

	Redis struct {
		Addr     string `env:"REDIS_ADDR"`
		Password string `env:"REDIS_PASSWORD" envDefault:""`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	Auth struct {
		Secret string `env:"JWT_SECRET"`
		// Keys enables token rotation: kid:secret,kid2:secret2
		Keys      map[string]string `env:"JWT_KEYS" envSeparator:"," envKeyValSeparator:":"`
		ActiveKid string            `env:"JWT_ACTIVE_KID"`
		TokenTTL  time.Duration     `env:"TOKEN_TTL" envDefault:"24h"`

		SignInRatePerMinute int     `env:"SIGNIN_RATE_PER_MINUTE" envDefault:"10"`
		SignInBurst         int     `env:"SIGNIN_BURST" envDefault:"3"`
		MinEntropyBits      float64 `env:"PASSWORD_MIN_ENTROPY" envDefault:"30"`
	}
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	// a missing .env is fine; variables may be set directly
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the rules that span several variables.
func (c *Config) Validate() error {
	var errs []error

	switch c.Backend {
	case BackendMemory:
	case BackendRemote:
		if c.Mongo.URI == "" {
			errs = append(errs, errors.New("MONGODB_URI must be set for the remote backend"))
		}
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("REDIS_ADDR must be set for the remote backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown BACKEND %q", c.Backend))
	}

	if c.Auth.Secret == "" && len(c.Auth.Keys) == 0 {
		errs = append(errs, errors.New("either JWT_SECRET or JWT_KEYS must be set"))
	}
	if len(c.Auth.Keys) > 0 {
		if _, ok := c.Auth.Keys[c.Auth.ActiveKid]; !ok {
			errs = append(errs, fmt.Errorf("JWT_ACTIVE_KID %q is not in JWT_KEYS", c.Auth.ActiveKid))
		}
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if _, err := chatlist.ParsePolicy(c.MissingProfilePolicy); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Policy returns the parsed missing-profile policy.
func (c *Config) Policy() chatlist.Policy {
	p, _ := chatlist.ParsePolicy(c.MissingProfilePolicy)
	return p
}
