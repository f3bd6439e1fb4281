// Copyright (c) 2026 Registra. All rights reserved.

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, token codec) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This ensures the application is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/registra/registra/internal/platform/sec"
)

// InsecureDefaultSecret is the development-only fallback signing secret.
//
// # Known Gap
//
// A guessable default secret is a latent security weakness inherited from the
// original design: any deployment that forgets to set JWT_SECRET signs tokens
// anyone can forge. Load refuses to start in production without an explicit
// secret, but development deployments silently fall back to this value.
const InsecureDefaultSecret = "registra-insecure-dev-secret"

// # Configuration Schema

// Config holds all runtime configuration for the Registra API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// JWTSecret signs access tokens. Required in production; development
	// falls back to [InsecureDefaultSecret].
	JWTSecret string `env:"JWT_SECRET"`

	// TokenTTL is the access token lifetime.
	TokenTTL time.Duration `env:"TOKEN_TTL" envDefault:"1h"`

	// BcryptCost is the password hashing work factor. Zero selects the
	// library default.
	BcryptCost int `env:"BCRYPT_COST" envDefault:"0"`

	// DefaultRole is assigned to registrations that do not specify a role.
	DefaultRole string `env:"DEFAULT_ROLE" envDefault:"student"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	// The signing secret must be explicit in production. Elsewhere the
	// insecure default keeps local development frictionless.
	if cfg.JWTSecret == "" {
		if cfg.IsProduction() {
			return nil, fmt.Errorf("config: JWT_SECRET is required in production")
		}
		cfg.JWTSecret = InsecureDefaultSecret
	}

	if _, err := sec.ParseRole(cfg.DefaultRole); err != nil {
		return nil, fmt.Errorf("config: invalid DEFAULT_ROLE: %w", err)
	}

	return cfg, nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
