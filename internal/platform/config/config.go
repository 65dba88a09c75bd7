// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

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
  - DI-Friendly: Passed to core components (DB, Redis, limiter) via constructors.
  - Fail Fast: A missing signing secret stops the process before it listens.

Optional backends (Postgres, Redis, Kafka, identity provider) are enabled by
setting their URL. Leaving them empty selects the in-process implementation.
*/
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// minProductionSecretBytes is the shortest JWT_SECRET accepted outside development.
const minProductionSecretBytes = 32

// # Configuration Schema

// Config holds all runtime configuration for the extcontrol API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`
	LogLevel    string `env:"LOG_LEVEL"    envDefault:"info"`

	// Relational Database (PostgreSQL). Enables self-managed credentials.
	DatabaseURL string `env:"DATABASE_URL"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Store (Redis). Enables the shared limiter and the denylist.
	RedisURL string `env:"REDIS_URL"`

	// Token signing
	JWTSecret       string        `env:"JWT_SECRET,required"`
	JWTIssuer       string        `env:"JWT_ISSUER"        envDefault:"extcontrol"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL"  envDefault:"24h"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`

	// Login throttling
	LoginMaxAttempts          int           `env:"LOGIN_MAX_ATTEMPTS"           envDefault:"5"`
	LoginWindow               time.Duration `env:"LOGIN_WINDOW"                 envDefault:"15m"`
	LoginBlockDuration        time.Duration `env:"LOGIN_BLOCK_DURATION"         envDefault:"30m"`
	LoginLimiterMaxEntries    int           `env:"LOGIN_LIMITER_MAX_ENTRIES"    envDefault:"100000"`
	LoginLimiterSweepInterval time.Duration `env:"LOGIN_LIMITER_SWEEP_INTERVAL" envDefault:"1m"`

	// Password policy shared by every entry point
	PasswordMinLength    int  `env:"PASSWORD_MIN_LENGTH"    envDefault:"8"`
	PasswordRequireUpper bool `env:"PASSWORD_REQUIRE_UPPER" envDefault:"true"`
	PasswordRequireLower bool `env:"PASSWORD_REQUIRE_LOWER" envDefault:"true"`
	PasswordRequireDigit bool `env:"PASSWORD_REQUIRE_DIGIT" envDefault:"true"`

	// External identity provider
	IdentityProviderURL     string        `env:"IDP_URL"`
	IdentityProviderAPIKey  string        `env:"IDP_API_KEY"`
	IdentityProviderTimeout time.Duration `env:"IDP_TIMEOUT" envDefault:"5s"`

	// Audit events
	KafkaBrokers    []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaAuditTopic string   `env:"KAFKA_AUDIT_TOPIC" envDefault:"auth.audit"`

	// TrustedProxies lists CIDRs or addresses whose X-Forwarded-For and
	// X-Real-IP headers are believed. Empty means the socket peer is the client.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`

	// StrictEntitlements re-reads the account record on every gated
	// premium/admin route instead of trusting token claims.
	StrictEntitlements bool `env:"STRICT_ENTITLEMENTS" envDefault:"false"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct and validates it.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.JWTSecret) == "" {
		errs = append(errs, errors.New("JWT_SECRET must not be blank"))
	} else if !c.IsDevelopment() && len(c.JWTSecret) < minProductionSecretBytes {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d bytes outside development", minProductionSecretBytes))
	}

	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("token lifetimes must be positive"))
	} else if c.RefreshTokenTTL <= c.AccessTokenTTL {
		errs = append(errs, errors.New("REFRESH_TOKEN_TTL must be longer than ACCESS_TOKEN_TTL"))
	}

	if c.LoginMaxAttempts < 1 {
		errs = append(errs, errors.New("LOGIN_MAX_ATTEMPTS must be at least 1"))
	}
	if c.LoginWindow <= 0 || c.LoginBlockDuration <= 0 {
		errs = append(errs, errors.New("LOGIN_WINDOW and LOGIN_BLOCK_DURATION must be positive"))
	}
	if c.LoginLimiterMaxEntries < 1 {
		errs = append(errs, errors.New("LOGIN_LIMITER_MAX_ENTRIES must be at least 1"))
	}

	if c.PasswordMinLength < 1 {
		errs = append(errs, errors.New("PASSWORD_MIN_LENGTH must be at least 1"))
	}

	if c.IdentityProviderURL != "" && c.IdentityProviderTimeout <= 0 {
		errs = append(errs, errors.New("IDP_TIMEOUT must be positive"))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", c.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// AllowedOrigins returns the comma-separated EXTRA_ORIGINS as a slice.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.ExtraOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}
