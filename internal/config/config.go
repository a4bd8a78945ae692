// Package config handles configuration for the identity server,
// including defaults, JSON overlay, and command-line flags.
package config

import (
	"fmt"
	"time"

	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/crypto/schnorr"
)

// Config holds runtime settings for the identity server.
//
// Fields:
//   - Addr: HTTP bind address.
//   - DatabaseDSN: PostgreSQL DSN (pgx). Empty selects the in-memory store.
//   - Scheme: proof scheme, "schnorr" (g^x registration) or "pow" (legacy wallets).
//   - ChallengeTTL: how long an issued challenge stays answerable.
//   - SessionTTL: lifetime of a session token.
//   - CleanupInterval: period of the expired challenge/session sweep.
//   - RateLimit: max requests per minute per client IP.
//   - Issuer / Audience / TokenTTL: access-token (JWT) claims and lifetime.
//   - KeyFile / KeyConfigFile: ES256 signing key and its metadata; generated when missing.
//   - LogLevel: debug, info, warn or error.
type Config struct {
	Addr            string
	DatabaseDSN     string
	Scheme          string
	ChallengeTTL    time.Duration
	SessionTTL      time.Duration
	CleanupInterval time.Duration
	RateLimit       int
	Issuer          string
	Audience        string
	TokenTTL        time.Duration
	KeyFile         string
	KeyConfigFile   string
	LogLevel        string
}

// LoadDefaults populates Config with development defaults.
// The challenge and session lifetimes follow the deployed wallet protocol.
func (c *Config) LoadDefaults() {
	c.Addr = ":8080"
	c.DatabaseDSN = ""
	c.Scheme = schnorr.SchemeSchnorr
	c.ChallengeTTL = 60 * time.Second
	c.SessionTTL = time.Hour
	c.CleanupInterval = time.Minute
	c.RateLimit = 120
	c.Issuer = "https://auth.zkid.example"
	c.Audience = "zkid-api"
	c.TokenTTL = time.Hour
	c.KeyFile = "keys/jwt-signing.pem"
	c.KeyConfigFile = "keys/jwt-config.json"
	c.LogLevel = "info"
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	switch c.Scheme {
	case schnorr.SchemePow, schnorr.SchemeSchnorr:
	default:
		return fmt.Errorf("unsupported scheme %q (want one of %v)", c.Scheme, schnorr.SupportedSchemes())
	}
	if c.ChallengeTTL <= 0 {
		return fmt.Errorf("challenge TTL must be positive")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}
	if c.CleanupInterval <= 0 {
		return fmt.Errorf("cleanup interval must be positive")
	}
	if c.RateLimit <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}
	return nil
}

// Load builds a Config by applying defaults, then overlaying values
// from an optional JSON file (-config) and finally from command-line flags.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if path := jsonConfigPath(args); path != "" {
		if err := parseJSON(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
