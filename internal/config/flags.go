package config

import (
	"flag"
	"io"
)

// parseFlags overlays command-line flags onto cfg.
//
// Supported flags:
//
//	-addr string               HTTP bind address
//	-database-dsn string       PostgreSQL DSN; empty keeps state in memory
//	-scheme string             schnorr | pow
//	-challenge-ttl duration    challenge lifetime
//	-session-ttl duration      session token lifetime
//	-cleanup-interval duration expiry sweep period
//	-rate-limit int            max requests per minute per client
//	-issuer string             JWT issuer
//	-audience string           JWT audience
//	-token-ttl duration        JWT lifetime
//	-key string                JWT signing key file
//	-key-config string         JWT key config file
//	-log-level string          debug | info | warn | error
//	-config string             JSON config file (read before flags)
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("zkid-authd", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "Server address")
	fs.StringVar(&cfg.DatabaseDSN, "database-dsn", cfg.DatabaseDSN, "PostgreSQL DSN (empty for in-memory storage)")
	fs.StringVar(&cfg.Scheme, "scheme", cfg.Scheme, "Proof scheme (schnorr|pow)")
	fs.DurationVar(&cfg.ChallengeTTL, "challenge-ttl", cfg.ChallengeTTL, "Challenge TTL")
	fs.DurationVar(&cfg.SessionTTL, "session-ttl", cfg.SessionTTL, "Session token TTL")
	fs.DurationVar(&cfg.CleanupInterval, "cleanup-interval", cfg.CleanupInterval, "Expired state sweep interval")
	fs.IntVar(&cfg.RateLimit, "rate-limit", cfg.RateLimit, "Max requests per minute per client")
	fs.StringVar(&cfg.Issuer, "issuer", cfg.Issuer, "JWT issuer")
	fs.StringVar(&cfg.Audience, "audience", cfg.Audience, "JWT audience")
	fs.DurationVar(&cfg.TokenTTL, "token-ttl", cfg.TokenTTL, "JWT token TTL")
	fs.StringVar(&cfg.KeyFile, "key", cfg.KeyFile, "JWT signing key file")
	fs.StringVar(&cfg.KeyConfigFile, "key-config", cfg.KeyConfigFile, "JWT key config file")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug|info|warn|error)")

	// consumed by jsonConfigPath; declared so the flag set accepts it
	var configFile string
	fs.StringVar(&configFile, "config", "", "JSON config file")
	fs.StringVar(&configFile, "c", "", "JSON config file (shorthand)")

	return fs.Parse(args)
}
