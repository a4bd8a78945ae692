package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Duration accepts both "90s"-style strings and integer nanoseconds in JSON.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		d.Duration = parsed
		return nil
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
}

// JSONConfig is the on-disk shape of the configuration file. Absent fields
// keep the defaults.
type JSONConfig struct {
	Addr            string   `json:"addr"`
	DatabaseDSN     string   `json:"database_dsn"`
	Scheme          string   `json:"scheme"`
	ChallengeTTL    Duration `json:"challenge_ttl"`
	SessionTTL      Duration `json:"session_ttl"`
	CleanupInterval Duration `json:"cleanup_interval"`
	RateLimit       int      `json:"rate_limit"`
	Issuer          string   `json:"issuer"`
	Audience        string   `json:"audience"`
	TokenTTL        Duration `json:"token_ttl"`
	KeyFile         string   `json:"key_file"`
	KeyConfigFile   string   `json:"key_config_file"`
	LogLevel        string   `json:"log_level"`
}

// jsonConfigPath finds -config/-c (single or double dash, "=" or separate value).
func jsonConfigPath(args []string) string {
	for i, arg := range args {
		name := strings.TrimLeft(arg, "-")
		if name == arg {
			continue
		}

		if key, value, ok := strings.Cut(name, "="); ok {
			if key == "config" || key == "c" {
				return value
			}
			continue
		}

		if (name == "config" || name == "c") && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func parseJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var c JSONConfig
	if err := json.Unmarshal(data, &c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	setString(&cfg.Addr, c.Addr)
	setString(&cfg.DatabaseDSN, c.DatabaseDSN)
	setString(&cfg.Scheme, c.Scheme)
	setDuration(&cfg.ChallengeTTL, c.ChallengeTTL)
	setDuration(&cfg.SessionTTL, c.SessionTTL)
	setDuration(&cfg.CleanupInterval, c.CleanupInterval)
	if c.RateLimit != 0 {
		cfg.RateLimit = c.RateLimit
	}
	setString(&cfg.Issuer, c.Issuer)
	setString(&cfg.Audience, c.Audience)
	setDuration(&cfg.TokenTTL, c.TokenTTL)
	setString(&cfg.KeyFile, c.KeyFile)
	setString(&cfg.KeyConfigFile, c.KeyConfigFile)
	setString(&cfg.LogLevel, c.LogLevel)

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
