// Package config loads the desk engine settings.
//
// Priority: ENV > .env file > YAML file (CONFIG_FILE) > defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/eventdesk/desk-engine/internal/contract"
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config holds every setting of the process. Durations are configured in
// milliseconds (seconds for the snapshot TTL).
type Config struct {
	Env         string `yaml:"env"` // DEMO or PROD
	KeyID       string `yaml:"key_id"`
	KeyFile     string `yaml:"key_file"`
	BaseURL     string `yaml:"base_url"` // overrides the ENV host
	EventTicker string `yaml:"event_ticker"`
	Port        string `yaml:"port"`

	QuoteIntervalMS   int64 `yaml:"quote_interval_ms"`
	RestingIntervalMS int64 `yaml:"resting_interval_ms"`
	MaxQuoteAgeMS     int64 `yaml:"max_quote_age_ms"` // 0 disables

	MaxPositionPerMarket int64 `yaml:"max_position_per_market"` // 0 disables
	MaxEventExposure     int64 `yaml:"max_event_exposure"`      // 0 disables

	DatabaseURL  string `yaml:"database_url"`
	RedisURL     string `yaml:"redis_url"`
	SnapshotTTLS int64  `yaml:"snapshot_ttl_s"`

	LogLevel    string   `yaml:"log_level"`
	LogFile     string   `yaml:"log_file"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Env:               "DEMO",
		Port:              "8000",
		QuoteIntervalMS:   500,
		RestingIntervalMS: 3000,
		MaxQuoteAgeMS:     5000,
		SnapshotTTLS:      300,
		LogLevel:          "info",
		CORSOrigins:       []string{"*"},
	}
}

// Load builds the configuration from defaults, the optional YAML file named
// by CONFIG_FILE, an optional .env file and the environment, then validates
// it.
func Load(envPath string) (Config, error) {
	// Optional: a missing .env is not an error.
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return cfg, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	err := cfg.Validate()
	return cfg, err
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.Env, "ENV")
	c.Env = strings.ToUpper(c.Env)

	// Credentials are per environment: DEMO_KEYID / PROD_KEYID.
	setString(&c.KeyID, c.Env+"_KEYID")
	setString(&c.KeyFile, c.Env+"_KEYFILE")

	setString(&c.BaseURL, "KALSHI_BASE_URL")
	setString(&c.EventTicker, "EVENT_TICKER")
	setString(&c.Port, "PORT")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.RedisURL, "REDIS_URL")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.LogFile, "LOG_FILE")

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.CORSOrigins = splitList(v)
	}

	ints := []struct {
		key string
		dst *int64
	}{
		{"QUOTE_INTERVAL_MS", &c.QuoteIntervalMS},
		{"RESTING_INTERVAL_MS", &c.RestingIntervalMS},
		{"MAX_QUOTE_AGE_MS", &c.MaxQuoteAgeMS},
		{"MAX_POSITION_PER_MARKET", &c.MaxPositionPerMarket},
		{"MAX_EVENT_EXPOSURE", &c.MaxEventExposure},
		{"SNAPSHOT_TTL_S", &c.SnapshotTTLS},
	}
	for _, it := range ints {
		v := os.Getenv(it.key)
		if v == "" {
			continue
		}
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfig, it.key, v)
		}
		*it.dst = n
	}
	return nil
}

// Validate checks required settings and normalizes the event ticker.
func (c *Config) Validate() error {
	var errs []error

	if c.Env != "DEMO" && c.Env != "PROD" {
		errs = append(errs, fmt.Errorf("ENV must be DEMO or PROD, got %q", c.Env))
	}
	if c.KeyID == "" {
		errs = append(errs, fmt.Errorf("%s_KEYID is required", c.Env))
	}
	if c.KeyFile == "" {
		errs = append(errs, fmt.Errorf("%s_KEYFILE is required", c.Env))
	}
	if et, err := contract.ValidateEventTicker(c.EventTicker); err != nil {
		errs = append(errs, fmt.Errorf("EVENT_TICKER: %w", err))
	} else {
		c.EventTicker = et
	}
	if c.QuoteIntervalMS <= 0 || c.RestingIntervalMS <= 0 {
		errs = append(errs, errors.New("poll intervals must be positive"))
	}
	if c.MaxQuoteAgeMS < 0 || c.MaxPositionPerMarket < 0 || c.MaxEventExposure < 0 || c.SnapshotTTLS < 0 {
		errs = append(errs, errors.New("limits and ages must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func (c Config) QuoteInterval() time.Duration {
	return time.Duration(c.QuoteIntervalMS) * time.Millisecond
}

func (c Config) RestingInterval() time.Duration {
	return time.Duration(c.RestingIntervalMS) * time.Millisecond
}

func (c Config) MaxQuoteAge() time.Duration {
	return time.Duration(c.MaxQuoteAgeMS) * time.Millisecond
}

func (c Config) SnapshotTTL() time.Duration {
	return time.Duration(c.SnapshotTTLS) * time.Second
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func setString(dst *string, key string) {
	*dst = getEnv(key, *dst)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
