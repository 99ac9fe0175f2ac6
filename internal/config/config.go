// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (WEBSEARCH_ prefix, runtime override)
//  2. Config file (~/.websearch-mcp/config.yaml or ./config.yaml)
//  3. Default values
//
// Validation is fail-fast: Load returns an error built from the sentinel
// errors below so callers can branch with errors.Is().
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidListenAddr indicates the HTTP listen address is malformed.
	ErrInvalidListenAddr = errors.New("invalid listen address")

	// ErrInvalidConcurrency indicates the enrichment concurrency is out of range.
	ErrInvalidConcurrency = errors.New("invalid enrichment concurrency")

	// ErrInvalidMaxContentLength indicates the content length cap is out of range.
	ErrInvalidMaxContentLength = errors.New("invalid max content length")

	// ErrInvalidFetchTimeout indicates the page fetch timeout is out of range.
	ErrInvalidFetchTimeout = errors.New("invalid fetch timeout")

	// ErrInvalidLogLevel indicates the log level name is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
)

// Defaults mirrored by tool argument defaults in internal/mcp.
const (
	// DefaultListenAddr is where the SSE server binds.
	DefaultListenAddr = "0.0.0.0:8000"

	// DefaultFetchTimeout bounds a single outbound page fetch.
	DefaultFetchTimeout = 10 * time.Second

	// DefaultMaxContentLength caps extracted page text, in characters.
	DefaultMaxContentLength = 50000

	// DefaultEnrichConcurrency caps simultaneous page fetches per batch.
	DefaultEnrichConcurrency = 5

	// MaxEnrichConcurrency is an upper bound to protect the outbound pool.
	MaxEnrichConcurrency = 64
)

// ServerConfig holds the HTTP/SSE serving settings.
type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// SearchConfig holds search backend settings.
type SearchConfig struct {
	// Timeout bounds one backend search call.
	Timeout time.Duration `mapstructure:"timeout"`
}

// EnrichConfig holds enrichment pipeline settings.
type EnrichConfig struct {
	Concurrency      int           `mapstructure:"concurrency"`
	FetchTimeout     time.Duration `mapstructure:"fetch_timeout"`
	MaxContentLength int           `mapstructure:"max_content_length"`

	// BlockPrivateHosts refuses page fetches to private, loopback and
	// metadata targets. Disable only for trusted local development.
	BlockPrivateHosts bool `mapstructure:"block_private_hosts"`
}

// TracingConfig holds the optional OTLP trace exporter settings.
// Tracing is disabled when Endpoint is empty.
type TracingConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
	Environment string `mapstructure:"environment"`
}

// Config stores the full application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Search  SearchConfig  `mapstructure:"search"`
	Enrich  EnrichConfig  `mapstructure:"enrich"`
	Tracing TracingConfig `mapstructure:"tracing"`

	LogLevel string `mapstructure:"log_level"`
	LogJSON  bool   `mapstructure:"log_json"`
}

// Load loads configuration with priority: env > config file > defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".websearch-mcp"))
	}
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvPrefix("WEBSEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error: defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", DefaultListenAddr)

	v.SetDefault("search.timeout", 15*time.Second)

	v.SetDefault("enrich.concurrency", DefaultEnrichConcurrency)
	v.SetDefault("enrich.fetch_timeout", DefaultFetchTimeout)
	v.SetDefault("enrich.max_content_length", DefaultMaxContentLength)
	v.SetDefault("enrich.block_private_hosts", true)

	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.service_name", "websearch-mcp")
	v.SetDefault("tracing.environment", "dev")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
}

// Validate checks the configuration for out-of-range values.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.ListenAddr) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidListenAddr)
	}
	if !strings.Contains(c.Server.ListenAddr, ":") {
		return fmt.Errorf("%w: %q (want host:port)", ErrInvalidListenAddr, c.Server.ListenAddr)
	}

	if c.Enrich.Concurrency < 1 || c.Enrich.Concurrency > MaxEnrichConcurrency {
		return fmt.Errorf("%w: %d (want 1..%d)", ErrInvalidConcurrency, c.Enrich.Concurrency, MaxEnrichConcurrency)
	}
	if c.Enrich.MaxContentLength < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxContentLength, c.Enrich.MaxContentLength)
	}
	if c.Enrich.FetchTimeout <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidFetchTimeout, c.Enrich.FetchTimeout)
	}

	if _, err := c.SlogLevel(); err != nil {
		return err
	}

	return nil
}

// SlogLevel maps the configured level name to a slog.Level.
func (c *Config) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.LogLevel)
	}
}
