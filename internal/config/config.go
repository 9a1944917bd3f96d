// Package config handles resolving configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// LogLevel is the minimum level of emitted log records.
type LogLevel string

// Supported log levels.
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// SlogLevel converts the level for use with log/slog. Unknown levels map to
// info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	case LogLevelInfo:
		return slog.LevelInfo
	default:
		return slog.LevelInfo
	}
}

// Config is the recorrect configuration file.
type Config struct {
	LogLevel LogLevel `yaml:"log_level"`
	DevMode  bool     `yaml:"dev_mode"`
	// WebAddress is where the rewriting proxy listens.
	WebAddress string `yaml:"web_address"`
	// UpstreamURI is the site the proxy rewrites. Required by serve unless
	// DevMode is set.
	UpstreamURI   string        `yaml:"upstream_uri"`
	UserAgent     string        `yaml:"user_agent"`
	CacheBytes    int64         `yaml:"cache_bytes"`
	RenderTimeout time.Duration `yaml:"render_timeout"`
}

// Default returns a version of the config with all default values populated.
// It carries no upstream, so it is only valid for serve in dev mode.
func Default() *Config {
	return &Config{
		LogLevel:      LogLevelInfo,
		WebAddress:    "localhost:9999",
		UserAgent:     "recorrect",
		CacheBytes:    32 << 20, //nolint:mnd // 32 MiB
		RenderTimeout: 30 * time.Second,
	}
}

// Load loads a YAML configuration file from a path, merges it with defaults,
// and validates it. A missing file produces an error wrapping
// os.ErrNotExist.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // allow the config file to be loaded from anywhere
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err = dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to unmarshal config file at %s: %w", path, err)
	}
	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks every field independently and reports all problems.
func (c *Config) Validate() error {
	var errs []error
	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		errs = append(errs, fmt.Errorf("log_level: unknown level %q", c.LogLevel))
	}
	if c.UpstreamURI != "" {
		if uri, err := url.Parse(c.UpstreamURI); err != nil {
			errs = append(errs, fmt.Errorf("upstream_uri: %w", err))
		} else if !uri.IsAbs() || uri.Host == "" {
			errs = append(errs, fmt.Errorf("upstream_uri: %q is not an absolute URL", c.UpstreamURI))
		}
	}
	if c.CacheBytes < 0 {
		errs = append(errs, errors.New("cache_bytes: must not be negative"))
	}
	if c.RenderTimeout <= 0 {
		errs = append(errs, errors.New("render_timeout: must be positive"))
	}
	return errors.Join(errs...)
}

// RequireUpstream reports an error when the proxy has nothing to rewrite.
func (c *Config) RequireUpstream() error {
	if c.UpstreamURI == "" && !c.DevMode {
		return errors.New("upstream_uri must be set unless dev_mode is enabled")
	}
	return nil
}
