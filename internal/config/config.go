// Package config handles CLI flags, optional TOML configuration and validation.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/blackhole-proxy/config.toml",
	"configs/config.toml",
}

// reservedRoutes are served by the proxy itself and never relayed.
var reservedRoutes = []string{"/healthz", "/proxy/status"}

// Outbound header defaults. They mimic a desktop browser navigating from the
// JioSaavn web player.
const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	DefaultAccept    = "application/json, text/plain, */*"
	DefaultReferer   = "https://www.jiosaavn.com/"
	DefaultOrigin    = "https://www.jiosaavn.com"
)

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config   string `kong:"short='c',help='Path to TOML config file.',env='BLACKHOLE_CONFIG'"`
	Host     string `kong:"help='Listen host (overrides config).',env='BLACKHOLE_HOST'"`
	Port     int    `kong:"short='p',help='Listen port (overrides config).',env='BLACKHOLE_PORT'"`
	Timeout  int    `kong:"help='Outbound request timeout in seconds (overrides config).',env='BLACKHOLE_TIMEOUT'"`
	LogLevel string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='BLACKHOLE_LOG_LEVEL'"`
	Metrics  bool   `kong:"help='Expose Prometheus metrics (overrides config).',env='BLACKHOLE_METRICS'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Upstream UpstreamConfig `toml:"upstream"`
	Log      LogConfig      `toml:"log"`
	Metrics  MetricsConfig  `toml:"metrics"`

	filePath string // resolved config file path; empty when running on defaults
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"` // 0 means "use default" (3000); TOML cannot distinguish 0 from unset
}

// UpstreamConfig holds settings for the outbound request issued per relay.
type UpstreamConfig struct {
	TimeoutSeconds int           `toml:"timeout_seconds"`
	Headers        HeadersConfig `toml:"headers"`
}

// HeadersConfig is the fixed header set attached to every outbound request.
// Nothing from the inbound request is forwarded.
type HeadersConfig struct {
	UserAgent string `toml:"user_agent"`
	Accept    string `toml:"accept"`
	Referer   string `toml:"referer"`
	Origin    string `toml:"origin"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Load builds the configuration from an optional TOML file plus CLI overrides.
// When no explicit path is given (via --config or BLACKHOLE_CONFIG), it searches
// /etc/blackhole-proxy/config.toml then configs/config.toml, and falls back to
// built-in defaults when neither exists.
func Load(cli *CLI) (*Config, error) {
	var cfg Config

	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.filePath = path
	}

	cfg.applyCLI(cli)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// Default returns the configuration used when no file or flags are given.
func Default() *Config {
	var cfg Config
	cfg.setDefaults()
	return &cfg
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.Timeout != 0 {
		c.Upstream.TimeoutSeconds = cli.Timeout
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
	if cli.Metrics {
		c.Metrics.Enabled = true
	}
}

func (c *Config) validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 0–65535; got %d", c.Server.Port)
	}
	if c.Upstream.TimeoutSeconds < 0 {
		return fmt.Errorf("upstream.timeout_seconds must be non-negative; got %d", c.Upstream.TimeoutSeconds)
	}

	// Referer and Origin are sent verbatim, so they must at least be absolute URLs.
	if err := validateAbsoluteURL("upstream.headers.referer", c.Upstream.Headers.Referer); err != nil {
		return err
	}
	if err := validateAbsoluteURL("upstream.headers.origin", c.Upstream.Headers.Origin); err != nil {
		return err
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text", "":
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	// Metrics path validation (only when metrics are enabled).
	if c.Metrics.Enabled && c.Metrics.Path != "" {
		p := c.Metrics.Path
		if p[0] != '/' {
			return fmt.Errorf("metrics.path must start with '/'; got %q", p)
		}
		if p == "/" {
			return errors.New("metrics.path must not be '/'; it would shadow the relay endpoint")
		}
		for _, reserved := range reservedRoutes {
			if p == reserved || strings.HasPrefix(p, reserved+"/") {
				return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, reserved)
			}
		}
	}

	return nil
}

func validateAbsoluteURL(field, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", field, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL; got %q", field, raw)
	}
	return nil
}

// setDefaults fills zero-valued fields with defaults.
// For integer fields zero means "unset" because TOML cannot distinguish between
// an explicit 0 and an omitted key.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Upstream.TimeoutSeconds == 0 {
		c.Upstream.TimeoutSeconds = 10
	}
	h := &c.Upstream.Headers
	if h.UserAgent == "" {
		h.UserAgent = DefaultUserAgent
	}
	if h.Accept == "" {
		h.Accept = DefaultAccept
	}
	if h.Referer == "" {
		h.Referer = DefaultReferer
	}
	if h.Origin == "" {
		h.Origin = DefaultOrigin
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// FilePath returns the config file that was loaded, or empty when running on defaults.
func (c *Config) FilePath() string {
	return c.filePath
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Timeout returns the outbound request timeout.
func (c *UpstreamConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
