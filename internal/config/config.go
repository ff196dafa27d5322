// Package config handles TOML configuration loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	toml "github.com/pelletier/go-toml/v2"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/im-connector/config.toml",
	"configs/config.toml",
}

// reservedPaths are the route prefixes owned by the gateway itself.
var reservedPaths = []string{"/api/v1/deployments", "/infrastructures", "/healthz", "/proxy/status"}

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Version  kong.VersionFlag `kong:"help='Print version and exit.'"`
	Config   string           `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Host     string           `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port     int              `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	IMHost   string           `kong:"name='im-host',help='Infrastructure Manager base URL (overrides config).',env='IM_HOST'"`
	LogLevel string           `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server      ServerConfig      `toml:"server"`
	CORS        CORSConfig        `toml:"cors"`
	IM          IMConfig          `toml:"im"`
	Deployments DeploymentsConfig `toml:"deployments"`
	Auth        AuthConfig        `toml:"auth"`
	Log         LogConfig         `toml:"log"`
	Metrics     MetricsConfig     `toml:"metrics"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string          `toml:"host"`
	Port         int             `toml:"port"` // 0 means "use default" (8000); TOML cannot distinguish 0 from unset
	BodyMaxBytes int64           `toml:"body_max_bytes"`
	RateLimit    RateLimitConfig `toml:"rate_limit"`
}

// RateLimitConfig controls per-IP request rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// CORSConfig lists the browser origins allowed to call the gateway.
type CORSConfig struct {
	AllowedOrigins []string `toml:"allowed_origins"`
}

// IMConfig holds Infrastructure Manager backend settings.
type IMConfig struct {
	BaseURL                  string   `toml:"base_url"`
	TimeoutSeconds           int      `toml:"timeout_seconds"`
	DeploymentTimeoutSeconds int      `toml:"deployment_timeout_seconds"`
	IdleConnections          int      `toml:"idle_connections"`
	AllowedHosts             []string `toml:"allowed_hosts"`
}

// DeploymentsConfig controls the structured deployment endpoint.
type DeploymentsConfig struct {
	ValidateTemplate bool `toml:"validate_template"`
}

// AuthConfig controls bearer-token verification of inbound calls.
type AuthConfig struct {
	Disabled bool           `toml:"disabled"`
	Issuers  []IssuerConfig `toml:"issuers"`
}

// IssuerConfig describes one trusted OpenID Connect provider.
type IssuerConfig struct {
	URL      string `toml:"url"`
	Audience string `toml:"audience"`
	JWKSURL  string `toml:"jwks_url"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Load reads the TOML config file and applies CLI overrides.
// When no explicit path is given (via --config or CONFIG_PATH), it searches
// /etc/im-connector/config.toml then configs/config.toml.
func Load(cli *CLI) (*Config, error) {
	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path == "" {
		return nil, fmt.Errorf("config: no config file found (searched %v)", configSearchPaths)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.filePath = path
	cfg.applyCLI(cli)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.IMHost != "" {
		c.IM.BaseURL = cli.IMHost
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

func (c *Config) validate() error {
	if c.IM.BaseURL == "" {
		return fmt.Errorf("im.base_url is required")
	}
	if err := validateHTTPURL(c.IM.BaseURL); err != nil {
		return fmt.Errorf("im.base_url: %w", err)
	}

	// Numeric bounds.
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 0–65535; got %d", c.Server.Port)
	}
	if c.Server.BodyMaxBytes < 0 {
		return fmt.Errorf("server.body_max_bytes must be non-negative; got %d", c.Server.BodyMaxBytes)
	}
	if c.IM.TimeoutSeconds < 0 {
		return fmt.Errorf("im.timeout_seconds must be non-negative; got %d", c.IM.TimeoutSeconds)
	}
	if c.IM.DeploymentTimeoutSeconds < 0 {
		return fmt.Errorf("im.deployment_timeout_seconds must be non-negative; got %d", c.IM.DeploymentTimeoutSeconds)
	}
	if c.IM.IdleConnections < 0 {
		return fmt.Errorf("im.idle_connections must be non-negative; got %d", c.IM.IdleConnections)
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("server.rate_limit.requests_per_second must be > 0 when rate limiting is enabled; got %v", c.Server.RateLimit.RequestsPerSecond)
	}
	for _, h := range c.IM.AllowedHosts {
		if strings.TrimSpace(h) == "" || strings.Contains(h, "/") {
			return fmt.Errorf("im.allowed_hosts entries must be bare host names; got %q", h)
		}
	}

	for _, o := range c.CORS.AllowedOrigins {
		if err := validateHTTPURL(o); err != nil {
			return fmt.Errorf("cors.allowed_origins %q: %w", o, err)
		}
	}

	if !c.Auth.Disabled {
		if len(c.Auth.Issuers) == 0 {
			return fmt.Errorf("auth.issuers must list at least one trusted issuer (or set auth.disabled = true)")
		}
		for i, iss := range c.Auth.Issuers {
			if err := validateHTTPURL(iss.URL); err != nil {
				return fmt.Errorf("auth.issuers[%d].url: %w", i, err)
			}
			if iss.JWKSURL != "" {
				if err := validateHTTPURL(iss.JWKSURL); err != nil {
					return fmt.Errorf("auth.issuers[%d].jwks_url: %w", i, err)
				}
			}
		}
	}

	// Log fields.
	level := strings.ToLower(c.Log.Level)
	switch level {
	case "debug", "info", "warn", "error", "":
		// valid
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	format := strings.ToLower(c.Log.Format)
	switch format {
	case "json", "text", "":
		// valid
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		return fmt.Errorf("log rotation settings must be non-negative")
	}

	// Metrics path validation (only when metrics are enabled).
	if c.Metrics.Enabled && c.Metrics.Path != "" {
		p := c.Metrics.Path
		if p[0] != '/' {
			return fmt.Errorf("metrics.path must start with '/'; got %q", p)
		}
		for _, reserved := range reservedPaths {
			if p == reserved || strings.HasPrefix(p, reserved+"/") {
				return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, reserved)
			}
		}
	}

	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https; got %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}

// setDefaults fills zero-valued fields with sensible defaults.
// For integer fields (Port, BodyMaxBytes, etc.), zero means "unset" because TOML
// cannot distinguish between an explicit 0 and an omitted key.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 10 * 1024 * 1024 // 10 MB
	}
	c.IM.BaseURL = strings.TrimRight(c.IM.BaseURL, "/")
	if c.IM.TimeoutSeconds == 0 {
		c.IM.TimeoutSeconds = 30
	}
	if c.IM.DeploymentTimeoutSeconds == 0 {
		c.IM.DeploymentTimeoutSeconds = 120
	}
	if c.IM.IdleConnections == 0 {
		c.IM.IdleConnections = 100
	}
	for i, o := range c.CORS.AllowedOrigins {
		c.CORS.AllowedOrigins[i] = strings.TrimRight(o, "/")
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 50
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 3
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = 7
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

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Timeout is the bound on a single passthrough call.
func (c *IMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DeploymentTimeout is the bound on a single deployment-creation call.
func (c *IMConfig) DeploymentTimeout() time.Duration {
	return time.Duration(c.DeploymentTimeoutSeconds) * time.Second
}

// WarnPermissions logs a warning if the config file is readable by group or others.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Warn("config file is readable by group/others; consider chmod 600",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}
