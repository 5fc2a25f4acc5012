// ABOUTME: Configuration loading and parsing for stockdeck
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/2389/stockdeck/internal/auth"
	"github.com/2389/stockdeck/internal/market"
)

// Environment variables consulted by Load and the CLI.
const (
	EnvConfigPath = "STOCKDECK_CONFIG"
	EnvDBPath     = "STOCKDECK_DB_PATH"
)

// Defaults applied to fields left empty in the file.
const (
	DefaultHTTPAddr          = "127.0.0.1:8080"
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultDatabasePath      = "./data/stockdeck.db"
	DefaultRequestsPerMinute = 10
	DefaultBurst             = 5
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
	DefaultMetricsPath       = "/metrics"
)

// Config represents the complete stockdeck configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	Market    MarketConfig    `yaml:"market" toml:"market"`
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics"`
}

// ServerConfig holds HTTP listener configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
	// SecureCookies forces the Secure flag even on plain-HTTP requests,
	// for deployments behind a TLS-terminating proxy.
	SecureCookies     bool          `yaml:"secure_cookies" toml:"secure_cookies"`
	ReadHeaderTimeout time.Duration `yaml:"-" toml:"-"`

	ReadHeaderTimeoutRaw string `yaml:"read_header_timeout" toml:"read_header_timeout"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
	HTTPS     bool   `yaml:"https" toml:"https"` // serve on :443 with a tailnet certificate
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// AuthConfig holds credential signing configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" toml:"jwt_secret"`
}

// MarketConfig holds upstream market-data provider configuration
type MarketConfig struct {
	BaseURL  string        `yaml:"base_url" toml:"base_url"`
	APIKey   string        `yaml:"api_key" toml:"api_key"`
	Symbols  []string      `yaml:"symbols" toml:"symbols"`
	Timeout  time.Duration `yaml:"-" toml:"-"`
	CacheTTL time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	TimeoutRaw  string `yaml:"timeout" toml:"timeout"`
	CacheTTLRaw string `yaml:"cache_ttl" toml:"cache_ttl"`
}

// RateLimitConfig bounds signup and login attempts per client IP
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" toml:"requests_per_minute"`
	Burst             int `yaml:"burst" toml:"burst"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML; anything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := Parse(data, formatFromPath(path))
	if err != nil {
		return nil, err
	}

	if dbPath := os.Getenv(EnvDBPath); dbPath != "" {
		cfg.Database.Path = dbPath
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Format identifies a configuration file syntax.
type Format string

// Supported configuration formats.
const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

func formatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Parse decodes configuration bytes, expands environment variables, parses
// durations, and applies defaults. It does not validate.
func Parse(data []byte, format Format) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	switch format {
	case FormatTOML:
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// envVarPattern matches ${VAR_NAME}
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills zero-valued fields with their defaults.
func (c *Config) applyDefaults() {
	if c.Server.HTTPAddr == "" && !c.Tailscale.Enabled {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Server.ReadHeaderTimeout == 0 {
		c.Server.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}
	if c.Database.Path == "" {
		c.Database.Path = DefaultDatabasePath
	}
	if c.Market.BaseURL == "" {
		c.Market.BaseURL = market.DefaultBaseURL
	}
	if len(c.Market.Symbols) == 0 {
		c.Market.Symbols = append([]string(nil), market.DefaultSymbols...)
	}
	if c.Market.Timeout == 0 {
		c.Market.Timeout = market.DefaultTimeout
	}
	if c.Market.CacheTTL == 0 {
		c.Market.CacheTTL = market.DefaultCacheTTL
	}
	if c.RateLimit.RequestsPerMinute == 0 {
		c.RateLimit.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = DefaultBurst
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
// Symbols are normalized to upper case in place.
func (c *Config) Validate() error {
	// The HTTP address is required unless Tailscale provides the listener
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if len(c.Auth.JWTSecret) < auth.MinSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes", auth.MinSecretLength)
	}

	if u, err := url.Parse(c.Market.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("market.base_url %q is not an absolute URL", c.Market.BaseURL)
	}
	for i, s := range c.Market.Symbols {
		sym, err := market.NormalizeSymbol(s)
		if err != nil {
			return fmt.Errorf("market.symbols[%d]: %w", i, err)
		}
		c.Market.Symbols[i] = sym
	}
	if c.Market.Timeout < 0 || c.Market.CacheTTL < 0 {
		return fmt.Errorf("market.timeout and market.cache_ttl must not be negative")
	}

	if c.RateLimit.RequestsPerMinute < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit values must not be negative")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q must be text or json", c.Logging.Format)
	}

	if c.Metrics.Enabled {
		if err := validateMetricsPath(c.Metrics.Path); err != nil {
			return err
		}
	}

	return nil
}

// reservedRoutePrefixes are subtrees the server already routes outside the
// gate. The metrics endpoint may not shadow them.
var reservedRoutePrefixes = []string{"/health", "/auth", "/api", "/static"}

// validateMetricsPath requires a clean absolute path that the admission gate
// leaves ungated and that no built-in route already serves.
func validateMetricsPath(p string) error {
	if !strings.HasPrefix(p, "/") {
		return fmt.Errorf("metrics.path %q must start with /", p)
	}
	if path.Clean(p) != p {
		return fmt.Errorf("metrics.path %q must be a clean path", p)
	}
	if class := auth.ClassifyPath(p); class != auth.PathUngated {
		return fmt.Errorf("metrics.path %q falls under a %s route", p, class)
	}
	for _, prefix := range reservedRoutePrefixes {
		if p == prefix || strings.HasPrefix(p, prefix+"/") {
			return fmt.Errorf("metrics.path %q collides with the %s routes", p, prefix)
		}
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"server.read_header_timeout", cfg.Server.ReadHeaderTimeoutRaw, &cfg.Server.ReadHeaderTimeout},
		{"market.timeout", cfg.Market.TimeoutRaw, &cfg.Market.Timeout},
		{"market.cache_ttl", cfg.Market.CacheTTLRaw, &cfg.Market.CacheTTL},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}

// DefaultPath returns the config file to load when none is given on the
// command line: $STOCKDECK_CONFIG, then ./config.yaml, then ./config.toml,
// then ~/.config/stockdeck/config.yaml. The last candidate is returned even
// if it does not exist so the caller can report it.
func DefaultPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}

	candidates := []string{"config.yaml", "config.toml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "stockdeck", "config.yaml"))
	}

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return candidates[len(candidates)-1]
}
