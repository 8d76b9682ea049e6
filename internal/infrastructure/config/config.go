package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the console server.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Web     WebConfig     `yaml:"web"`
	Backend BackendConfig `yaml:"backend"`
	OAuth   OAuthConfig   `yaml:"oauth"`
	Audit   AuditConfig   `yaml:"audit"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig contains HTTP listener settings.
type ServerConfig struct {
	Host     string              `yaml:"host"`
	Port     int                 `yaml:"port"`
	TLS      TLSConfig           `yaml:"tls"`
	Timeouts ServerTimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig          `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// ServerTimeoutConfig contains HTTP timeout settings in seconds.
type ServerTimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebConfig points at the compiled single-page application bundle.
type WebConfig struct {
	// Dir is the bundler output directory (e.g. "ui/dist").
	// When empty or missing the embedded console shell is served.
	Dir string `yaml:"dir"`

	// Watch optionally runs the bundler in watch mode next to the server.
	Watch WatchConfig `yaml:"watch"`
}

// WatchConfig describes a development bundler command supervised by the
// console. An empty Command disables it.
type WatchConfig struct {
	Command      []string `yaml:"command"`
	WorkDir      string   `yaml:"work_dir"`
	Env          []string `yaml:"env"`
	RestartDelay int      `yaml:"restart_delay"`
	MaxRestarts  int      `yaml:"max_restarts"`
}

// Enabled reports whether a watch command is configured.
func (w WatchConfig) Enabled() bool {
	return len(w.Command) > 0
}

// BackendConfig describes the device-management API behind /api/*.
type BackendConfig struct {
	URL     string            `yaml:"url"`
	Timeout int               `yaml:"timeout"`
	Headers map[string]string `yaml:"headers"`
}

// OAuthConfig describes the external identity provider used by the login endpoint.
type OAuthConfig struct {
	ProviderURL  string            `yaml:"provider_url"`
	Timeout      int               `yaml:"timeout"`
	Headers      map[string]string `yaml:"headers"`
	MaxBodyBytes int64             `yaml:"max_body_bytes"`
}

// AuditConfig controls the local audit trail of logins and device deletes.
type AuditConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Database DatabaseConfig `yaml:"database"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: CONSOLE_SECTION_KEY
// For example: CONSOLE_BACKEND_URL, CONSOLE_SERVER_PORT
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 3000,
			Timeouts: ServerTimeoutConfig{
				Read:  30,
				Write: 60,
				Idle:  120,
			},
		},
		Web: WebConfig{
			Dir: "ui/dist",
			Watch: WatchConfig{
				RestartDelay: 1,
				MaxRestarts:  10,
			},
		},
		Backend: BackendConfig{
			URL:     "http://localhost:8081/v1",
			Timeout: 30,
		},
		OAuth: OAuthConfig{
			ProviderURL:  "http://localhost:8081/v1/authentication/user",
			Timeout:      15,
			MaxBodyBytes: 64 << 10,
		},
		Audit: AuditConfig{
			Enabled: false,
			Database: DatabaseConfig{
				Path:        "./data/console-audit.db",
				WALMode:     true,
				BusyTimeout: 5,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: CONSOLE_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	// Server
	if v := os.Getenv("CONSOLE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("CONSOLE_SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CONSOLE_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}

	// Web
	if v := os.Getenv("CONSOLE_WEB_DIR"); v != "" {
		cfg.Web.Dir = v
	}
	if v := os.Getenv("CONSOLE_WEB_WATCH_COMMAND"); v != "" {
		cfg.Web.Watch.Command = strings.Fields(v)
	}

	// Backend
	if v := os.Getenv("CONSOLE_BACKEND_URL"); v != "" {
		cfg.Backend.URL = v
	}

	// OAuth
	if v := os.Getenv("CONSOLE_OAUTH_PROVIDER_URL"); v != "" {
		cfg.OAuth.ProviderURL = v
	}

	// Audit
	if v := os.Getenv("CONSOLE_AUDIT_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("CONSOLE_AUDIT_ENABLED: %w", err)
		}
		cfg.Audit.Enabled = enabled
	}
	if v := os.Getenv("CONSOLE_AUDIT_DATABASE_PATH"); v != "" {
		cfg.Audit.Database.Path = v
	}

	// Logging
	if v := os.Getenv("CONSOLE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.Server.TLS.Enabled && (c.Server.TLS.CertFile == "" || c.Server.TLS.KeyFile == "") {
		errs = append(errs, "server.tls requires cert_file and key_file when enabled")
	}

	if c.Web.Watch.Enabled() && strings.TrimSpace(c.Web.Watch.Command[0]) == "" {
		errs = append(errs, "web.watch.command must start with an executable")
	}
	if c.Web.Watch.RestartDelay < 0 || c.Web.Watch.MaxRestarts < 0 {
		errs = append(errs, "web.watch.restart_delay and max_restarts must not be negative")
	}

	if err := validateURL(c.Backend.URL); err != nil {
		errs = append(errs, "backend.url "+err.Error())
	}
	if err := validateURL(c.OAuth.ProviderURL); err != nil {
		errs = append(errs, "oauth.provider_url "+err.Error())
	}
	if c.OAuth.MaxBodyBytes < 0 {
		errs = append(errs, "oauth.max_body_bytes must not be negative")
	}

	if c.Audit.Enabled && c.Audit.Database.Path == "" {
		errs = append(errs, "audit.database.path is required when audit is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validateURL requires an absolute http(s) URL.
func validateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must use http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("must include a host")
	}
	return nil
}

// Address returns the host:port the server listens on.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetReadTimeout returns the server read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.Server.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the server write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.Server.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the server idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.Server.Timeouts.Idle) * time.Second
}

// WatchRestartDelay returns the first bundler restart backoff step as a Duration.
func (c *Config) WatchRestartDelay() time.Duration {
	return time.Duration(c.Web.Watch.RestartDelay) * time.Second
}

// BackendTimeout returns the upstream API timeout as a Duration.
func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.Backend.Timeout) * time.Second
}

// OAuthTimeout returns the identity provider timeout as a Duration.
func (c *Config) OAuthTimeout() time.Duration {
	return time.Duration(c.OAuth.Timeout) * time.Second
}
