// Package config loads dmfeed settings from defaults, YAML, dotenv files and
// DMFEED_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Backend modes.
const (
	BackendLocal = "local" // SQLite database opened in-process
	BackendHTTP  = "http"  // remote `dmfeed serve`
)

// Config is the full settings tree. The mapstructure tags double as the
// dotted keys used in YAML and, upper-cased, in environment variables.
type Config struct {
	Global   GlobalConfig   `yaml:"global" mapstructure:"global"`
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	Logging  LoggingConfig  `yaml:"logging" mapstructure:"logging"`
	Session  SessionConfig  `yaml:"session" mapstructure:"session"`
	Backend  BackendConfig  `yaml:"backend" mapstructure:"backend"`
	Feed     FeedConfig     `yaml:"feed" mapstructure:"feed"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	TUI      TUIConfig      `yaml:"tui" mapstructure:"tui"`
}

type GlobalConfig struct {
	DataDir   string `yaml:"data_dir" mapstructure:"data_dir"`
	ConfigDir string `yaml:"config_dir" mapstructure:"config_dir"`
}

type DatabaseConfig struct {
	// Path defaults to <data_dir>/dmfeed.db when empty.
	Path           string `yaml:"path" mapstructure:"path"`
	MaxConnections int    `yaml:"max_connections" mapstructure:"max_connections"`
	BusyTimeoutMs  int    `yaml:"busy_timeout_ms" mapstructure:"busy_timeout_ms"`
}

type LoggingConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	// Format is console or json. Empty picks console when stderr is a
	// terminal and json otherwise.
	Format       string `yaml:"format" mapstructure:"format"`
	File         string `yaml:"file" mapstructure:"file"`
	EnableCaller bool   `yaml:"enable_caller" mapstructure:"enable_caller"`
}

// SessionConfig names the viewer by id or username.
type SessionConfig struct {
	User string `yaml:"user" mapstructure:"user"`
}

type BackendConfig struct {
	Mode    string        `yaml:"mode" mapstructure:"mode"`
	URL     string        `yaml:"url" mapstructure:"url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

type FeedConfig struct {
	PageSize int `yaml:"page_size" mapstructure:"page_size"`
	// PrefetchInterval is how often the chat view samples whether the
	// history sentinel is on screen.
	PrefetchInterval time.Duration `yaml:"prefetch_interval" mapstructure:"prefetch_interval"`
}

type ServerConfig struct {
	Addr           string        `yaml:"addr" mapstructure:"addr"`
	AllowedOrigins []string      `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	ReadTimeout    time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

type TUIConfig struct {
	Theme          string `yaml:"theme" mapstructure:"theme"`
	ShowTimestamps bool   `yaml:"show_timestamps" mapstructure:"show_timestamps"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Global: GlobalConfig{
			DataDir:   filepath.Join(home, ".local", "share", "dmfeed"),
			ConfigDir: filepath.Join(home, ".config", "dmfeed"),
		},
		Database: DatabaseConfig{MaxConnections: 4, BusyTimeoutMs: 5000},
		Logging:  LoggingConfig{Level: "info"},
		Backend: BackendConfig{
			Mode:    BackendLocal,
			URL:     "http://127.0.0.1:8080",
			Timeout: 10 * time.Second,
		},
		Feed: FeedConfig{PageSize: 20, PrefetchInterval: 250 * time.Millisecond},
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
		},
		TUI: TUIConfig{Theme: "default", ShowTimestamps: true},
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if c.Database.MaxConnections < 1 {
		bad("database.max_connections must be at least 1")
	}
	if n := c.Feed.PageSize; n < 1 || n > 100 {
		bad("feed.page_size must be between 1 and 100, got %d", n)
	}
	if c.Feed.PrefetchInterval < 10*time.Millisecond {
		bad("feed.prefetch_interval must be at least 10ms")
	}
	switch strings.ToLower(c.Backend.Mode) {
	case BackendLocal:
	case BackendHTTP:
		if u, err := url.Parse(c.Backend.URL); err != nil || u.Scheme == "" || u.Host == "" {
			bad("backend.url must be an absolute URL in http mode")
		}
		if c.Backend.Timeout <= 0 {
			bad("backend.timeout must be positive")
		}
	default:
		bad("backend.mode must be %s or %s, got %q", BackendLocal, BackendHTTP, c.Backend.Mode)
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		bad("server.addr is required")
	}
	if f := c.Logging.Format; f != "" && f != "console" && f != "json" {
		bad("logging.format must be console or json, got %q", f)
	}
	return errors.Join(errs...)
}

// EnsureDirectories creates the data and config directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Global.DataDir, c.Global.ConfigDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath resolves the SQLite file location.
func (c *Config) DatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(c.Global.DataDir, "dmfeed.db")
}
