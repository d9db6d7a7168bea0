package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoader_DefaultsValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, BackendLocal, cfg.Backend.Mode)
	require.Equal(t, 20, cfg.Feed.PageSize)
	require.True(t, strings.HasSuffix(cfg.DatabasePath(), "dmfeed.db"))
}

func TestLoader_FileThenEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
session:
  user: alice
backend:
  mode: http
  url: http://feed.local:9000
  timeout: 3s
feed:
  page_size: 5
server:
  allowed_origins:
    - http://a.example
`)
	t.Setenv("DMFEED_FEED_PAGE_SIZE", "7")

	loader := NewLoader()
	loader.SetConfigFile(path)
	loader.SetEnvFiles(writeFile(t, dir, "test.env", ""))
	cfg, err := loader.Load()
	require.NoError(t, err)

	require.Equal(t, "alice", cfg.Session.User)
	require.Equal(t, BackendHTTP, cfg.Backend.Mode)
	require.Equal(t, "http://feed.local:9000", cfg.Backend.URL)
	require.Equal(t, 3*time.Second, cfg.Backend.Timeout)
	require.Equal(t, 7, cfg.Feed.PageSize)
	require.Equal(t, []string{"http://a.example"}, cfg.Server.AllowedOrigins)
	require.Equal(t, path, loader.ConfigFileUsed())
}

func TestLoader_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := writeFile(t, dir, "feed.env", "DMFEED_SESSION_USER=bob\nDMFEED_SERVER_ALLOWED_ORIGINS=http://a.example, http://b.example\n")
	t.Cleanup(func() {
		os.Unsetenv("DMFEED_SESSION_USER")
		os.Unsetenv("DMFEED_SERVER_ALLOWED_ORIGINS")
	})

	loader := NewLoader()
	loader.SetConfigFile(writeFile(t, dir, "config.yaml", "logging:\n  level: debug\n"))
	loader.SetEnvFiles(envFile)
	cfg, err := loader.Load()
	require.NoError(t, err)

	require.Equal(t, "bob", cfg.Session.User)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.Server.AllowedOrigins)
}

func TestLoader_MissingExplicitEnvFile(t *testing.T) {
	loader := NewLoader()
	loader.SetEnvFiles(filepath.Join(t.TempDir(), "missing.env"))
	_, err := loader.Load()
	require.Error(t, err)
}

func TestConfig_ValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"page size zero", func(c *Config) { c.Feed.PageSize = 0 }},
		{"unknown backend", func(c *Config) { c.Backend.Mode = "grpc" }},
		{"relative url", func(c *Config) { c.Backend.Mode = BackendHTTP; c.Backend.URL = "/api" }},
		{"empty addr", func(c *Config) { c.Server.Addr = " " }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"fast prefetch", func(c *Config) { c.Feed.PrefetchInterval = time.Millisecond }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestFlattenCoversEveryLeaf(t *testing.T) {
	keys := map[string]any{}
	for _, s := range flatten(DefaultConfig()) {
		keys[s.key] = s.value
	}
	require.Equal(t, 20, keys["feed.page_size"])
	require.Equal(t, BackendLocal, keys["backend.mode"])
	require.Equal(t, true, keys["tui.show_timestamps"])
	require.Contains(t, keys, "server.allowed_origins")
	require.NotContains(t, keys, "feed", "structs are walked, not registered")
}

func TestLoader_ExpandsHomeAndLowercasesMode(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("DMFEED_DATABASE_PATH", "~/feeds/dm.db")
	t.Setenv("DMFEED_BACKEND_MODE", " LOCAL ")

	loader := NewLoader()
	loader.SetEnvFiles(writeFile(t, t.TempDir(), "empty.env", ""))
	cfg, err := loader.Load()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, "feeds", "dm.db"), cfg.DatabasePath())
	require.Equal(t, BackendLocal, cfg.Backend.Mode)
}

func TestLoader_MissingExplicitConfigFile(t *testing.T) {
	loader := NewLoader()
	loader.SetConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
	loader.SetEnvFiles(writeFile(t, t.TempDir(), "empty.env", ""))
	_, err := loader.Load()
	require.Error(t, err)
}
