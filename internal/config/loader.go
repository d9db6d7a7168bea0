package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. DMFEED_BACKEND_MODE.
const EnvPrefix = "DMFEED"

// Loader resolves a Config from, lowest first: defaults, the YAML config
// file, dotenv files, DMFEED_* variables and values passed to Set.
type Loader struct {
	v          *viper.Viper
	configFile string
	envFiles   []string
}

// NewLoader returns a loader with its own viper instance.
func NewLoader() *Loader {
	return &Loader{v: viper.New()}
}

// SetConfigFile pins the config file. A pinned file must exist.
func (l *Loader) SetConfigFile(path string) { l.configFile = path }

// SetEnvFiles replaces the default ./.env with explicit dotenv files, all
// of which must exist.
func (l *Loader) SetEnvFiles(paths ...string) { l.envFiles = paths }

// Set overrides a key above every other source.
func (l *Loader) Set(key string, value any) { l.v.Set(key, value) }

// ConfigFileUsed returns the config file that was read, if any.
func (l *Loader) ConfigFileUsed() string { return l.v.ConfigFileUsed() }

// Load builds and validates the configuration.
func (l *Loader) Load() (*Config, error) {
	if err := l.readEnvFiles(); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, s := range flatten(cfg) {
		l.v.SetDefault(s.key, s.value)
		_ = l.v.BindEnv(s.key)
	}

	if err := l.readConfigFile(); err != nil {
		return nil, err
	}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (l *Loader) readEnvFiles() error {
	files, required := l.envFiles, true
	if len(files) == 0 {
		files, required = []string{".env"}, false
	}
	for _, path := range files {
		err := godotenv.Load(path)
		switch {
		case err == nil:
		case !required && errors.Is(err, os.ErrNotExist):
		default:
			return fmt.Errorf("failed to load env file %s: %w", path, err)
		}
	}
	return nil
}

func (l *Loader) readConfigFile() error {
	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName("config")
		l.v.SetConfigType("yaml")
		for _, dir := range searchDirs() {
			l.v.AddConfigPath(dir)
		}
	}

	err := l.v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !(l.configFile == "" && errors.As(err, &notFound)) {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

func searchDirs() []string {
	var dirs []string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		dirs = append(dirs, filepath.Join(xdg, "dmfeed"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".config", "dmfeed"))
	}
	return append(dirs, ".")
}

type setting struct {
	key   string
	value any
}

// flatten lists every leaf of cfg under its dotted mapstructure key, e.g.
// feed.page_size. Registering each key is what lets viper see env values
// for keys absent from the config file.
func flatten(cfg *Config) []setting {
	var out []setting
	var walk func(prefix string, v reflect.Value)
	walk = func(prefix string, v reflect.Value) {
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			key := t.Field(i).Tag.Get("mapstructure")
			if key == "" {
				continue
			}
			if prefix != "" {
				key = prefix + "." + key
			}
			if f := v.Field(i); f.Kind() == reflect.Struct {
				walk(key, f)
			} else {
				out = append(out, setting{key: key, value: f.Interface()})
			}
		}
	}
	walk("", reflect.ValueOf(cfg).Elem())
	return out
}

// normalize expands ~ in paths and cleans values that arrive as raw
// strings from the environment.
func (c *Config) normalize() {
	for _, p := range []*string{&c.Global.DataDir, &c.Global.ConfigDir, &c.Database.Path, &c.Logging.File} {
		*p = expandHome(*p)
	}
	c.Backend.Mode = strings.ToLower(strings.TrimSpace(c.Backend.Mode))
	c.Server.AllowedOrigins = splitList(c.Server.AllowedOrigins)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
}

// splitList flattens comma separated entries.
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
