// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the root logger. Packages derive their own with Component.
var Logger zerolog.Logger

// Config selects level, encoding and destination.
type Config struct {
	Level        string    // trace, debug, info, warn, error; unknown values mean info
	Format       string    // "console" for human output, anything else for json
	Output       io.Writer // nil means stderr
	EnableCaller bool
}

// DefaultConfig logs info and above to stderr in console form.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "console", Output: os.Stderr}
}

// Init replaces Logger and the global level. Loggers created earlier with
// Component keep their old writer.
func Init(cfg Config) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(levelOf(cfg.Level))

	var w io.Writer = os.Stderr
	if cfg.Output != nil {
		w = cfg.Output
	}
	if strings.EqualFold(cfg.Format, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	build := zerolog.New(w).With().Timestamp()
	if cfg.EnableCaller {
		build = build.Caller()
	}
	Logger = build.Logger()
}

func levelOf(name string) zerolog.Level {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "warning":
		return zerolog.WarnLevel
	case "off":
		return zerolog.Disabled
	}
	level, err := zerolog.ParseLevel(name)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// Component returns a child of Logger tagged with the subsystem name.
func Component(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}

// WithConversation tags logger with a conversation key.
func WithConversation(logger zerolog.Logger, conversation string) zerolog.Logger {
	return logger.With().Str("conversation", conversation).Logger()
}

// WithUser tags logger with the acting user.
func WithUser(logger zerolog.Logger, userID string) zerolog.Logger {
	return logger.With().Str("user_id", userID).Logger()
}

func init() {
	Init(DefaultConfig())
}
