// Package cli implements the dmfeed command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tOgg1/dmfeed/internal/config"
	"github.com/tOgg1/dmfeed/internal/logging"
)

var (
	cfgFile    string
	envFile    string
	userFlag   string
	jsonOutput bool
	verbose    bool

	appConfig *config.Config
	logFile   *os.File
)

var rootCmd = &cobra.Command{
	Use:   "dmfeed",
	Short: "Direct-message feed",
	Long: `dmfeed pages direct-message history, sends and deletes messages
with optimistic updates, and serves the message store over HTTP.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initConfig,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeLogFile()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/dmfeed/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file read before the environment (default: ./.env when present)")
	rootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", "", "act as this user (id or @username)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute(version string) error {
	rootCmd.Version = version
	return rootCmd.Execute()
}

func initConfig(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader()
	if cfgFile != "" {
		loader.SetConfigFile(cfgFile)
	}
	if envFile != "" {
		loader.SetEnvFiles(envFile)
	}

	cfg, err := loader.Load()
	if err != nil {
		return err
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	appConfig = cfg

	return initLogging(cfg, cmd.Name() == "chat")
}

// initLogging routes logs to the configured file. Interactive commands
// never log to the terminal they draw on.
func initLogging(cfg *config.Config, interactive bool) error {
	logCfg := logging.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		Output:       os.Stderr,
		EnableCaller: cfg.Logging.EnableCaller,
	}
	if logCfg.Format == "" {
		logCfg.Format = "json"
		if term.IsTerminal(int(os.Stderr.Fd())) {
			logCfg.Format = "console"
		}
	}

	path := cfg.Logging.File
	if path == "" && interactive {
		path = filepath.Join(cfg.Global.DataDir, "dmfeed.log")
	}
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		closeLogFile()
		logFile = f
		logCfg.Output = f
		logCfg.Format = "json"
	}

	logging.Init(logCfg)
	return nil
}

func closeLogFile() {
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
}

// GetConfig returns the loaded configuration.
func GetConfig() *config.Config {
	return appConfig
}

// IsJSONOutput reports whether --json was given.
func IsJSONOutput() bool {
	return jsonOutput
}

// WriteOutput writes v as indented JSON.
func WriteOutput(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
