package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rickgao/effectwatch/internal/config"
)

var (
	configPath string
	logLevel   string
	logFile    string
	serverURL  string
)

var rootCmd = &cobra.Command{
	Use:   "effectwatch",
	Short: "Live view of scheduled effects",
	Long: `effectwatch subscribes to the effect/schedule, effect/progress and
effect/remove topics of a STOMP-over-WebSocket server and keeps a local
mirror of every running effect.

The connection is re-established automatically after failures. At most
four effects are shown at a time, in the order they were scheduled.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (defaults apply when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to this file")
	rootCmd.PersistentFlags().StringVar(&serverURL, "url", "", "WebSocket URL of the STOMP server (overrides server.url)")

	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(tailCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads the config file and applies command line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return nil, err
	}
	if serverURL != "" {
		cfg.Server.URL = serverURL
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("validate --url: %w", err)
		}
	}
	return cfg, nil
}

// logOutput opens --log-file, or returns fallback when it is not set.
func logOutput(fallback io.Writer) (io.Writer, func(), error) {
	if logFile == "" {
		return fallback, func() {}, nil
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return f, func() { f.Close() }, nil
}
