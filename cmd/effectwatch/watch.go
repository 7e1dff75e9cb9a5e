package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/rickgao/effectwatch/internal/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show running effects as live progress bars",
	Long: `Connects to the server and shows the running effects in a terminal UI.

The terminal belongs to the UI, so logs are discarded unless --log-file is
set. Press q to quit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		out, closeLog, err := logOutput(io.Discard)
		if err != nil {
			return err
		}
		defer closeLog()

		logger, err := newLogger(logLevel, out)
		if err != nil {
			return err
		}

		return run(cfg, logger, watchEffects)
	},
}

// watchEffects runs the terminal UI on the store's snapshot stream.
func watchEffects(ctx context.Context, a *app) error {
	snapshots, unsubscribe := a.store.Subscribe()
	defer unsubscribe()

	return tui.Run(ctx, tui.New(snapshots, a.conn))
}
