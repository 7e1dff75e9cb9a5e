package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/rickgao/effectwatch/internal/effect"
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Log every change of the running effects",
	Long: `Connects to the server without a terminal UI and logs the visible
effects after every change. Useful under a process supervisor or when
only the history database and health endpoint are wanted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		out, closeLog, err := logOutput(os.Stderr)
		if err != nil {
			return err
		}
		defer closeLog()

		logger, err := newLogger(logLevel, out)
		if err != nil {
			return err
		}

		return run(cfg, logger, tailEffects)
	},
}

// tailEffects logs each new snapshot until ctx is done or the store stops.
func tailEffects(ctx context.Context, a *app) error {
	snapshots, unsubscribe := a.store.Subscribe()
	defer unsubscribe()

	return followSnapshots(ctx, snapshots, a.logger)
}

func followSnapshots(ctx context.Context, snapshots <-chan *effect.Snapshot, logger *slog.Logger) error {
	var last uint64
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-snapshots:
			if !ok {
				return nil
			}
			if snap.Version() == last && last != 0 {
				continue
			}
			last = snap.Version()
			logSnapshot(logger, snap)
		}
	}
}

func logSnapshot(logger *slog.Logger, snap *effect.Snapshot) {
	logger.Info("effects changed",
		"version", snap.Version(),
		"tracked", snap.Len(),
		"hidden", snap.Hidden(),
	)
	for i, rec := range snap.RenderList() {
		logger.Info("effect",
			"slot", i+1,
			"id", rec.ID,
			"title", rec.Title,
			"state", string(rec.State),
			"progress", fmt.Sprintf("%.0f%%", rec.Progress*100),
		)
	}
}
