package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marcus/vsync/internal/config"
	"github.com/marcus/vsync/internal/engine"
	"github.com/marcus/vsync/internal/index"
	"github.com/marcus/vsync/internal/output"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Sync on a timer until interrupted",
	Long: `Watch runs reconciliation on the configured interval. With sync_on_start
enabled one run happens immediately. When the index scanner is active the
vault is watched for changes so scans stay cheap between runs.`,
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			output.Error("%v", err)
			return err
		}
		defer a.close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if a.indexDB != nil {
			watcher, err := index.NewWatcher(a.indexDB, a.vault, slog.Default())
			if err != nil {
				output.Error("%v", err)
				return err
			}
			defer watcher.Close()
			go func() {
				if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					slog.Warn("vault watcher stopped", "err", err)
				}
			}()
		}

		interval := a.cfg.Sync.Interval.Std()
		if interval < config.MinSyncInterval {
			interval = config.MinSyncInterval
		}
		output.Info("Syncing every %s, press Ctrl-C to stop", interval)

		if a.cfg.Sync.SyncOnStart {
			runOnce(ctx, a.processor)
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				output.Info("Stopped")
				return nil
			case <-ticker.C:
				runOnce(ctx, a.processor)
			}
		}
	},
}

// runOnce performs one sync and reports the outcome without aborting the
// watch loop. A trigger overlapping a running sync is skipped quietly.
func runOnce(ctx context.Context, p *engine.Processor) {
	_, err := p.Exec(ctx)
	switch {
	case err == nil:
		output.Success("Sync finished at %s", time.Now().Format(time.TimeOnly))
	case errors.Is(err, engine.ErrSyncInProgress):
		slog.Debug("sync trigger skipped, previous run still going")
	case errors.Is(err, context.Canceled):
	default:
		output.Error("sync failed: %v", err)
	}
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
