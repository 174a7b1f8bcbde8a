package commands

import (
	"context"
	"fmt"
	"log/slog"

	"cms-downloader/internal/components/chrono"
	"cms-downloader/internal/components/telemetry"
	"cms-downloader/internal/syncer"

	"github.com/spf13/cobra"
)

const report_watch_sync = "watch.sync"

var watchNow *bool

func init() {
	watchNow = watchCmd.Flags().Bool("now", false, "Sync once right away instead of waiting for the first scheduled run.")
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch [--now]",
	Short: "Syncs on the schedule given by watch.schedule until interrupted.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := setup(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		// nothing is watching the terminal
		a.deps.Progress = nil
		telemetry.InstrumentPerfStats(ctx, a.tel)

		sync := func() {
			syncOnce(ctx, a)
		}
		if *watchNow {
			sync()
		}

		cron := chrono.NewStandardCron(a.clock, a.tel)
		defer cron.Stop()
		err = cron.Cron(a.config.Watch.Schedule, sync)
		if err != nil {
			return fmt.Errorf("watch.schedule '%s': %w", a.config.Watch.Schedule, err)
		}
		slog.Info("watching for new files", "schedule", a.config.Watch.Schedule)

		<-ctx.Done()
		slog.Info("stopping")
		return nil
	},
}

func syncOnce(ctx context.Context, a *app) {
	if ctx.Err() != nil {
		return
	}
	summary, err := syncer.New(a.deps, syncer.Options{}).Run(ctx)
	if err != nil {
		a.tel.ReportBroken(report_watch_sync, err)
		return
	}
	slog.Info(
		"sync finished",
		"run", summary.RunId,
		"downloaded", summary.Downloaded,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)
}
