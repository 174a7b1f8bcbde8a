package commands

import (
	"fmt"
	"path/filepath"

	"cms-downloader/internal/syncer"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	syncRefresh *bool
	syncDryRun  *bool
)

func init() {
	syncRefresh = syncCmd.Flags().Bool("refresh", false, "Scrape the course list even if the cached one is fresh.")
	syncDryRun = syncCmd.Flags().Bool("dry-run", false, "List the files that would be downloaded without downloading them.")
	rootCmd.AddCommand(syncCmd)
}

var syncCmd = &cobra.Command{
	Use:   "sync [--refresh] [--dry-run]",
	Short: "Downloads every new file of the configured courses.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := setup(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		summary, err := syncer.New(a.deps, syncer.Options{
			Refresh: *syncRefresh,
			DryRun:  *syncDryRun,
		}).Run(ctx)
		if err != nil {
			return err
		}

		if *syncDryRun {
			printPending(a, summary)
			return nil
		}
		printSummary(summary)
		if summary.Failed > 0 {
			return fmt.Errorf("%d file(s) failed to download", summary.Failed)
		}
		return nil
	},
}

func printPending(a *app, summary syncer.Summary) {
	t := newTable()
	t.AppendHeader(table.Row{"Week", "File", "Path"})
	for _, job := range summary.Pending {
		rel, err := filepath.Rel(a.config.DownloadsDir, job.Path)
		if err != nil {
			rel = job.Path
		}
		t.AppendRow(table.Row{job.File.Week, job.File.Name + "." + job.File.Extension, rel})
	}
	t.AppendFooter(table.Row{"", "Pending", len(summary.Pending)})
	t.Render()
}

func printSummary(summary syncer.Summary) {
	t := newTable()
	t.AppendHeader(table.Row{"Course", "Downloaded", "Size", "Failed"})
	for _, c := range summary.Courses {
		if len(c.Downloaded) == 0 && len(c.Failed) == 0 {
			continue
		}
		var size int64
		for _, r := range c.Downloaded {
			size += r.Size
		}
		t.AppendRow(table.Row{
			c.Course.DisplayName(),
			len(c.Downloaded),
			humanize.Bytes(uint64(size)),
			len(c.Failed),
		})
	}
	t.AppendFooter(table.Row{
		fmt.Sprintf("Skipped %d", summary.Skipped),
		summary.Downloaded,
		"",
		summary.Failed,
	})
	t.Render()

	if summary.Failed == 0 {
		return
	}
	failures := newTable()
	failures.AppendHeader(table.Row{"File", "Error"})
	for _, c := range summary.Courses {
		for _, r := range c.Failed {
			failures.AppendRow(table.Row{r.Job.Path, r.Err.Error()})
		}
	}
	failures.Render()
}
