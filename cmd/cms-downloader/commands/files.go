package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"cms-downloader/internal/index"
	"cms-downloader/internal/syncer"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	filesCourse  *string
	filesPending *bool
)

func init() {
	filesCourse = filesCmd.Flags().String("course", "", "Only list the files of the course with this code or name.")
	filesPending = filesCmd.Flags().Bool("pending", false, "List the files the next sync would download instead.")
	rootCmd.AddCommand(filesCmd)
}

var filesCmd = &cobra.Command{
	Use:   "files [--course <code>] [--pending]",
	Short: "Lists downloaded files, or the ones not downloaded yet.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := setup(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		var filters []string
		if *filesCourse != "" {
			filters = []string{*filesCourse}
		}

		if *filesPending {
			plan, err := syncer.New(a.deps, syncer.Options{}).Plan(ctx)
			if err != nil {
				return err
			}

			t := newTable()
			t.AppendHeader(table.Row{"Course", "Week", "Path"})
			count := 0
			for _, c := range plan.Courses {
				if !selected(filters, c.Code, c.Name) {
					continue
				}
				for _, job := range plan.Jobs {
					if job.CourseId != c.Id {
						continue
					}
					t.AppendRow(table.Row{c.Code, job.File.Week, relativePath(a, job.Path)})
					count++
				}
			}
			t.AppendFooter(table.Row{"", "Pending", count})
			t.Render()
			return nil
		}

		records, err := downloadedFiles(ctx, a, filters)
		if err != nil {
			return err
		}
		t := newTable()
		t.AppendHeader(table.Row{"Path", "Size", "Downloaded", "Sha256"})
		for _, r := range records {
			t.AppendRow(table.Row{
				relativePath(a, r.Path),
				humanize.Bytes(uint64(r.Size)),
				r.DownloadedAt.Format(time.DateTime),
				r.Sha256[:min(12, len(r.Sha256))],
			})
		}
		t.AppendFooter(table.Row{"Total", len(records)})
		t.Render()
		return nil
	},
}

// downloadedFiles reads the index, the course filter is matched against the
// cached course list.
func downloadedFiles(ctx context.Context, a *app, filters []string) ([]index.FileRecord, error) {
	if len(filters) == 0 {
		return a.index.Files(ctx, "")
	}

	courses, _, err := a.index.CachedCourses(ctx, 0)
	if err != nil {
		return nil, err
	}
	var records []index.FileRecord
	found := false
	for _, c := range courses {
		if !selected(filters, c.Code, c.Name) {
			continue
		}
		found = true
		files, err := a.index.Files(ctx, c.Id)
		if err != nil {
			return nil, err
		}
		records = append(records, files...)
	}
	if !found {
		return nil, fmt.Errorf("no known course matches '%s'", filters[0])
	}
	return records, nil
}

func relativePath(a *app, path string) string {
	rel, err := filepath.Rel(a.config.DownloadsDir, path)
	if err != nil {
		return path
	}
	return rel
}
