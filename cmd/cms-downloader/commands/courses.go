package commands

import (
	"cms-downloader/internal/syncer"
	"cms-downloader/lib/textutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var coursesRefresh *bool

func init() {
	coursesRefresh = coursesCmd.Flags().Bool("refresh", false, "Scrape the course list even if the cached one is fresh.")
	rootCmd.AddCommand(coursesCmd)
}

// selected reports whether the `courses` filters pick the course, every
// course is picked when there are none.
func selected(filters []string, code, name string) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if textutil.MatchCourse(code, name, f) {
			return true
		}
	}
	return false
}

var coursesCmd = &cobra.Command{
	Use:   "courses [--refresh]",
	Short: "Lists the courses of your account.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := setup(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		courses, err := syncer.New(a.deps, syncer.Options{
			Refresh: *coursesRefresh,
		}).Courses(ctx)
		if err != nil {
			return err
		}

		t := newTable()
		t.AppendHeader(table.Row{"Id", "Code", "Name", "Synced"})
		for _, c := range courses {
			synced := ""
			if selected(a.config.Courses, c.Code, c.Name) {
				synced = "yes"
			}
			t.AppendRow(table.Row{c.Id, c.Code, c.Name, synced})
		}
		t.Render()
		return nil
	},
}
