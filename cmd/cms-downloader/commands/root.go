package commands

import (
	"context"
	"fmt"
	"os"

	"cms-downloader/internal/components/telemetry"

	"github.com/spf13/cobra"
)

var (
	configPath *string
	verbose    *bool
	dumpHttp   *string
)

var rootCmd = &cobra.Command{
	Use:           "cms-downloader",
	Short:         "cms-downloader keeps a local copy of the files posted to your CMS courses.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(*verbose)
	},
}

func init() {
	configPath = rootCmd.PersistentFlags().String("config", "config.yml", "The configuration file to read.")
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug messages.")
	dumpHttp = rootCmd.PersistentFlags().String("dump-http", "", "Write every request and response into this directory.")
}

// ExecuteContext runs the command given on the command line, its error is
// printed to stderr and returned.
func ExecuteContext(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	fmt.Fprintln(os.Stderr, err)
	return err
}
