package commands

import (
	"fmt"

	"cms-downloader/internal/config"
	"cms-downloader/internal/credentials"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(logoutCmd)
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Removes the stored credentials.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(*configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		err = credentials.Store{Path: cfg.CredentialsFile}.Remove()
		if err != nil {
			return err
		}
		fmt.Println("Logged out.")
		return nil
	},
}
