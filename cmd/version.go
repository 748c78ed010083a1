package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/surge-downloader/plugd/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version, optionally checking for a newer release",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "plugd version %s (built %s)\n", Version, BuildTime)

		check, _ := cmd.Flags().GetBool("check")
		if !check {
			return
		}
		info, err := version.CheckForUpdate(cmd.Context(), Version)
		switch {
		case err != nil:
			fmt.Fprintf(os.Stderr, "Error checking for updates: %v\n", err)
			os.Exit(1)
		case info == nil:
			fmt.Fprintln(out, "Development build; update check skipped.")
		case info.UpdateAvailable:
			fmt.Fprintf(out, "A newer release is available: %s\n%s\n", info.LatestVersion, info.ReleaseURL)
		default:
			fmt.Fprintln(out, "You are running the latest release.")
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().Bool("check", false, "Check GitHub for a newer release")
}
