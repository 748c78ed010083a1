package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/surge-downloader/plugd/internal/config"
	"github.com/surge-downloader/plugd/internal/history"
	"github.com/surge-downloader/plugd/internal/utils"
)

// Version information - set via ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "plugd",
	Short:   "Download through pluggable transfer backends",
	Long:    `plugd routes each URL to the backend that claims it (HTTP or BitTorrent) and drives the transfer to completion.`,
	Version: Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetVersionTemplate("plugd version {{.Version}} (built " + BuildTime + ")\n")
}

// initializeGlobalState prepares directories, logging and the history
// store, and returns the user settings.
func initializeGlobalState() *config.Settings {
	if err := config.EnsureDirs(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	logsDir := config.GetLogsDir()
	utils.ConfigureDebug(logsDir)

	settings, err := config.LoadSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not load settings, using defaults: %v\n", err)
		settings = config.DefaultSettings()
	}

	if err := utils.CleanupLogs(logsDir, settings.General.LogRetentionCount); err != nil {
		utils.Debug("Error cleaning logs: %v", err)
	}

	history.Configure(config.GetHistoryPath())
	return settings
}
