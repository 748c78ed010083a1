package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/surge-downloader/plugd/internal/config"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show the effective settings",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		settings := initializeGlobalState()
		if err := printSettings(cmd.OutOrStdout(), settings); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

var categoryStyle = lipgloss.NewStyle().Bold(true).Underline(true)

func printSettings(w io.Writer, s *config.Settings) error {
	values, err := s.Values()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "File: %s\n", config.GetSettingsPath())
	meta := config.GetSettingsMetadata()
	for _, cat := range config.CategoryOrder() {
		fmt.Fprintf(w, "\n%s\n", categoryStyle.Render(cat))
		t := newTable("SETTING", "KEY", "VALUE")
		for _, m := range meta[cat] {
			t.Row(m.Label, m.Key, formatSetting(m, values[m.Key]))
		}
		fmt.Fprintln(w, t.Render())
	}
	return nil
}

func formatSetting(m config.SettingMeta, v any) string {
	switch m.Type {
	case "duration":
		if n, ok := v.(float64); ok {
			return time.Duration(n).String()
		}
	case "string":
		if v == "" {
			return "(default)"
		}
	}
	return fmt.Sprint(v)
}

func init() {
	rootCmd.AddCommand(settingsCmd)
}
