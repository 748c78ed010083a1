package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/surge-downloader/plugd/internal/backend"
	"github.com/surge-downloader/plugd/internal/host"
	"github.com/surge-downloader/plugd/internal/plugin"
	"github.com/surge-downloader/plugd/internal/utils"
)

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "List the registered transfer backends",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		settings := initializeGlobalState()

		reg, err := backend.NewRegistry()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := host.New(reg, settings).Configure(); err != nil {
			fmt.Fprintf(os.Stderr, "Error configuring backends: %v\n", err)
			os.Exit(1)
		}
		printBackends(cmd.OutOrStdout(), reg)
	},
}

func printBackends(w io.Writer, reg *plugin.Registry) {
	t := newTable("NAME", "SCHEMES", "EXTENSIONS", "HOSTS", "DOWN LIMIT", "UP LIMIT")
	for _, info := range reg.Infos() {
		down, up := "--", "--"
		var limit plugin.Speed
		if info.GetGlobal(plugin.OptionSpeedLimit, &limit) == plugin.ResultOK {
			down, up = formatLimit(limit.Download), formatLimit(limit.Upload)
		}
		t.Row(info.Name, list(info.Schemes), list(info.FileExts), list(info.Hosts), down, up)
	}
	fmt.Fprintln(w, t.Render())
}

func formatLimit(bps int) string {
	if bps <= 0 {
		return "unlimited"
	}
	return utils.FormatSpeed(int64(bps))
}

func list(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ",")
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderRow(false).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return s.Bold(true)
			}
			return s
		})
}

func init() {
	rootCmd.AddCommand(backendsCmd)
}
