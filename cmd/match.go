package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/surge-downloader/plugd/internal/backend"
	"github.com/surge-downloader/plugd/internal/plugin"
	"github.com/surge-downloader/plugd/internal/source"
)

var matchCmd = &cobra.Command{
	Use:   "match <url>",
	Short: "Show how each backend scores a URL",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		reg, err := backend.NewRegistry()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if !printMatch(cmd.OutOrStdout(), reg, args[0]) {
			os.Exit(1)
		}
	},
}

// printMatch writes the score table for raw and reports whether any
// backend claims it.
func printMatch(w io.Writer, reg *plugin.Registry, raw string) bool {
	if loc, err := source.Locate(raw); err == nil {
		fmt.Fprintf(w, "scheme=%q host=%q ext=%q\n", loc.Scheme, loc.Host, loc.Ext)
	} else {
		fmt.Fprintf(w, "unparseable: %v\n", err)
	}

	t := newTable("BACKEND", "SCORE")
	for _, s := range reg.Scores(raw) {
		t.Row(s.Info.Name, strconv.Itoa(s.Score))
	}
	fmt.Fprintln(w, t.Render())

	best, score := reg.Best(raw)
	if best == nil {
		fmt.Fprintln(w, "no backend claims this source")
		return false
	}
	fmt.Fprintf(w, "selected: %s (score %d)\n", best.Name, score)
	return true
}

func init() {
	rootCmd.AddCommand(matchCmd)
}
