package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/surge-downloader/plugd/internal/backend"
	"github.com/surge-downloader/plugd/internal/clipboard"
	"github.com/surge-downloader/plugd/internal/history"
	"github.com/surge-downloader/plugd/internal/host"
	"github.com/surge-downloader/plugd/internal/plugin"
	"github.com/surge-downloader/plugd/internal/task"
	"github.com/surge-downloader/plugd/internal/tui"
	"github.com/surge-downloader/plugd/internal/utils"
)

var getCmd = &cobra.Command{
	Use:     "get [url]...",
	Aliases: []string{"add"},
	Short:   "Download one or more URLs",
	Long: `Download URLs with the backend that claims each of them.

An argument may list HTTP mirrors after the primary URL, separated by
commas: plugd get https://a/file.iso,https://b/file.iso`,
	Run: func(cmd *cobra.Command, args []string) {
		settings := initializeGlobalState()
		defer history.CloseDB()

		batchFile, _ := cmd.Flags().GetString("batch")
		output, _ := cmd.Flags().GetString("output")
		limit, _ := cmd.Flags().GetInt("limit")
		useClipboard, _ := cmd.Flags().GetBool("clipboard")
		plain, _ := cmd.Flags().GetBool("plain")

		var readClipboard func() string
		if useClipboard {
			readClipboard = clipboard.NewValidator().ReadURL
		}
		urls, err := collectURLs(args, batchFile, readClipboard)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading batch file: %v\n", err)
			os.Exit(1)
		}
		if len(urls) == 0 {
			_ = cmd.Help()
			return
		}

		if limit > 0 {
			settings.Network.DownloadLimitKB = limit
		}

		tasks, skipped, dupes := buildTasks(urls, resolveOutputDir(output, settings), settings)
		for _, s := range skipped {
			fmt.Fprintf(os.Stderr, "Skipping unsupported source: %s\n", s)
		}
		for _, s := range dupes {
			fmt.Fprintf(os.Stderr, "Skipping duplicate source: %s\n", s)
		}
		if len(tasks) == 0 {
			os.Exit(1)
		}

		reg, err := backend.NewRegistry()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		h := host.New(reg, settings)
		if err := h.Configure(); err != nil {
			fmt.Fprintf(os.Stderr, "Error configuring backends: %v\n", err)
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		if plain || !isatty.IsTerminal(os.Stdout.Fd()) {
			err = runPlain(ctx, h, tasks, out)
		} else {
			err = tui.Run(ctx, h, tasks)
		}

		printSummary(out, tasks)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			stop()
			history.CloseDB()
			os.Exit(1)
		}
	},
}

// runPlain prints engine events line by line while the host works.
func runPlain(ctx context.Context, h *host.Host, tasks []*task.Data, w io.Writer) error {
	h.OnEvent = func(d *task.Data, backend string, e *plugin.Event) {
		fmt.Fprintf(w, "%s [%s] %s %s: %s\n",
			e.Time.Format(time.TimeOnly), backend, label(d.Snapshot()), e.Type, e.Message)
	}
	return h.RunAll(ctx, tasks)
}

// label names a task by its destination once known.
func label(s task.Snapshot) string {
	if s.Status.Path != "" {
		return filepath.Base(s.Status.Path)
	}
	return s.Common.URI
}

func printSummary(w io.Writer, tasks []*task.Data) {
	for _, d := range tasks {
		s := d.Snapshot()
		dest := s.Status.Path
		if dest == "" {
			dest = s.Common.URI
		}
		line := fmt.Sprintf("%-9s %10s  %s", s.Status.State, utils.ConvertBytesToHumanReadable(s.Progress.Complete), dest)
		if s.Status.State == task.StateError && s.Status.Message != "" {
			line += "  (" + s.Status.Message + ")"
		}
		fmt.Fprintln(w, line)
	}
}

func init() {
	rootCmd.AddCommand(getCmd)
	getCmd.Flags().StringP("batch", "b", "", "File containing URLs to download (one per line)")
	getCmd.Flags().StringP("output", "o", "", "Output directory")
	getCmd.Flags().Int("limit", 0, "Global download limit in KB/s for this run (0 keeps the configured limit)")
	getCmd.Flags().Bool("clipboard", false, "Also download the URL currently on the clipboard")
	getCmd.Flags().Bool("plain", false, "Print events as lines instead of the progress view")
}
