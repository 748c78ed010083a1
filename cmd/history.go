package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/surge-downloader/plugd/internal/history"
	"github.com/surge-downloader/plugd/internal/utils"
)

var historyCmd = &cobra.Command{
	Use:   "history [ID]",
	Short: "Show finished transfers",
	Long:  `List recorded transfers, newest first. Pass an ID to show one entry, or --clear to forget them all.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		initializeGlobalState()
		defer history.CloseDB()

		clearAll, _ := cmd.Flags().GetBool("clear")
		limit, _ := cmd.Flags().GetInt("limit")
		out := cmd.OutOrStdout()

		if clearAll {
			n, err := history.Clear()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error clearing history: %v\n", err)
				os.Exit(1)
			}
			fmt.Fprintf(out, "Removed %d entries.\n", n)
			return
		}

		if len(args) == 1 {
			id, err := resolveEntryID(args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			e, err := history.Get(id)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			if e == nil {
				fmt.Fprintf(os.Stderr, "Error: no entry with ID %s\n", args[0])
				os.Exit(1)
			}
			printEntry(out, *e)
			return
		}

		entries, err := history.List(limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		printHistory(out, entries)
	},
}

func printHistory(w io.Writer, entries []history.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No transfers recorded.")
		return
	}
	t := newTable("ID", "STATUS", "BACKEND", "SIZE", "FINISHED", "SOURCE")
	for _, e := range entries {
		t.Row(shortID(e.ID), e.Status, e.Backend, utils.ConvertBytesToHumanReadable(e.Completed),
			humanize.Time(e.FinishedAt), e.URL)
	}
	fmt.Fprintln(w, t.Render())
}

func printEntry(w io.Writer, e history.Entry) {
	fmt.Fprintf(w, "ID:        %s\n", e.ID)
	fmt.Fprintf(w, "Source:    %s\n", e.URL)
	fmt.Fprintf(w, "Backend:   %s\n", e.Backend)
	fmt.Fprintf(w, "Dest:      %s\n", e.Dest)
	fmt.Fprintf(w, "Status:    %s\n", e.Status)
	if e.Message != "" {
		fmt.Fprintf(w, "Message:   %s\n", e.Message)
	}
	fmt.Fprintf(w, "Progress:  %s / %s\n", utils.ConvertBytesToHumanReadable(e.Completed), utils.ConvertBytesToHumanReadable(e.Total))
	fmt.Fprintf(w, "Started:   %s\n", e.StartedAt.Format(time.DateTime))
	fmt.Fprintf(w, "Finished:  %s (%s)\n", e.FinishedAt.Format(time.DateTime), e.FinishedAt.Sub(e.StartedAt).Round(time.Second))
}

// resolveEntryID expands an ID prefix, as printed by the list, to the
// full ID of the single entry it matches. Unmatched input is returned
// as-is.
func resolveEntryID(partial string) (string, error) {
	if len(partial) >= 32 {
		return partial, nil
	}
	entries, err := history.List(0)
	if err != nil {
		return "", err
	}

	var matches []string
	for _, e := range entries {
		if strings.HasPrefix(e.ID, partial) {
			matches = append(matches, e.ID)
		}
	}
	switch len(matches) {
	case 0:
		return partial, nil
	case 1:
		return matches[0], nil
	}
	return "", fmt.Errorf("ambiguous ID prefix '%s' matches %d entries", partial, len(matches))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().Int("limit", 20, "Maximum number of entries to list (0 for all)")
	historyCmd.Flags().Bool("clear", false, "Remove every recorded transfer")
}
