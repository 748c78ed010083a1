package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/surge-downloader/plugd/internal/config"
	"github.com/surge-downloader/plugd/internal/source"
	"github.com/surge-downloader/plugd/internal/task"
	"github.com/surge-downloader/plugd/internal/utils"
)

// readURLsFromFile reads URLs from a file, one per line
func readURLsFromFile(filepath string) ([]string, error) {
	file, err := os.Open(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var urls []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			urls = append(urls, line)
		}
	}
	return urls, scanner.Err()
}

// collectURLs gathers arguments, batch file lines and, when readClipboard
// is set, a URL from the clipboard.
func collectURLs(args []string, batchFile string, readClipboard func() string) ([]string, error) {
	urls := append([]string(nil), args...)

	if batchFile != "" {
		fileURLs, err := readURLsFromFile(batchFile)
		if err != nil {
			return nil, err
		}
		urls = append(urls, fileURLs...)
	}

	if readClipboard != nil {
		if u := readClipboard(); u != "" {
			urls = append(urls, u)
		}
	}
	return urls, nil
}

// resolveOutputDir picks the destination directory for new tasks.
func resolveOutputDir(output string, settings *config.Settings) string {
	outPath := output
	if outPath == "" {
		if settings.General.DefaultDownloadDir != "" {
			outPath = settings.General.DefaultDownloadDir
		} else {
			outPath = "."
		}
	}
	return utils.EnsureAbsPath(outPath)
}

// buildTasks turns "url[,mirror...]" arguments into task descriptors.
// Unusable entries are returned in skipped. An entry naming the same
// source as an earlier one (the same infohash in hex or base32, or an
// HTTP URL differing only in case or fragment) is returned in dupes.
func buildTasks(args []string, folder string, settings *config.Settings) (tasks []*task.Data, skipped, dupes []string) {
	seen := make(map[string]bool)
	for _, arg := range args {
		uri, mirrors := source.ParseCommaArg(arg)
		if uri == "" {
			skipped = append(skipped, arg)
			continue
		}
		if _, key := source.CanonicalKey(uri); key != "" {
			if seen[key] {
				dupes = append(dupes, arg)
				continue
			}
			seen[key] = true
		}
		d := task.New(uri)
		d.Common.Mirrors = mirrors
		d.Common.Folder = folder
		d.Common.RetryLimit = settings.Network.MaxTaskRetries
		d.Common.RetryDelay = settings.Network.RetryBaseDelay
		d.Common.ConnectTimeout = settings.Network.ConnectTimeout
		d.Common.MaxConnections = settings.Torrent.MaxConnectionsPerTorrent
		tasks = append(tasks, d)
	}
	return tasks, skipped, dupes
}
