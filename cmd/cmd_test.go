package cmd

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surge-downloader/plugd/internal/backend"
	"github.com/surge-downloader/plugd/internal/config"
	"github.com/surge-downloader/plugd/internal/history"
	"github.com/surge-downloader/plugd/internal/host"
	"github.com/surge-downloader/plugd/internal/task"
)

func TestReadURLsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls.txt")
	content := "https://example.com/a\n\n# comment\n  magnet:?xt=urn:btih:abc  \n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	urls, err := readURLsFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/a", "magnet:?xt=urn:btih:abc"}, urls)

	_, err = readURLsFromFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestCollectURLs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls.txt")
	require.NoError(t, os.WriteFile(path, []byte("https://b\n"), 0o644))

	urls, err := collectURLs([]string{"https://a"}, path, func() string { return "https://c" })
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a", "https://b", "https://c"}, urls)

	urls, err = collectURLs(nil, "", func() string { return "" })
	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestResolveOutputDir(t *testing.T) {
	s := config.DefaultSettings()
	s.General.DefaultDownloadDir = ""

	wd, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, wd, resolveOutputDir("", s))

	s.General.DefaultDownloadDir = "/srv/downloads"
	assert.Equal(t, "/srv/downloads", resolveOutputDir("", s))
	assert.Equal(t, "/tmp/x", resolveOutputDir("/tmp/x", s))
}

func TestBuildTasks(t *testing.T) {
	s := config.DefaultSettings()
	s.Network.MaxTaskRetries = 7
	s.Network.RetryBaseDelay = 3 * time.Second

	tasks, skipped, dupes := buildTasks([]string{
		"https://a/file.iso,https://b/file.iso",
		"magnet:?xt=urn:btih:c12fe1c06bba254a9dc9f519b335aa7c1367a88a",
		"ftp://nope",
	}, "/dl", s)

	assert.Equal(t, []string{"ftp://nope"}, skipped)
	assert.Empty(t, dupes)
	require.Len(t, tasks, 2)

	first := tasks[0].Snapshot().Common
	assert.Equal(t, "https://a/file.iso", first.URI)
	assert.Equal(t, []string{"https://a/file.iso", "https://b/file.iso"}, first.Mirrors)
	assert.Equal(t, "/dl", first.Folder)
	assert.Equal(t, 7, first.RetryLimit)
	assert.Equal(t, 3*time.Second, first.RetryDelay)
	assert.NotEmpty(t, first.ID)

	assert.NotEqual(t, first.ID, tasks[1].Snapshot().Common.ID)
}

func TestBuildTasks_SkipsDuplicateSources(t *testing.T) {
	s := config.DefaultSettings()
	hexMagnet := "magnet:?xt=urn:btih:0123456789abcdef0123456789abcdef01234567"
	b32Magnet := "magnet:?xt=urn:btih:AERUKZ4JVPG66AJDIVTYTK6N54ASGRLH&dn=same"

	tasks, skipped, dupes := buildTasks([]string{
		hexMagnet,
		"https://Example.com/file.iso",
		b32Magnet,
		"https://example.com/file.iso#part",
		"https://example.com/other.iso",
	}, "/dl", s)

	assert.Empty(t, skipped)
	assert.Equal(t, []string{b32Magnet, "https://example.com/file.iso#part"}, dupes)
	require.Len(t, tasks, 3)
	assert.Equal(t, hexMagnet, tasks[0].Snapshot().Common.URI)
	assert.Equal(t, "https://example.com/other.iso", tasks[2].Snapshot().Common.URI)
}

func TestPrintMatch(t *testing.T) {
	reg, err := backend.NewRegistry()
	require.NoError(t, err)

	var buf bytes.Buffer
	assert.True(t, printMatch(&buf, reg, "magnet:?xt=urn:btih:c12fe1c06bba254a9dc9f519b335aa7c1367a88a"))
	assert.Contains(t, buf.String(), "selected: bittorrent (score 1)")

	buf.Reset()
	assert.True(t, printMatch(&buf, reg, "/tmp/ubuntu.torrent"))
	assert.Contains(t, buf.String(), `ext="torrent"`)
	assert.Contains(t, buf.String(), "selected: bittorrent")

	buf.Reset()
	assert.False(t, printMatch(&buf, reg, "gopher://example.com/x"))
	assert.Contains(t, buf.String(), "no backend claims this source")
}

func TestPrintBackends(t *testing.T) {
	reg, err := backend.NewRegistry()
	require.NoError(t, err)

	var buf bytes.Buffer
	printBackends(&buf, reg)
	out := buf.String()
	assert.Contains(t, out, "http,https")
	assert.Contains(t, out, "bittorrent")
	assert.Contains(t, out, "magnet")
	assert.Contains(t, out, "torrent")
}

func TestFormatLimit(t *testing.T) {
	assert.Equal(t, "unlimited", formatLimit(0))
	assert.Equal(t, "1.0 KiB/s", formatLimit(1024))
}

func TestHistoryOutput(t *testing.T) {
	history.Configure(filepath.Join(t.TempDir(), "history.db"))
	t.Cleanup(history.CloseDB)

	var buf bytes.Buffer
	printHistory(&buf, nil)
	assert.Contains(t, buf.String(), "No transfers recorded.")

	now := time.Now()
	for _, id := range []string{"aabbccdd-0001", "aabbccdd-0002", "ffee0000-0003"} {
		_, err := history.Record(history.Entry{
			ID: id, URL: "https://example.com/" + id, Backend: "http", Status: "completed",
			Total: 2048, Completed: 2048, StartedAt: now.Add(-time.Minute), FinishedAt: now,
		})
		require.NoError(t, err)
	}

	entries, err := history.List(0)
	require.NoError(t, err)
	buf.Reset()
	printHistory(&buf, entries)
	assert.Contains(t, buf.String(), "ffee0000")
	assert.Contains(t, buf.String(), "https://example.com/aabbccdd-0001")

	id, err := resolveEntryID("ffee")
	require.NoError(t, err)
	assert.Equal(t, "ffee0000-0003", id)

	_, err = resolveEntryID("aabbccdd")
	assert.ErrorContains(t, err, "ambiguous")

	id, err = resolveEntryID("1234")
	require.NoError(t, err)
	assert.Equal(t, "1234", id)

	buf.Reset()
	printEntry(&buf, entries[0])
	assert.Contains(t, buf.String(), "Progress:  2.0 KiB / 2.0 KiB")
	assert.Contains(t, buf.String(), "(1m0s)")
}

func TestPrintSettings(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	s := config.DefaultSettings()
	s.Network.UserAgent = ""
	s.Network.RetryBaseDelay = 2 * time.Second

	var buf bytes.Buffer
	require.NoError(t, printSettings(&buf, s))
	out := buf.String()
	assert.Contains(t, out, config.GetSettingsPath())
	for _, cat := range config.CategoryOrder() {
		assert.Contains(t, out, cat)
	}
	assert.Contains(t, out, "retry_base_delay")
	assert.Contains(t, out, "2s")
	assert.Contains(t, out, "(default)")
}

func TestRunPlain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	reg, err := backend.NewRegistry()
	require.NoError(t, err)
	s := config.DefaultSettings()
	s.General.RecordHistory = false
	h := host.New(reg, s)
	h.PollInterval = 5 * time.Millisecond

	dir := t.TempDir()
	tasks, skipped, _ := buildTasks([]string{srv.URL + "/payload.bin"}, dir, s)
	require.Empty(t, skipped)

	var buf bytes.Buffer
	require.NoError(t, runPlain(context.Background(), h, tasks, &buf))
	assert.Contains(t, buf.String(), "[http]")
	assert.Contains(t, buf.String(), "completed")

	buf.Reset()
	printSummary(&buf, tasks)
	assert.Contains(t, buf.String(), string(task.StateCompleted))
	assert.Contains(t, buf.String(), filepath.Join(dir, "payload.bin"))
}
