package httpget

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/surge-downloader/plugd/internal/plugin"
	"github.com/surge-downloader/plugd/internal/task"
	"github.com/surge-downloader/plugd/internal/testutil"
)

func newInstance(t *testing.T) *plugin.Plugin {
	t.Helper()
	p, err := plugin.New(Info)
	require.NoError(t, err)
	t.Cleanup(p.Unref)
	return p
}

func newJob(uri, folder string) *task.Data {
	d := task.New(uri)
	d.Common.Folder = folder
	d.Common.RetryDelay = time.Millisecond
	return d
}

// syncUntilStopped polls like a host would and returns the popped events.
func syncUntilStopped(t *testing.T, p *plugin.Plugin, d *task.Data) []*plugin.Event {
	t.Helper()
	var events []*plugin.Event
	deadline := time.Now().Add(10 * time.Second)
	for p.Sync(d) {
		for e := p.Pop(); e != nil; e = p.Pop() {
			events = append(events, e)
		}
		require.True(t, time.Now().Before(deadline), "transfer did not finish")
		time.Sleep(5 * time.Millisecond)
	}
	for e := p.Pop(); e != nil; e = p.Pop() {
		events = append(events, e)
	}
	return events
}

func types(events []*plugin.Event) []plugin.EventType {
	out := make([]plugin.EventType, 0, len(events))
	for _, e := range events {
		if e.Type == plugin.EventWarning || e.Type == plugin.EventNormal {
			continue
		}
		out = append(out, e.Type)
	}
	return out
}

func TestDownload_Complete(t *testing.T) {
	body := testutil.Payload(100 * 1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="report.bin"`)
		http.ServeContent(w, r, "", time.Time{}, bytes.NewReader(body))
	}))
	defer srv.Close()

	dir := t.TempDir()
	p := newInstance(t)
	d := newJob(srv.URL+"/download?id=7", dir)

	require.True(t, p.Accept(d))
	require.True(t, p.Start())
	events := syncUntilStopped(t, p, d)

	assert.Equal(t, []plugin.EventType{plugin.EventStart, plugin.EventCompleted}, types(events))

	snap := d.Snapshot()
	assert.Equal(t, task.StateCompleted, snap.Status.State)
	assert.Equal(t, filepath.Join(dir, "report.bin"), snap.Status.Path)
	assert.Equal(t, int64(len(body)), snap.Progress.Complete)
	assert.Equal(t, int64(len(body)), snap.Progress.Total)
	assert.Equal(t, 100, snap.Progress.Percent)

	got, err := os.ReadFile(snap.Status.Path)
	require.NoError(t, err)
	assert.Equal(t, body, got)

	_, err = os.Stat(filepath.Join(dir, "download"+task.IncompleteSuffix))
	assert.True(t, os.IsNotExist(err), "partial file should be renamed away")
	_, err = os.Stat(filepath.Join(dir, "download"+task.IncompleteSuffix+".lock"))
	assert.True(t, os.IsNotExist(err), "lock file should be removed")
}

func TestDownload_Resume(t *testing.T) {
	body := testutil.Payload(64 * 1024)
	srv := testutil.NewRangeServer("data.bin", body)
	defer srv.Close()

	dir := t.TempDir()
	_, err := testutil.CreatePartFile(dir, "data.bin", body[:len(body)/2])
	require.NoError(t, err)

	p := newInstance(t)
	d := newJob(srv.URL+"/data.bin", dir)
	require.True(t, p.Accept(d))
	require.True(t, p.Start())
	syncUntilStopped(t, p, d)

	assert.Equal(t, []string{"bytes=32768-"}, srv.Ranges())
	final := filepath.Join(dir, "data.bin")
	require.NoError(t, testutil.VerifyFileSize(final, int64(len(body))))
	got, err := os.ReadFile(final)
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestDownload_ExistingFileGetsCounter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("new"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("old"), 0o644))

	p := newInstance(t)
	d := newJob(srv.URL+"/notes.txt", dir)
	require.True(t, p.Accept(d))
	require.True(t, p.Start())
	syncUntilStopped(t, p, d)

	assert.Equal(t, filepath.Join(dir, "notes(1).txt"), d.Snapshot().Status.Path)
	old, _ := os.ReadFile(filepath.Join(dir, "notes.txt"))
	assert.Equal(t, "old", string(old))
}

func TestDownload_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("finally"))
	}))
	defer srv.Close()

	p := newInstance(t)
	d := newJob(srv.URL+"/flaky.txt", t.TempDir())
	require.True(t, p.Accept(d))
	require.True(t, p.Start())
	events := syncUntilStopped(t, p, d)

	warnings := 0
	for _, e := range events {
		if e.Type == plugin.EventWarning {
			warnings++
		}
	}
	assert.Equal(t, 2, warnings)
	assert.Equal(t, int32(3), hits.Load())
	assert.Equal(t, task.StateCompleted, d.Snapshot().Status.State)
}

func TestDownload_FailsOverToMirror(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer broken.Close()
	mirror := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("from mirror"))
	}))
	defer mirror.Close()

	dir := t.TempDir()
	p := newInstance(t)
	d := newJob(broken.URL+"/file.txt", dir)
	d.Common.Mirrors = []string{broken.URL + "/file.txt", mirror.URL + "/file.txt"}
	require.True(t, p.Accept(d))
	require.True(t, p.Start())
	syncUntilStopped(t, p, d)

	assert.Equal(t, task.StateCompleted, d.Snapshot().Status.State)
	data, err := os.ReadFile(filepath.Join(dir, "file.txt"))
	require.NoError(t, err)
	assert.Equal(t, "from mirror", string(data))
}

func TestSources(t *testing.T) {
	job := task.Common{
		URI:     "http://a/x",
		Mirrors: []string{"http://a/x", "magnet:?xt=urn:btih:abc", "https://b/x"},
	}
	assert.Equal(t, []string{"http://a/x", "https://b/x"}, sources(job))
	assert.Equal(t, []string{"http://a/x"}, sources(task.Common{URI: "http://a/x"}))
}

func TestDownload_NotFoundIsFinal(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	p := newInstance(t)
	d := newJob(srv.URL+"/missing.iso", t.TempDir())
	require.True(t, p.Accept(d))
	require.True(t, p.Start())
	events := syncUntilStopped(t, p, d)

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, plugin.EventError, last.Type)
	assert.Equal(t, plugin.CodeConnectFailed, last.Code)
	assert.Contains(t, last.Message, "404")
	assert.Equal(t, int32(1), hits.Load(), "client errors are not retried")

	snap := d.Snapshot()
	assert.Equal(t, task.StateError, snap.Status.State)
	assert.Contains(t, snap.Status.Message, "404")

	var code int
	require.Equal(t, plugin.ResultOK, Info.GetGlobal(plugin.OptionErrorCode, &code))
	assert.Equal(t, plugin.CodeConnectFailed, code)
}

func TestDownload_Locked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	other := flock.New(filepath.Join(dir, "busy.bin"+task.IncompleteSuffix+".lock"))
	locked, err := other.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer other.Unlock()

	p := newInstance(t)
	d := newJob(srv.URL+"/busy.bin", dir)
	require.True(t, p.Accept(d))
	require.True(t, p.Start())
	events := syncUntilStopped(t, p, d)

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, plugin.EventError, last.Type)
	assert.Equal(t, plugin.CodeFileLocked, last.Code)
}

func TestDownload_StopMidTransfer(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1048576")
		_, _ = w.Write(testutil.Payload(4096))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	p := newInstance(t)
	d := newJob(srv.URL+"/big.bin", dir)
	require.True(t, p.Accept(d))
	require.True(t, p.Start())

	require.Eventually(t, func() bool {
		p.Sync(d)
		return d.Snapshot().Progress.Complete == 4096
	}, 5*time.Second, 5*time.Millisecond)
	assert.False(t, p.Accept(d), "a running instance refuses new data")

	require.True(t, p.Stop())
	events := syncUntilStopped(t, p, d)

	assert.Equal(t, []plugin.EventType{plugin.EventStart, plugin.EventStop}, types(events))
	assert.Equal(t, task.StatePaused, d.Snapshot().Status.State)

	fi, err := os.Stat(filepath.Join(dir, "big.bin"+task.IncompleteSuffix))
	require.NoError(t, err, "partial file is kept for resume")
	assert.Equal(t, int64(4096), fi.Size())
}

func TestAccept_Refusals(t *testing.T) {
	p := newInstance(t)

	assert.False(t, p.Accept(newJob("ftp://example.com/a.iso", t.TempDir())))
	e := p.Pop()
	require.NotNil(t, e)
	assert.Equal(t, plugin.EventError, e.Type)
	assert.Equal(t, plugin.CodeUnsupportedScheme, e.Code)

	assert.False(t, p.Accept(newJob("https://example.com/a.iso", "")))
	e = p.Pop()
	require.NotNil(t, e)
	assert.Equal(t, plugin.CodeFolderCreateFailed, e.Code)

	var msg string
	require.Equal(t, plugin.ResultOK, Info.GetGlobal(plugin.OptionErrorString, &msg))
	assert.Equal(t, "no destination folder", msg)
}

func TestStart_WithoutAccept(t *testing.T) {
	p := newInstance(t)
	require.True(t, p.Start())
	require.Eventually(t, func() bool { return !p.State() }, 5*time.Second, time.Millisecond)

	e := p.Pop()
	require.NotNil(t, e)
	assert.Equal(t, plugin.CodeIncorrectSource, e.Code)
}

func TestCtrl_Speed(t *testing.T) {
	p := newInstance(t)
	b := p.Backend().(*backend)

	assert.True(t, p.SetSpeed(plugin.Speed{Download: 2048}))
	assert.Equal(t, rate.Limit(2048), b.limiter.Limit())
	assert.Equal(t, 2048, b.limiter.Burst())

	assert.True(t, p.SetSpeed(plugin.Speed{}))
	assert.Equal(t, rate.Inf, b.limiter.Limit())
	assert.False(t, p.SetSpeed(plugin.Speed{Download: -5}))
}

func TestGlobals(t *testing.T) {
	defer Info.SetGlobal(plugin.OptionSpeedLimit, plugin.Speed{})
	defer Info.SetGlobal(plugin.OptionSetting, (*task.RuntimeConfig)(nil))

	var on bool
	assert.Equal(t, plugin.ResultOK, Info.SetGlobal(plugin.OptionInit, true))
	assert.Equal(t, plugin.ResultOK, Info.GetGlobal(plugin.OptionInit, &on))
	assert.True(t, on)
	assert.Equal(t, plugin.ResultError, Info.SetGlobal(plugin.OptionInit, "yes"))

	assert.Equal(t, plugin.ResultOK, Info.SetGlobal(plugin.OptionSpeedLimit, [2]int{4096, 0}))
	var limit plugin.Speed
	assert.Equal(t, plugin.ResultOK, Info.GetGlobal(plugin.OptionSpeedLimit, &limit))
	assert.Equal(t, plugin.Speed{Download: 4096}, limit)
	assert.Equal(t, rate.Limit(4096), global.limiter.Limit())
	assert.Equal(t, plugin.ResultError, Info.SetGlobal(plugin.OptionSpeedLimit, plugin.Speed{Download: -1}))

	cfg := &task.RuntimeConfig{UserAgent: "plugd-test"}
	assert.Equal(t, plugin.ResultOK, Info.SetGlobal(plugin.OptionSetting, cfg))
	cfg.UserAgent = "mutated"
	var got task.RuntimeConfig
	assert.Equal(t, plugin.ResultOK, Info.GetGlobal(plugin.OptionSetting, &got))
	assert.Equal(t, "plugd-test", got.UserAgent)

	var speed plugin.Speed
	assert.Equal(t, plugin.ResultOK, Info.GetGlobal(plugin.OptionSpeed, &speed))
	assert.Equal(t, plugin.ResultError, Info.GetGlobal(plugin.OptionSpeed, nil))

	assert.Equal(t, plugin.ResultOK, Info.GetGlobal(plugin.OptionMatch, "https://example.com/a"))
	assert.Equal(t, plugin.ResultFailed, Info.GetGlobal(plugin.OptionMatch, "magnet:?xt=urn:btih:abc"))
	assert.Equal(t, plugin.ResultUnsupported, Info.SetGlobal(plugin.OptionDerived, nil))
}

func TestUserAgentAndHeaders(t *testing.T) {
	var seen http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Clone()
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	p := newInstance(t)
	d := newJob(srv.URL+"/h.txt", t.TempDir())
	d.Common.Headers = map[string]string{"X-Token": "abc"}
	d.Common.User = "u"
	d.Common.Password = "p"
	require.True(t, p.Accept(d))
	require.True(t, p.Start())
	syncUntilStopped(t, p, d)

	require.NotNil(t, seen)
	assert.Equal(t, "abc", seen.Get("X-Token"))
	assert.True(t, strings.HasPrefix(seen.Get("Authorization"), "Basic "))
	assert.Contains(t, seen.Get("User-Agent"), "Mozilla")
}
