// Package bittorrent downloads magnet links and .torrent files through a
// single shared anacrolix/torrent client. Instance speed limits are applied
// by pausing the torrent's data transfer for a sampling window whenever it
// runs over its limit; global limits go straight to the client's limiters.
package bittorrent

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anacrolix/torrent"
	"github.com/anacrolix/torrent/storage"

	"github.com/surge-downloader/plugd/internal/plugin"
	"github.com/surge-downloader/plugd/internal/task"
	"github.com/surge-downloader/plugd/internal/utils"
)

const title = "bittorrent"

// Info describes the BitTorrent engine.
var Info = &plugin.Info{
	Name:     "bittorrent",
	Init:     newBackend,
	Final:    finalize,
	Schemes:  criteria.Schemes,
	FileExts: criteria.FileExts,
	Set:      setGlobal,
	Get:      getGlobal,
}

var criteria = &plugin.Info{
	Schemes:  []string{"magnet"},
	FileExts: []string{"torrent"},
}

var errDuplicate = errors.New("torrent is already being transferred")

type backend struct {
	plugin.Worker

	mu      sync.Mutex
	job     task.Common
	limit   plugin.Speed
	path    string
	state   task.State
	message string
	started time.Time
	elapsed time.Duration

	complete  atomic.Int64
	total     atomic.Int64
	uploaded  atomic.Int64
	downSpeed atomic.Int64
	upSpeed   atomic.Int64
}

func newBackend(*plugin.Plugin) (plugin.Backend, error) {
	b := &backend{state: task.StateQueued}
	track(b)
	return b, nil
}

func finalize(pb plugin.Backend) {
	b := pb.(*backend)
	b.Stop()
	<-b.Done()
	untrack(b)
}

func (b *backend) Accept(p *plugin.Plugin, data *task.Data) bool {
	snap := data.Snapshot()
	if code, err := checkSource(snap.Common.URI); err != nil {
		b.refuse(p, code, err.Error())
		return false
	}
	if snap.Common.Folder == "" {
		b.refuse(p, plugin.CodeFolderCreateFailed, "no destination folder")
		return false
	}

	b.mu.Lock()
	b.job = snap.Common
	b.path = ""
	b.state = task.StateQueued
	b.message = ""
	b.elapsed = 0
	b.mu.Unlock()

	b.complete.Store(0)
	b.total.Store(0)
	b.uploaded.Store(0)
	return true
}

func (b *backend) refuse(p *plugin.Plugin, code int, msg string) {
	recordError(code, msg)
	p.Post(plugin.NewEvent(plugin.EventError, code, title, msg))
}

func (b *backend) Sync(p *plugin.Plugin, data *task.Data) bool {
	running := b.Running()

	b.mu.Lock()
	elapsed := b.elapsed
	if running && !b.started.IsZero() {
		elapsed = time.Since(b.started)
	}
	status := task.Status{State: b.state, Message: b.message, Path: b.path}
	b.mu.Unlock()

	data.UpdateProgress(task.Progress{
		Complete:      b.complete.Load(),
		Total:         b.total.Load(),
		Uploaded:      b.uploaded.Load(),
		Elapsed:       elapsed,
		DownloadSpeed: b.downSpeed.Load(),
		UploadSpeed:   b.upSpeed.Load(),
	})
	data.Lock()
	data.Status = status
	data.Unlock()
	return running
}

func (b *backend) Ctrl(p *plugin.Plugin, code plugin.CtrlCode, data any) bool {
	if code == plugin.CtrlSpeed {
		b.mu.Lock()
		b.limit = data.(plugin.Speed)
		b.mu.Unlock()
		return true
	}
	return b.Dispatch(code, data, func(ctx context.Context) { b.run(ctx, p) })
}

func (b *backend) setStatus(state task.State, msg string) {
	b.mu.Lock()
	b.state = state
	b.message = msg
	b.mu.Unlock()
}

func (b *backend) run(ctx context.Context, p *plugin.Plugin) {
	b.mu.Lock()
	job := b.job
	b.started = time.Now()
	b.state = task.StateActive
	b.message = ""
	b.mu.Unlock()

	if job.URI == "" {
		b.refuse(p, plugin.CodeIncorrectSource, "no task accepted")
		b.setStatus(task.StateError, "no task accepted")
		return
	}

	p.Post(plugin.NewEvent(plugin.EventStart, plugin.CodeNone, title, job.URI))
	utils.Debug("bittorrent: start %s", job.URI)

	err := b.transfer(ctx, p, job)

	b.downSpeed.Store(0)
	b.upSpeed.Store(0)
	b.mu.Lock()
	b.elapsed = time.Since(b.started)
	b.mu.Unlock()

	switch {
	case err == nil:
		utils.Debug("bittorrent: finished %s", job.URI)
	case ctx.Err() != nil:
		b.mu.Lock()
		if b.state == task.StateActive {
			b.state = task.StatePaused
		}
		b.mu.Unlock()
		p.Post(plugin.NewEvent(plugin.EventStop, plugin.CodeNone, title, job.URI))
		utils.Debug("bittorrent: stopped %s", job.URI)
	default:
		code := plugin.CodeCustom
		var te *transferError
		if errors.As(err, &te) {
			code = te.code
		}
		b.setStatus(task.StateError, err.Error())
		recordError(code, err.Error())
		p.Post(plugin.NewEvent(plugin.EventError, code, title, err.Error()))
		utils.Debug("bittorrent: failed %s: %v", job.URI, err)
	}
}

type transferError struct {
	code int
	err  error
}

func (e *transferError) Error() string { return e.err.Error() }

func (e *transferError) Unwrap() error { return e.err }

func fail(code int, err error) error {
	return &transferError{code: code, err: err}
}

func (b *backend) transfer(ctx context.Context, p *plugin.Plugin, job task.Common) error {
	cfg := runtimeConfig()

	client := cfg.HTTPClient(job.ConnectTimeout)
	spec, err := loadSpec(ctx, client, job.URI, cfg.GetUserAgent())
	client.CloseIdleConnections()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fail(plugin.CodeIncorrectSource, err)
	}

	cl, err := acquireClient()
	if err != nil {
		return fail(plugin.CodeOutOfResource, err)
	}

	store := storage.NewFile(job.Folder)
	defer store.Close()
	spec.Storage = store

	t, isNew, err := cl.AddTorrentSpec(spec)
	if err != nil {
		return fail(plugin.CodeCustom, err)
	}
	if !isNew {
		return fail(plugin.CodeFileLocked, errDuplicate)
	}
	defer t.Drop()

	if job.MaxConnections > 0 {
		t.SetMaxEstablishedConns(job.MaxConnections)
	}

	infoTimeout := time.NewTimer(cfg.GetTorrentInfoTimeout())
	defer infoTimeout.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-infoTimeout.C:
		return fail(plugin.CodeConnectFailed, fmt.Errorf("no metadata after %s", cfg.GetTorrentInfoTimeout()))
	case <-t.GotInfo():
	}

	b.total.Store(t.Length())
	b.mu.Lock()
	b.path = filepath.Join(job.Folder, t.Name())
	b.mu.Unlock()
	p.Post(plugin.NewEventf(plugin.EventNormal, plugin.CodeNone, "%s: %s in %d files", t.Name(), utils.ConvertBytesToHumanReadable(t.Length()), len(t.Files())))

	t.DownloadAll()
	seeding := false
	return b.monitor(ctx, func() {
		if seeding {
			return
		}
		if t.BytesCompleted() < t.Length() {
			return
		}
		seeding = true
		b.setStatus(task.StateCompleted, "")
		p.Post(plugin.NewEvent(plugin.EventCompleted, plugin.CodeNone, title, t.Name()))
		if cfg != nil && cfg.TorrentSeed && !cfg.TorrentNoUpload {
			p.Post(plugin.NewEvent(plugin.EventUploading, plugin.CodeNone, title, t.Name()))
		}
	}, t, cfg)
}

// monitor samples t once per SpeedWindow, calling check after each sample,
// until the download completes (or, when seeding, until ctx is done).
func (b *backend) monitor(ctx context.Context, check func(), t *torrent.Torrent, cfg *task.RuntimeConfig) error {
	ticker := time.NewTicker(task.SpeedWindow)
	defer ticker.Stop()

	seed := cfg != nil && cfg.TorrentSeed && !cfg.TorrentNoUpload
	lastDown := t.BytesCompleted()
	lastUp := t.Stats().BytesWrittenData.Int64()
	b.complete.Store(lastDown)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		down := t.BytesCompleted()
		up := t.Stats().BytesWrittenData.Int64()
		b.complete.Store(down)
		b.uploaded.Store(up)
		b.downSpeed.Store(perSecond(down - lastDown))
		b.upSpeed.Store(perSecond(up - lastUp))
		lastDown, lastUp = down, up

		b.mu.Lock()
		limit := b.limit
		b.mu.Unlock()
		if over(limit.Download, b.downSpeed.Load()) {
			t.DisallowDataDownload()
		} else {
			t.AllowDataDownload()
		}
		if over(limit.Upload, b.upSpeed.Load()) {
			t.DisallowDataUpload()
		} else {
			t.AllowDataUpload()
		}

		check()
		if down >= t.Length() && !seed {
			return nil
		}
	}
}

func perSecond(delta int64) int64 {
	if delta < 0 {
		return 0
	}
	return int64(float64(delta) / task.SpeedWindow.Seconds())
}

// over reports whether speed exceeds a positive limit.
func over(limit int, speed int64) bool {
	return limit > 0 && speed > int64(limit)
}
