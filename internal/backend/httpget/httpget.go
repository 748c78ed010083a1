// Package httpget is the plain HTTP(S) download engine. Each instance
// fetches one URI into a ".part" file next to the destination, resuming
// from the partial file with a Range request when it can, and renames it
// into place once the body is complete.
package httpget

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/surge-downloader/plugd/internal/plugin"
	"github.com/surge-downloader/plugd/internal/source"
	"github.com/surge-downloader/plugd/internal/task"
	"github.com/surge-downloader/plugd/internal/utils"
)

const title = "http"

// criteria is what Info claims; getGlobal answers OptionMatch from it.
var criteria = &plugin.Info{Schemes: []string{"http", "https"}}

// Info describes the HTTP engine.
var Info = &plugin.Info{
	Name:    "http",
	Init:    newBackend,
	Final:   finalize,
	Schemes: criteria.Schemes,
	Set:     setGlobal,
	Get:     getGlobal,
}

type backend struct {
	plugin.Worker

	limiter *rate.Limiter

	mu      sync.Mutex
	job     task.Common
	path    string
	state   task.State
	message string
	started time.Time
	elapsed time.Duration

	complete atomic.Int64
	total    atomic.Int64
	speed    atomic.Int64
}

func newBackend(*plugin.Plugin) (plugin.Backend, error) {
	b := &backend{
		limiter: rate.NewLimiter(rate.Inf, task.WorkerBuffer),
		state:   task.StateQueued,
	}
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
	if !source.IsHTTPURL(snap.Common.URI) {
		b.refuse(p, plugin.CodeUnsupportedScheme, "not an http(s) URL: "+snap.Common.URI)
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
	b.speed.Store(0)
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
		Elapsed:       elapsed,
		DownloadSpeed: b.speed.Load(),
	})
	data.Lock()
	data.Status = status
	data.Unlock()
	return running
}

func (b *backend) Ctrl(p *plugin.Plugin, code plugin.CtrlCode, data any) bool {
	if code == plugin.CtrlSpeed {
		s := data.(plugin.Speed)
		setLimit(b.limiter, s.Download)
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
	utils.Debug("http: start %s", job.URI)

	sampleCtx, stopSampling := context.WithCancel(ctx)
	go b.sample(sampleCtx)

	dest, err := b.download(ctx, p, job)

	stopSampling()
	b.speed.Store(0)
	b.mu.Lock()
	b.elapsed = time.Since(b.started)
	b.mu.Unlock()

	switch {
	case err == nil:
		b.mu.Lock()
		b.path = dest
		b.mu.Unlock()
		b.setStatus(task.StateCompleted, "")
		p.Post(plugin.NewEvent(plugin.EventCompleted, plugin.CodeNone, title, filepath.Base(dest)))
		utils.Debug("http: completed %s -> %s", job.URI, dest)
	case ctx.Err() != nil:
		b.setStatus(task.StatePaused, "")
		p.Post(plugin.NewEvent(plugin.EventStop, plugin.CodeNone, title, job.URI))
		utils.Debug("http: stopped %s", job.URI)
	default:
		code := plugin.CodeCustom
		var te *transferError
		if errors.As(err, &te) {
			code = te.code
		}
		b.setStatus(task.StateError, err.Error())
		recordError(code, err.Error())
		p.Post(plugin.NewEvent(plugin.EventError, code, title, err.Error()))
		utils.Debug("http: failed %s: %v", job.URI, err)
	}
}

// sample refreshes the download speed once per SpeedWindow.
func (b *backend) sample(ctx context.Context) {
	ticker := time.NewTicker(task.SpeedWindow)
	defer ticker.Stop()

	last := b.complete.Load()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := b.complete.Load()
			delta := now - last
			if delta < 0 {
				delta = 0
			}
			b.speed.Store(int64(float64(delta) / task.SpeedWindow.Seconds()))
			last = now
		}
	}
}
