// Package host drives plugin instances through their lifecycle: it picks
// an engine for each task, starts it, polls Sync and the event queue until
// the engine stops, and records the outcome.
package host

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/surge-downloader/plugd/internal/config"
	"github.com/surge-downloader/plugd/internal/history"
	"github.com/surge-downloader/plugd/internal/plugin"
	"github.com/surge-downloader/plugd/internal/task"
	"github.com/surge-downloader/plugd/internal/utils"
)

var (
	ErrNoBackend      = errors.New("no backend accepts this source")
	ErrNotAccepted    = errors.New("backend refused the task")
	ErrStartFailed    = errors.New("backend failed to start")
	ErrTransferFailed = errors.New("transfer failed")
)

// PollInterval is how often a running instance is synced.
const PollInterval = 150 * time.Millisecond

// Host runs tasks against a registry of engines.
type Host struct {
	Registry *plugin.Registry
	Settings *config.Settings

	// OnEvent receives every event popped from an instance, in order.
	OnEvent func(d *task.Data, backend string, e *plugin.Event)
	// OnProgress receives a snapshot after each Sync.
	OnProgress func(backend string, s task.Snapshot)

	PollInterval time.Duration

	// notify serializes callbacks across concurrent runs.
	notify sync.Mutex
}

func New(reg *plugin.Registry, settings *config.Settings) *Host {
	if settings == nil {
		settings = config.DefaultSettings()
	}
	return &Host{Registry: reg, Settings: settings, PollInterval: PollInterval}
}

// Configure pushes the host settings to every registered engine. Engines
// that do not support an option are skipped.
func (h *Host) Configure() error {
	rc := h.Settings.ToRuntimeConfig()
	limit := plugin.Speed{
		Download: h.Settings.Network.DownloadLimitKB * task.KB,
		Upload:   h.Settings.Network.UploadLimitKB * task.KB,
	}

	for _, info := range h.Registry.Infos() {
		for _, set := range []struct {
			option plugin.Option
			param  any
		}{
			{plugin.OptionSetting, rc},
			{plugin.OptionSpeedLimit, limit},
			{plugin.OptionInit, true},
		} {
			switch r := info.SetGlobal(set.option, set.param); r {
			case plugin.ResultOK, plugin.ResultUnsupported:
			default:
				return fmt.Errorf("%s: set %s: %w", info.Name, set.option, r.Err())
			}
		}
	}
	return nil
}

// Run transfers d with the best matching engine and blocks until the
// engine stops. Cancelling ctx stops the engine; Run still waits for it
// to wind down and returns ctx.Err().
func (h *Host) Run(ctx context.Context, d *task.Data) error {
	uri := d.Snapshot().Common.URI
	info, _ := h.Registry.Best(uri)
	if info == nil {
		return fmt.Errorf("%w: %s", ErrNoBackend, uri)
	}

	p, err := plugin.New(info)
	if err != nil {
		return err
	}
	defer p.Unref()

	if !p.Accept(d) {
		msg := uri
		if e := h.drain(p, d); e != nil {
			msg = e.Message
		}
		return fmt.Errorf("%s: %w: %s", info.Name, ErrNotAccepted, msg)
	}

	started := time.Now()
	if !p.Start() {
		return fmt.Errorf("%s: %w", info.Name, ErrStartFailed)
	}
	utils.Debug("host: %s started %s", info.Name, uri)

	interval := h.PollInterval
	if interval <= 0 {
		interval = PollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var failure *plugin.Event
	done := ctx.Done()
	for {
		running := p.Sync(d)
		if e := h.drain(p, d); e != nil {
			failure = e
		}
		h.progress(info.Name, d)
		if !running {
			break
		}

		select {
		case <-done:
			utils.Debug("host: stopping %s", uri)
			p.Stop()
			done = nil
		case <-ticker.C:
		}
	}

	h.record(info.Name, d, started)

	switch {
	case failure != nil:
		return fmt.Errorf("%s: %w: %s", info.Name, ErrTransferFailed, failure.Message)
	case ctx.Err() != nil:
		return ctx.Err()
	}
	return nil
}

// RunAll runs every task, at most Network.MaxConcurrentDownloads at a
// time, and returns the joined errors of the ones that failed.
func (h *Host) RunAll(ctx context.Context, tasks []*task.Data) error {
	limit := h.Settings.Network.MaxConcurrentDownloads
	if limit <= 0 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)

	var mu sync.Mutex
	var errs []error
	for _, d := range tasks {
		g.Go(func() error {
			if err := h.Run(ctx, d); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// drain forwards queued events and returns the last error event, if any.
func (h *Host) drain(p *plugin.Plugin, d *task.Data) *plugin.Event {
	var failure *plugin.Event
	for e := p.Pop(); e != nil; e = p.Pop() {
		if e.Type == plugin.EventError {
			failure = e
		}
		utils.Debug("host: %s %s", p.Name(), e)
		if h.OnEvent != nil {
			h.notify.Lock()
			h.OnEvent(d, p.Name(), e)
			h.notify.Unlock()
		}
	}
	return failure
}

func (h *Host) progress(backend string, d *task.Data) {
	if h.OnProgress == nil {
		return
	}
	snap := d.Snapshot()
	h.notify.Lock()
	h.OnProgress(backend, snap)
	h.notify.Unlock()
}

func (h *Host) record(backend string, d *task.Data, started time.Time) {
	if !h.Settings.General.RecordHistory {
		return
	}
	snap := d.Snapshot()
	_, err := history.Record(history.Entry{
		ID:         snap.Common.ID,
		URL:        snap.Common.URI,
		Backend:    backend,
		Dest:       snap.Status.Path,
		Status:     string(snap.Status.State),
		Message:    snap.Status.Message,
		Total:      snap.Progress.Total,
		Completed:  snap.Progress.Complete,
		StartedAt:  started,
		FinishedAt: time.Now(),
	})
	if err != nil {
		utils.Debug("host: history: %v", err)
	}
}
