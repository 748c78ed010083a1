package plugin

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/surge-downloader/plugd/internal/task"
)

// fakeBackend is a minimal engine: its worker ticks until it has produced
// steps units of progress or is stopped.
type fakeBackend struct {
	Worker

	steps    int64
	tick     time.Duration
	complete atomic.Int64
	starts   atomic.Int32
	speed    atomic.Pointer[Speed]
	accepted atomic.Int32
}

func (b *fakeBackend) Accept(p *Plugin, data *task.Data) bool {
	snap := data.Snapshot()
	if snap.Common.URI == "" || snap.Common.Folder == "" {
		return false
	}
	b.accepted.Add(1)
	return true
}

func (b *fakeBackend) Sync(p *Plugin, data *task.Data) bool {
	running := b.Running()
	data.UpdateProgress(task.Progress{Complete: b.complete.Load(), Total: b.steps})
	return running
}

func (b *fakeBackend) Ctrl(p *Plugin, code CtrlCode, data any) bool {
	if code == CtrlSpeed {
		s := data.(Speed)
		b.speed.Store(&s)
		return true
	}
	return b.Dispatch(code, data, func(ctx context.Context) { b.run(ctx, p) })
}

func (b *fakeBackend) run(ctx context.Context, p *Plugin) {
	b.starts.Add(1)
	p.Post(NewEvent(EventStart, CodeNone, "fake", "started"))
	ticker := time.NewTicker(b.tick)
	defer ticker.Stop()
	for b.complete.Load() < b.steps {
		select {
		case <-ctx.Done():
			p.Post(NewEvent(EventStop, CodeNone, "fake", "stopped"))
			return
		case <-ticker.C:
			b.complete.Add(1)
		}
	}
	p.Post(NewEvent(EventCompleted, CodeNone, "fake", "done"))
}

// fakeInfo returns a descriptor whose Final hook counts invocations.
func fakeInfo(finals *atomic.Int32, steps int64) *Info {
	return &Info{
		Name: "fake",
		Init: func(p *Plugin) (Backend, error) {
			return &fakeBackend{steps: steps, tick: time.Millisecond}, nil
		},
		Final: func(b Backend) {
			fb := b.(*fakeBackend)
			fb.Stop()
			<-fb.Done()
			if finals != nil {
				finals.Add(1)
			}
		},
		Hosts:   []string{"h"},
		Schemes: []string{"http"},
	}
}

var errInit = errors.New("init refused")
