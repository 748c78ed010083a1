package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/surge-downloader/plugd/internal/host"
	"github.com/surge-downloader/plugd/internal/plugin"
	"github.com/surge-downloader/plugd/internal/task"
)

const reporterBuffer = 100

// Reporter turns host callbacks into messages for a Model. Progress
// snapshots are dropped when the UI falls behind; events and the final
// DoneMsg are not, unless the reporter is closed.
type Reporter struct {
	ch   chan tea.Msg
	quit chan struct{}
	once sync.Once
}

func NewReporter() *Reporter {
	return &Reporter{
		ch:   make(chan tea.Msg, reporterBuffer),
		quit: make(chan struct{}),
	}
}

// Messages is the channel a Model listens on.
func (r *Reporter) Messages() <-chan tea.Msg { return r.ch }

// Attach installs the reporter as h's progress and event callbacks.
func (r *Reporter) Attach(h *host.Host) {
	h.OnProgress = r.Progress
	h.OnEvent = r.Event
}

func (r *Reporter) Progress(backend string, s task.Snapshot) {
	select {
	case r.ch <- ProgressMsg{Backend: backend, Snapshot: s}:
	case <-r.quit:
	default:
	}
}

func (r *Reporter) Event(d *task.Data, backend string, e *plugin.Event) {
	r.send(EventMsg{ID: d.Snapshot().Common.ID, Backend: backend, Event: *e})
}

func (r *Reporter) Done(err error) {
	r.send(DoneMsg{Err: err})
}

// Close releases any sender blocked on a UI that has gone away.
func (r *Reporter) Close() {
	r.once.Do(func() { close(r.quit) })
}

func (r *Reporter) send(msg tea.Msg) {
	select {
	case r.ch <- msg:
	case <-r.quit:
	}
}
