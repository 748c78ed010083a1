// Package tui renders live transfer progress for the get command.
package tui

import (
	"context"
	"path/filepath"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/surge-downloader/plugd/internal/plugin"
	"github.com/surge-downloader/plugd/internal/task"
)

const (
	defaultWidth = 80
	maxBarWidth  = 60
)

// ProgressMsg carries a snapshot taken after a Sync.
type ProgressMsg struct {
	Backend  string
	Snapshot task.Snapshot
}

// EventMsg carries one event popped from an instance.
type EventMsg struct {
	ID      string
	Backend string
	Event   plugin.Event
}

// DoneMsg is sent once every task has finished.
type DoneMsg struct {
	Err error
}

type row struct {
	id      string
	uri     string
	backend string
	name    string

	state    task.State
	stats    task.Progress
	last     plugin.EventType
	message  string
	progress progress.Model
}

// Model is the bubbletea model for a batch of transfers.
type Model struct {
	rows  []*row
	index map[string]*row

	width    int
	stopping bool
	done     bool
	err      error

	cancel context.CancelFunc
	sub    <-chan tea.Msg
}

// NewModel returns a model listing tasks as queued. cancel is called when
// the user asks to stop; sub is the channel the Reporter feeds.
func NewModel(tasks []task.Snapshot, cancel context.CancelFunc, sub <-chan tea.Msg) Model {
	m := Model{
		index:  make(map[string]*row),
		width:  defaultWidth,
		cancel: cancel,
		sub:    sub,
	}
	for _, s := range tasks {
		m.row(s.Common.ID, s.Common.URI)
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return listenForActivity(m.sub)
}

// listenForActivity waits for the next message from the reporter.
func listenForActivity(sub <-chan tea.Msg) tea.Cmd {
	if sub == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-sub
		if !ok {
			return nil
		}
		return msg
	}
}

// Err returns the batch error delivered by DoneMsg.
func (m Model) Err() error { return m.err }

func (m *Model) row(id, uri string) *row {
	if r, ok := m.index[id]; ok {
		return r
	}
	r := &row{
		id:    id,
		uri:   uri,
		name:  displayName(uri, ""),
		state: task.StateQueued,
		progress: progress.New(
			progress.WithGradient(ProgressStart, ProgressEnd),
			progress.WithWidth(barWidth(m.width)),
		),
	}
	m.rows = append(m.rows, r)
	m.index[id] = r
	return r
}

func displayName(uri, path string) string {
	if path != "" {
		return filepath.Base(path)
	}
	if len(uri) > 48 {
		return uri[:45] + "..."
	}
	return uri
}

func barWidth(width int) int {
	w := width - 4
	if w > maxBarWidth {
		w = maxBarWidth
	}
	if w < 10 {
		w = 10
	}
	return w
}
