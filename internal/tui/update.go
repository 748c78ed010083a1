package tui

import (
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/surge-downloader/plugd/internal/plugin"
	"github.com/surge-downloader/plugd/internal/task"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		for _, r := range m.rows {
			r.progress.Width = barWidth(m.width)
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.stopping {
				// Second request: leave without waiting for engines.
				return m, tea.Quit
			}
			m.stopping = true
			if m.cancel != nil {
				m.cancel()
			}
		}
		return m, nil

	case ProgressMsg:
		s := msg.Snapshot
		r := m.row(s.Common.ID, s.Common.URI)
		r.backend = msg.Backend
		r.state = s.Status.State
		r.stats = s.Progress
		if s.Status.Path != "" {
			r.name = displayName(s.Common.URI, s.Status.Path)
		}
		pct := 0.0
		switch {
		case s.Status.State == task.StateCompleted:
			pct = 1
		case s.Progress.Total > 0:
			pct = float64(s.Progress.Complete) / float64(s.Progress.Total)
		}
		cmds = append(cmds, r.progress.SetPercent(pct))
		cmds = append(cmds, listenForActivity(m.sub))

	case EventMsg:
		if r, ok := m.index[msg.ID]; ok {
			r.backend = msg.Backend
			if msg.Event.Message != "" || msg.Event.Type != plugin.EventNormal {
				r.last = msg.Event.Type
				r.message = msg.Event.Message
			}
		}
		cmds = append(cmds, listenForActivity(m.sub))

	case DoneMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit

	case progress.FrameMsg:
		for _, r := range m.rows {
			updated, cmd := r.progress.Update(msg)
			if p, ok := updated.(progress.Model); ok {
				r.progress = p
			}
			if cmd != nil {
				cmds = append(cmds, cmd)
			}
		}
	}

	return m, tea.Batch(cmds...)
}
