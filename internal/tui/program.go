package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/surge-downloader/plugd/internal/host"
	"github.com/surge-downloader/plugd/internal/task"
)

// Run transfers tasks with h while drawing their progress, and returns
// the joined task errors. Leaving the UI early stops the remaining
// transfers and waits for them.
func Run(ctx context.Context, h *host.Host, tasks []*task.Data, opts ...tea.ProgramOption) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rep := NewReporter()
	rep.Attach(h)
	defer rep.Close()

	snaps := make([]task.Snapshot, len(tasks))
	for i, d := range tasks {
		snaps[i] = d.Snapshot()
	}

	done := make(chan error, 1)
	go func() {
		err := h.RunAll(ctx, tasks)
		done <- err
		rep.Done(err)
	}()

	_, uiErr := tea.NewProgram(NewModel(snaps, cancel, rep.Messages()), opts...).Run()
	cancel()
	rep.Close()
	err := <-done
	if uiErr != nil {
		return uiErr
	}
	return err
}
