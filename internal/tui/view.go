package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/surge-downloader/plugd/internal/plugin"
	"github.com/surge-downloader/plugd/internal/task"
	"github.com/surge-downloader/plugd/internal/utils"
)

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(LogoStyle.Render(ApplyGradient("plugd", ProgressStart, ProgressEnd)))
	b.WriteString("\n")

	for _, r := range m.rows {
		b.WriteString(renderRow(r))
		b.WriteString("\n")
	}

	switch {
	case m.done:
	case m.stopping:
		b.WriteString(HelpStyle.Render("stopping... press q again to leave now"))
	default:
		b.WriteString(HelpStyle.Render("q: stop all"))
	}
	return b.String() + "\n"
}

func renderRow(r *row) string {
	header := NameStyle.Render(r.name)
	if r.backend != "" {
		header += " " + BackendStyle.Render("["+r.backend+"]")
	}
	header += " " + stateStyle(r.state).Render(string(r.state))

	s := r.stats
	size := utils.ConvertBytesToHumanReadable(s.Complete)
	if s.Total > 0 {
		size += " / " + utils.ConvertBytesToHumanReadable(s.Total)
	}
	stats := fmt.Sprintf("%s  %s  eta %s",
		StatsValueStyle.Render(size),
		utils.FormatSpeed(s.DownloadSpeed),
		utils.FormatETA(s.Left))
	if s.Uploaded > 0 || s.UploadSpeed > 0 {
		stats += fmt.Sprintf("  up %s %s",
			utils.ConvertBytesToHumanReadable(s.Uploaded),
			utils.FormatSpeed(s.UploadSpeed))
	}

	lines := []string{header, r.progress.View(), DimStyle.Render(stats)}
	if r.message != "" {
		lines = append(lines, eventStyle(r.last).Render(r.message))
	}
	return PaneStyle.Render(strings.Join(lines, "\n"))
}

func stateStyle(s task.State) lipgloss.Style {
	switch s {
	case task.StateActive:
		return LogStyleStarted
	case task.StateCompleted:
		return LogStyleComplete
	case task.StateError:
		return LogStyleError
	case task.StatePaused:
		return LogStylePaused
	}
	return DimStyle
}

func eventStyle(t plugin.EventType) lipgloss.Style {
	switch t {
	case plugin.EventError:
		return LogStyleError
	case plugin.EventWarning, plugin.EventStop:
		return LogStylePaused
	case plugin.EventCompleted, plugin.EventUploading:
		return LogStyleComplete
	}
	return DimStyle
}
