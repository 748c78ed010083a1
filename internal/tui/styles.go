package tui

import "github.com/charmbracelet/lipgloss"

// Palette. Light values keep contrast on white terminals.
var (
	ColorNeonPurple = lipgloss.AdaptiveColor{Light: "#5d40c9", Dark: "#bd93f9"}
	ColorNeonPink   = lipgloss.AdaptiveColor{Light: "#d10074", Dark: "#ff79c6"}
	ColorNeonCyan   = lipgloss.AdaptiveColor{Light: "#0073a8", Dark: "#8be9fd"}
	ColorGray       = lipgloss.AdaptiveColor{Light: "#d0d0d0", Dark: "#44475a"}
	ColorLightGray  = lipgloss.AdaptiveColor{Light: "#4a4a4a", Dark: "#a9b1d6"}
	ColorWhite      = lipgloss.AdaptiveColor{Light: "#1a1a1a", Dark: "#f8f8f2"}

	ColorStateError       = lipgloss.AdaptiveColor{Light: "#d32f2f", Dark: "#ff5555"}
	ColorStatePaused      = lipgloss.AdaptiveColor{Light: "#f57c00", Dark: "#ffb86c"}
	ColorStateDownloading = lipgloss.AdaptiveColor{Light: "#2e7d32", Dark: "#50fa7b"}
	ColorStateDone        = lipgloss.AdaptiveColor{Light: "#7b1fa2", Dark: "#bd93f9"}
)

// Progress bar gradient ends. The bar takes plain hex values.
const (
	ProgressStart = "#ff79c6"
	ProgressEnd   = "#bd93f9"
)

var (
	LogoStyle = lipgloss.NewStyle().
			Bold(true).
			MarginBottom(1)

	PaneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorGray).
			Padding(0, 1)

	NameStyle = lipgloss.NewStyle().
			Foreground(ColorWhite).
			Bold(true)

	BackendStyle = lipgloss.NewStyle().
			Foreground(ColorNeonCyan)

	StatsValueStyle = lipgloss.NewStyle().
			Foreground(ColorNeonPink).
			Bold(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(ColorLightGray)

	HelpStyle = lipgloss.NewStyle().
			Foreground(ColorLightGray).
			MarginTop(1)

	// Event lines
	LogStyleStarted = lipgloss.NewStyle().
			Foreground(ColorStateDownloading)

	LogStyleComplete = lipgloss.NewStyle().
				Foreground(ColorStateDone)

	LogStyleError = lipgloss.NewStyle().
			Foreground(ColorStateError)

	LogStylePaused = lipgloss.NewStyle().
			Foreground(ColorStatePaused)
)
