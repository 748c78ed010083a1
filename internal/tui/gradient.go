package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
)

// ApplyGradient colors each rune of text along a horizontal blend from
// start to end. Invalid colors leave text unstyled.
func ApplyGradient(text, start, end string) string {
	from, err := colorful.Hex(start)
	if err != nil {
		return text
	}
	to, err := colorful.Hex(end)
	if err != nil {
		return text
	}

	runes := []rune(text)
	var b strings.Builder
	for i, r := range runes {
		t := 0.0
		if len(runes) > 1 {
			t = float64(i) / float64(len(runes)-1)
		}
		c := from.BlendLab(to, t).Clamped()
		b.WriteString(lipgloss.NewStyle().
			Foreground(lipgloss.Color(c.Hex())).
			Bold(true).
			Render(string(r)))
	}
	return b.String()
}
