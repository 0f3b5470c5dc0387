package helpers

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("10")).
		Bold(true)

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	// HeadingStyle renders section titles.
	HeadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)

	// HintStyle renders secondary detail.
	HintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// Status renders a status word: green for ok, yellow for warn, red
// otherwise. Colors are dropped when the output is not a terminal.
func Status(word string, ok, warn bool) string {
	switch {
	case ok:
		return okStyle.Render(word)
	case warn:
		return warnStyle.Render(word)
	default:
		return failStyle.Render(word)
	}
}
