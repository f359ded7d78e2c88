package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorAccent  = lipgloss.Color("#7B68EE")
	colorSuccess = lipgloss.Color("#50C878")
	colorWarning = lipgloss.Color("#FFB347")
	colorError   = lipgloss.Color("#FF6961")
	colorMuted   = lipgloss.Color("#808080")
	colorBorder  = lipgloss.Color("#3A3A5C")
	colorTitle   = lipgloss.Color("#C4B5FD")
)

var (
	styleOK    = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	styleWarn  = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	styleErr   = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	styleDim   = lipgloss.NewStyle().Foreground(colorMuted)
	styleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorTitle)
	styleKey   = lipgloss.NewStyle().Foreground(colorAccent).Width(16)

	stylePanel = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)
)

// kv renders one aligned "key value" row.
func kv(key string, value interface{}) string {
	return styleKey.Render(key) + " " + fmt.Sprint(value)
}

func yesNo(ok bool) string {
	if ok {
		return styleOK.Render("yes")
	}
	return styleWarn.Render("no")
}
