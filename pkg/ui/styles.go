package ui

import "github.com/charmbracelet/lipgloss"

var (
	accent  = lipgloss.Color("#00D7D7")
	okColor = lipgloss.Color("#5FD75F")
	bad     = lipgloss.Color("#FF5F5F")
	warn    = lipgloss.Color("#FFAF00")
	muted   = lipgloss.Color("#8A8A8A")

	titleStyle = lipgloss.NewStyle().
			Foreground(accent).
			Bold(true)

	headerStyle = lipgloss.NewStyle().
			Foreground(accent).
			Bold(true).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().
			Padding(0, 1)

	numberStyle = cellStyle.
			Align(lipgloss.Right)

	borderStyle = lipgloss.NewStyle().
			Foreground(muted)

	successStyle = lipgloss.NewStyle().
			Foreground(okColor).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(bad).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(warn)

	dimStyle = lipgloss.NewStyle().
			Foreground(muted)
)
