package main

import "github.com/charmbracelet/lipgloss"

// Terminal styles. lipgloss drops colors when output is not a terminal.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	summaryStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
)

// Status labels used by doctor.
var (
	labelOK    = okStyle.Render("[OK]")
	labelWarn  = warnStyle.Render("[WARN]")
	labelError = errorStyle.Render("[ERROR]")
)
