package ui

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.Color("45")
	colorWarn    = lipgloss.Color("214")
	colorDim     = lipgloss.Color("241")

	userMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("250")).
				Bold(true)

	assistantMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252"))

	inputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorPrimary).
			Padding(0, 1)

	confirmBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(colorWarn).
			Padding(1, 2)

	statusThinkingStyle = lipgloss.NewStyle().Foreground(colorPrimary)
	statusWorkingStyle  = lipgloss.NewStyle().Foreground(colorWarn)
	statusReadyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	statusDefaultStyle  = lipgloss.NewStyle().Foreground(colorDim)
	modelNameStyle      = lipgloss.NewStyle().Foreground(colorDim)
)
