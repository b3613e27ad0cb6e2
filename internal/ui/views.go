package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// View renders the transcript, the input bar and the status line, with the
// confirmation box overlaid when a decision is pending.
func (m model) View() string {
	if m.pendingConfirm != "" {
		box := confirmBoxStyle.Render(
			m.pendingConfirm + "\n\n" +
				statusDefaultStyle.Render("y: allow  n: deny"),
		)
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderChat(),
		inputStyle.Render(m.input.View()),
		m.renderStatus(),
	)
}

func (m model) renderChat() string {
	if len(m.messages) == 0 {
		return statusDefaultStyle.Render("No messages yet. Describe what you want done.")
	}
	return m.viewport.View()
}

func (m model) renderStatus() string {
	var left string
	switch m.statusPhase {
	case "thinking":
		left = statusThinkingStyle.Render(m.spinner.View() + " " + m.statusMessage)
	case "executing":
		left = statusWorkingStyle.Render(m.spinner.View() + " " + m.statusMessage)
	case "ready":
		left = statusReadyStyle.Render("● Ready")
	case "error":
		left = statusWorkingStyle.Render("✗ " + m.statusMessage)
	default:
		left = statusDefaultStyle.Render(m.statusMessage)
	}

	if m.modelName != "" {
		return fmt.Sprintf("%s  %s", left, modelNameStyle.Render(m.modelName))
	}
	return left
}
