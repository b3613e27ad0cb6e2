package ui

import "github.com/charmbracelet/glamour"

// MarkdownRenderer renders assistant replies for terminal display.
type MarkdownRenderer interface {
	Render(content string, width int) (string, error)
}

// GlamourRenderer renders markdown with glamour's automatic terminal style.
type GlamourRenderer struct{}

func NewGlamourRenderer() GlamourRenderer {
	return GlamourRenderer{}
}

func (GlamourRenderer) Render(content string, width int) (string, error) {
	if width < 20 {
		width = 20
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	return renderer.Render(content)
}

// plainRenderer passes content through untouched (for tests).
type plainRenderer struct{}

func (plainRenderer) Render(content string, width int) (string, error) {
	return content, nil
}
