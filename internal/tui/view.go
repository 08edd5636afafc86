package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
)

// View renders the current screen.
func (m Model) View() string {
	width, height := m.width, m.height
	if width <= 0 {
		width = 80
	}
	if height <= 0 {
		height = 24
	}

	if m.blocking != "" {
		box := blockingStyle.Render(m.blocking + "\n\n" + faintStyle.Render("press any key to return to your boards"))
		return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
	}

	var body string
	if m.screen == screenBoard {
		body = m.viewBoard()
	} else {
		body = m.viewBoards()
	}
	return body + "\n\n" + m.viewFooter(width)
}

func (m Model) viewFooter(width int) string {
	var lines []string
	switch {
	case m.inputKind != inputNone:
		lines = append(lines, m.input.View(), faintStyle.Render("enter: save  esc: cancel"))
		return strings.Join(lines, "\n")
	case m.confirm != "":
		return titleStyle.Render(m.confirm)
	}

	if m.notice != "" {
		style := errorStyle
		if m.noticeOK {
			style = noticeStyle
		}
		lines = append(lines, style.Render(truncate(m.notice, width)))
	}

	var bindings []key.Binding
	if m.screen == screenBoard {
		bindings = []key.Binding{m.keys.New, m.keys.Edit, m.keys.Advance, m.keys.Delete,
			m.keys.Open, m.keys.Members, m.keys.Code, m.keys.Reload, m.keys.Back, m.keys.Quit}
	} else {
		bindings = []key.Binding{m.keys.Open, m.keys.New, m.keys.Join, m.keys.Delete,
			m.keys.Reload, m.keys.Quit}
	}
	lines = append(lines, faintStyle.Render(truncate(helpLine(bindings), width)))
	return strings.Join(lines, "\n")
}

func helpLine(bindings []key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+": "+h.Desc)
	}
	return strings.Join(parts, "  ")
}
