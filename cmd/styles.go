package main

import (
	"github.com/charmbracelet/lipgloss"
)

// Styles is the CLI stylesheet. Rendering degrades to plain text when output is not a terminal.
type Styles struct {
	Header lipgloss.Style
	OK     lipgloss.Style
	Err    lipgloss.Style
	Warn   lipgloss.Style
	Muted  lipgloss.Style
	Track  lipgloss.Style
}

// NewStyles builds the default palette.
func NewStyles() Styles {
	return NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")
}

// NewPalette builds [Styles] from title, success, error, warning and muted colors.
func NewPalette(t, s, e, w, m string) Styles {
	return Styles{
		Header: newBold(t).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color(m)),
		OK:    newBold(s),
		Err:   newBold(e),
		Warn:  newStyle(w),
		Muted: newEm(m),
		Track: newStyle(t),
	}
}

func newStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func newBold(fg string) lipgloss.Style {
	return newStyle(fg).Bold(true)
}

func newEm(fg string) lipgloss.Style {
	return newStyle(fg).Italic(true)
}
