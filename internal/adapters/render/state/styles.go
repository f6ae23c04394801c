package state

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title   lipgloss.Style
	header  lipgloss.Style
	name    lipgloss.Style
	detail  lipgloss.Style
	meta    lipgloss.Style
	section lipgloss.Style
	empty   lipgloss.Style
	final   lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:   lipgloss.NewStyle().Bold(true),
		header:  lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		name:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		detail:  lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		meta:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		section: lipgloss.NewStyle().MarginTop(1),
		empty:   lipgloss.NewStyle().Faint(true),
		final:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("114")),
	}
}
