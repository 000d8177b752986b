// Package styles is the shared palette. REST is always blue and GraphQL
// always pink so the two adapters read the same in every view.
package styles

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	ColorAccent    = lipgloss.Color("#7D56F4")
	ColorOK        = lipgloss.Color("#04B575")
	ColorError     = lipgloss.Color("#FF5F87")
	ColorWarning   = lipgloss.Color("#FFAF00")
	ColorText      = lipgloss.Color("#FAFAFA")
	ColorSubtle    = lipgloss.Color("#767676")
	ColorBorder    = lipgloss.Color("#3C3C3C")
	ColorHighlight = lipgloss.Color("#3E3E3E")
	ColorBanner    = ColorAccent

	ColorREST    = lipgloss.Color("#2D7DD2")
	ColorGraphQL = lipgloss.Color("#E535AB")
)

var (
	Panel = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Padding(1, 2)

	Title = lipgloss.NewStyle().
		Foreground(ColorAccent).
		Bold(true).
		Padding(0, 1).
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(ColorSubtle)

	// Card around one metric group
	Box = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Padding(0, 1).
		Margin(0, 1)

	Text    = lipgloss.NewStyle().Foreground(ColorText)
	Subtle  = lipgloss.NewStyle().Foreground(ColorSubtle)
	Active  = lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
	Success = lipgloss.NewStyle().Foreground(ColorOK).Bold(true)
	Warn    = lipgloss.NewStyle().Foreground(ColorWarning)
	Error   = lipgloss.NewStyle().Foreground(ColorError)

	REST    = lipgloss.NewStyle().Foreground(ColorREST).Bold(true)
	GraphQL = lipgloss.NewStyle().Foreground(ColorGraphQL).Bold(true)

	TabBase = lipgloss.NewStyle().
		Foreground(ColorSubtle).
		Padding(0, 2)
	TabActive = TabBase.
			Foreground(ColorAccent).
			Bold(true).
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(ColorAccent)

	FooterBase = lipgloss.NewStyle().Height(1).Padding(0, 1)

	keyName = lipgloss.NewStyle().Foreground(ColorText).Bold(true)
	keyHelp = lipgloss.NewStyle().Foreground(ColorSubtle)
)

// ForProtocol picks the adapter style by name ("rest" or "graphql").
func ForProtocol(name string) lipgloss.Style {
	if name == "graphql" {
		return GraphQL
	}
	return REST
}

// RenderKey renders a key hint like "<Tab> View".
func RenderKey(key, desc string) string {
	return keyName.Render("<"+key+">") + " " + keyHelp.Render(desc)
}
