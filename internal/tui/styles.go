package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorAccent = lipgloss.Color("#CC8888")
	colorHigh   = lipgloss.Color("#FF4444")
	colorHover  = lipgloss.Color("#FFAA44")
	colorWhite  = lipgloss.Color("#FFFFFF")
	colorDim    = lipgloss.Color("#6B7280")
	colorWarn   = lipgloss.Color("#F59E0B")
	colorError  = lipgloss.Color("#EF4444")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorAccent)

	ItemStyle = lipgloss.NewStyle().
			Foreground(colorWhite)

	CursorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorHover)

	ActiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorHigh)

	DimmedStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	HelpStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	WarnStyle = lipgloss.NewStyle().
			Foreground(colorWarn)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent).
			Padding(0, 1)

	SidebarStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, true, false, false).
			BorderForeground(colorDim).
			PaddingRight(1)
)
