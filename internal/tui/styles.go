package tui

import "github.com/charmbracelet/lipgloss"

// cellUnits converts terminal columns into gesture displacement units.
const cellUnits = 10.0

var (
	selfStyle    = lipgloss.NewStyle().Align(lipgloss.Right)
	otherStyle   = lipgloss.NewStyle().Align(lipgloss.Left)
	noticeStyle  = lipgloss.NewStyle().Align(lipgloss.Center).Italic(true).Foreground(lipgloss.Color("241"))
	quoteStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).BorderStyle(lipgloss.NormalBorder()).BorderLeft(true).PaddingLeft(1)
	typingStyle  = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("243"))
	previewStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Background(lipgloss.Color("236")).Padding(0, 1)
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)
