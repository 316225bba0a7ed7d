package tui

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	primaryColor = lipgloss.Color("#7C3AED") // Purple
	okColor      = lipgloss.Color("#10B981") // Green
	mutedColor   = lipgloss.Color("#6B7280") // Gray
	accentColor  = lipgloss.Color("#F59E0B") // Amber
	errorColor   = lipgloss.Color("#EF4444") // Red
	fgColor      = lipgloss.Color("#F9FAFB") // Light

	// Layout styles
	AppStyle    = lipgloss.NewStyle().Padding(1, 2)
	HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(primaryColor).MarginBottom(1)

	// Dialog panel
	DialogStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(primaryColor).Padding(1, 2)

	// Form field styles
	LabelStyle        = lipgloss.NewStyle().Foreground(accentColor).Bold(true).Width(14)
	ValueStyle        = lipgloss.NewStyle().Foreground(fgColor)
	FocusedLabelStyle = lipgloss.NewStyle().Foreground(primaryColor).Bold(true).Width(14)
	LockedStyle       = lipgloss.NewStyle().Foreground(mutedColor).Faint(true)
	ErrorStyle        = lipgloss.NewStyle().Foreground(errorColor)

	// Attendee list
	AttendeeStyle    = lipgloss.NewStyle().Foreground(fgColor).Padding(0, 1)
	SelectedRowStyle = lipgloss.NewStyle().Background(primaryColor).Foreground(fgColor).Bold(true).Padding(0, 1)
	StatusGoingStyle = lipgloss.NewStyle().Foreground(okColor)
	StatusNoStyle    = lipgloss.NewStyle().Foreground(errorColor)
	StatusMaybeStyle = lipgloss.NewStyle().Foreground(accentColor)

	// Confirm prompt and save feedback
	PromptStyle  = lipgloss.NewStyle().Foreground(accentColor).Bold(true)
	SavedStyle   = lipgloss.NewStyle().Foreground(okColor).Bold(true)
	WarningStyle = lipgloss.NewStyle().Foreground(accentColor)

	// Help bar
	HelpStyle    = lipgloss.NewStyle().Foreground(mutedColor).MarginTop(1)
	HelpKeyStyle = lipgloss.NewStyle().Foreground(primaryColor).Bold(true)
)
