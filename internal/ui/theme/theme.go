package theme

import (
	"image/color"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/studyctl/internal/deadline"
)

// Color palette, muted so long reading stays comfortable.
var (
	Primary   = lipgloss.Color("#6366F1") // Indigo
	Secondary = lipgloss.Color("#14B8A6") // Teal
	Accent    = lipgloss.Color("#F59E0B") // Amber
	Success   = lipgloss.Color("#22C55E") // Green
	Error     = lipgloss.Color("#F43F5E") // Rose
	Text      = lipgloss.Color("#F8FAFC") // White
	TextDim   = lipgloss.Color("#94A3B8") // Slate
	BgDark    = lipgloss.Color("#0F172A") // Deep Navy
	BgCard    = lipgloss.Color("#1E293B") // Dark Slate
	Border    = lipgloss.Color("#334155") // Slate
)

// Typography
var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary).
		Align(lipgloss.Center)

	Subtitle = lipgloss.NewStyle().
			Foreground(TextDim).
			Align(lipgloss.Center)

	Body = lipgloss.NewStyle().
		Foreground(Text)

	Hint = lipgloss.NewStyle().
		Foreground(TextDim).
		Italic(true)

	Notice = lipgloss.NewStyle().
		Foreground(Accent).
		Bold(true)

	ErrorText = lipgloss.NewStyle().
			Foreground(Error)
)

// Layout
var (
	Card = lipgloss.NewStyle().
		Background(BgCard).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Border).
		Padding(1, 2)
)

// Chat
var (
	UserLabel = lipgloss.NewStyle().
			Foreground(Secondary).
			Bold(true)

	AssistantLabel = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)
)

// UrgencyColor maps countdown urgency onto the palette.
func UrgencyColor(u deadline.Urgency) color.Color {
	switch u {
	case deadline.UrgencyUrgent:
		return Error
	case deadline.UrgencyWarning:
		return Accent
	case deadline.UrgencyElevated:
		return Secondary
	default:
		return TextDim
	}
}
