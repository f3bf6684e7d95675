package done

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/studyctl/internal/lifecycle"
	"github.com/abhisek/studyctl/internal/screen"
	"github.com/abhisek/studyctl/internal/study"
	"github.com/abhisek/studyctl/internal/ui/components"
	"github.com/abhisek/studyctl/internal/ui/layout"
	"github.com/abhisek/studyctl/internal/ui/theme"
)

// DoneScreen thanks the participant once every step is complete.
type DoneScreen struct {
	snap lifecycle.Snapshot
}

var _ screen.Screen = (*DoneScreen)(nil)
var _ screen.KeyHintProvider = (*DoneScreen)(nil)

// New creates a DoneScreen from the final snapshot.
func New(snap lifecycle.Snapshot) *DoneScreen {
	return &DoneScreen{snap: snap}
}

func (s *DoneScreen) Init() tea.Cmd {
	return nil
}

func (s *DoneScreen) Title() string {
	return study.PhaseCompleted.DisplayName()
}

func (s *DoneScreen) KeyHints() []layout.KeyHint {
	return []layout.KeyHint{
		{Key: "Enter", Description: "Exit"},
	}
}

func (s *DoneScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	if kmsg, ok := msg.(tea.KeyMsg); ok {
		switch kmsg.String() {
		case "enter", "q", "esc":
			return s, tea.Quit
		}
	}
	return s, nil
}

func (s *DoneScreen) View(width, height int) string {
	var b strings.Builder

	b.WriteString(lipgloss.NewStyle().
		Width(width).
		Align(lipgloss.Center).
		Foreground(theme.Success).
		Bold(true).
		Render("Thank you for taking part!"))
	b.WriteString("\n\n")

	b.WriteString(lipgloss.NewStyle().
		Width(width).
		Align(lipgloss.Center).
		Foreground(theme.TextDim).
		Render("All study steps are complete. You can close this window."))
	b.WriteString("\n\n")

	bar := components.ProgressBar{
		Label:       "Progress",
		Percent:     float64(s.snap.CompletionPercentage) / 100,
		ShowPercent: true,
		Width:       min(width-8, 50),
		Fill:        theme.Success,
	}
	b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, bar.View()))
	b.WriteString("\n")

	if s.snap.SessionID != "" {
		b.WriteString("\n")
		b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center,
			theme.Hint.Render(fmt.Sprintf("Session %s", s.snap.SessionID))))
	}

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, b.String())
}
