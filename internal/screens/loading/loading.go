package loading

import (
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/studyctl/internal/screen"
	"github.com/abhisek/studyctl/internal/ui/layout"
	"github.com/abhisek/studyctl/internal/ui/theme"
)

// LoadingScreen is shown while the participant is loaded, and again if
// that fails.
type LoadingScreen struct {
	retry tea.Cmd
	err   error
}

var _ screen.Screen = (*LoadingScreen)(nil)
var _ screen.KeyHintProvider = (*LoadingScreen)(nil)

// New creates a LoadingScreen. retry reloads the participant.
func New(retry tea.Cmd) *LoadingScreen {
	return &LoadingScreen{retry: retry}
}

func (p *LoadingScreen) Init() tea.Cmd {
	return nil
}

func (p *LoadingScreen) KeyHints() []layout.KeyHint {
	if p.err == nil {
		return []layout.KeyHint{{Key: "Ctrl+C", Description: "Quit"}}
	}
	return []layout.KeyHint{
		{Key: "R", Description: "Retry"},
		{Key: "Ctrl+C", Description: "Quit"},
	}
}

func (p *LoadingScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case screen.PhaseMsg:
		p.err = msg.Err
	case tea.KeyMsg:
		if msg.String() == "r" && p.err != nil {
			p.err = nil
			return p, p.retry
		}
	}
	return p, nil
}

func (p *LoadingScreen) View(width, height int) string {
	text := theme.Hint.Render("Connecting to the study server...")
	if p.err != nil {
		text = theme.ErrorText.Render("Could not load your study progress.") + "\n\n" +
			theme.Hint.Render(p.err.Error()) + "\n\n" +
			theme.Body.Render("Press R to try again.")
	}
	return lipgloss.NewStyle().
		Width(width).
		Height(height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(text)
}

func (p *LoadingScreen) Title() string {
	return ""
}
