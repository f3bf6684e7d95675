// Package step implements the screens for the phases outside the
// interaction: consent and the two assessments. Each asks the participant
// to confirm the step and then advances the controller.
package step

import (
	"errors"
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

type copyText struct {
	heading string
	body    string
	confirm string
	detail  string
}

var copies = map[study.Phase]copyText{
	study.PhaseConsent: {
		heading: "Informed consent",
		body: "This study compares two ways of learning the same material. " +
			"You will answer a short questionnaire, spend about thirty minutes " +
			"with the material, and answer a second questionnaire. " +
			"Your activity during the session is recorded anonymously. " +
			"You may stop at any time.",
		confirm: "I agree to take part",
		detail:  "Records your consent and moves on to the pre-assessment",
	},
	study.PhasePreAssessment: {
		heading: "Pre-assessment",
		body: "Please complete the pre-assessment questionnaire you received " +
			"from the study team. Confirm here once you have submitted it.",
		confirm: "I have completed the pre-assessment",
		detail:  "Starts the learning session and its countdown",
	},
	study.PhasePostAssessment: {
		heading: "Post-assessment",
		body: "Thank you for completing the learning session. Please complete " +
			"the post-assessment questionnaire, then confirm here.",
		confirm: "I have completed the post-assessment",
		detail:  "Completes your participation",
	},
}

// StepScreen confirms one non-interactive phase.
type StepScreen struct {
	sess   screen.Session
	phase  study.Phase
	target study.Phase
	menu   components.Menu
	busy   bool
	err    error
}

var _ screen.Screen = (*StepScreen)(nil)
var _ screen.KeyHintProvider = (*StepScreen)(nil)

// New creates the screen for phase, which must have a successor.
func New(sess screen.Session, phase study.Phase) *StepScreen {
	target, _ := phase.Next()
	s := &StepScreen{sess: sess, phase: phase, target: target}
	c := copies[phase]
	s.menu = components.NewMenu([]components.MenuItem{
		{Label: c.confirm, Description: c.detail, Action: s.advance},
	})
	return s
}

// Phase returns the phase this screen confirms.
func (s *StepScreen) Phase() study.Phase {
	return s.phase
}

func (s *StepScreen) Init() tea.Cmd {
	return nil
}

func (s *StepScreen) Title() string {
	return s.phase.DisplayName()
}

func (s *StepScreen) KeyHints() []layout.KeyHint {
	if s.busy {
		return []layout.KeyHint{{Key: "Ctrl+C", Description: "Quit"}}
	}
	return []layout.KeyHint{
		{Key: "Enter", Description: "Confirm"},
		{Key: "Ctrl+C", Description: "Quit"},
	}
}

func (s *StepScreen) advance() tea.Cmd {
	s.busy = true
	s.err = nil
	s.menu.SetDisabled(true)
	return screen.AdvanceCmd(s.sess, s.phase, s.target)
}

func (s *StepScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case screen.PhaseMsg:
		s.busy = false
		s.menu.SetDisabled(false)
		s.err = msg.Err
		return s, nil
	case tea.KeyMsg:
		if s.busy {
			return s, nil
		}
		var cmd tea.Cmd
		s.menu, cmd = s.menu.Update(msg)
		return s, cmd
	}
	return s, nil
}

func (s *StepScreen) View(width, height int) string {
	c := copies[s.phase]
	textWidth := min(width-8, 70)

	var b strings.Builder
	b.WriteString(theme.Title.Width(width).Render(c.heading))
	b.WriteString("\n\n")
	b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center,
		theme.Body.Width(textWidth).Render(c.body)))
	b.WriteString("\n\n")
	b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center,
		lipgloss.NewStyle().Width(textWidth).Render(s.menu.View())))

	switch {
	case s.busy:
		b.WriteString("\n" + theme.Hint.Width(width).Align(lipgloss.Center).Render("Saving..."))
	case s.err != nil:
		b.WriteString("\n" + theme.ErrorText.Width(width).Align(lipgloss.Center).Render(errorLine(s.err)))
	}
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, b.String())
}

func errorLine(err error) string {
	var te *study.TransitionError
	if errors.As(err, &te) {
		return "That step is not available yet. Please restart studyctl."
	}
	if lifecycle.IsRetryable(err) {
		return "Could not reach the study server. Press Enter to try again."
	}
	return err.Error()
}
