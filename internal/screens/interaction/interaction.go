// Package interaction implements the learning-phase screen. It renders
// the controller snapshot for either modality and forwards the
// participant's intents: navigate, scroll, send, pause and finish.
package interaction

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/studyctl/internal/content"
	"github.com/abhisek/studyctl/internal/lifecycle"
	"github.com/abhisek/studyctl/internal/screen"
	"github.com/abhisek/studyctl/internal/study"
	"github.com/abhisek/studyctl/internal/ui/components"
	"github.com/abhisek/studyctl/internal/ui/layout"
	"github.com/abhisek/studyctl/internal/ui/theme"
)

type overlay int

const (
	overlayNone overlay = iota
	overlayConfirmFinish
	overlayTimeUp
)

type pausedMsg struct{}

type enteredMsg struct{ err error }

// InteractionScreen is the learning-phase screen.
type InteractionScreen struct {
	sess screen.Session
	doc  *content.Document
	snap lifecycle.Snapshot

	vp      viewport.Model
	vpWidth int

	overlay    overlay
	noticeSeen bool
	leaving    bool
	entering   bool
	err        error

	reading reading
	chat    chat
}

var _ screen.Screen = (*InteractionScreen)(nil)
var _ screen.KeyHintProvider = (*InteractionScreen)(nil)

// New creates the interaction screen. doc is only used by the READING
// modality and may be nil otherwise.
func New(sess screen.Session, doc *content.Document) *InteractionScreen {
	s := &InteractionScreen{
		sess: sess,
		doc:  doc,
		vp:   viewport.New(viewport.WithWidth(60), viewport.WithHeight(10)),
		chat: newChat(),
	}
	s.observe(sess.Snapshot())
	return s
}

func (s *InteractionScreen) Init() tea.Cmd {
	if s.reads() {
		return s.startReading()
	}
	return s.chat.input.Init()
}

func (s *InteractionScreen) Title() string {
	return study.PhaseInteraction.DisplayName()
}

func (s *InteractionScreen) reads() bool {
	return s.snap.Modality == study.ModalityReading
}

func (s *InteractionScreen) KeyHints() []layout.KeyHint {
	switch s.overlay {
	case overlayConfirmFinish:
		return []layout.KeyHint{{Key: "Y", Description: "Finish"}, {Key: "N", Description: "Keep going"}}
	case overlayTimeUp:
		return []layout.KeyHint{{Key: "Enter", Description: "Continue"}, {Key: "Esc", Description: "Keep going"}}
	}
	if !s.snap.Ready {
		return []layout.KeyHint{{Key: "R", Description: "Retry"}, {Key: "Ctrl+C", Description: "Quit"}}
	}
	if s.reads() {
		return []layout.KeyHint{
			{Key: "←→", Description: "Page"},
			{Key: "↑↓", Description: "Scroll"},
			{Key: "P", Description: "Pause"},
			{Key: "F", Description: "Finish"},
		}
	}
	return []layout.KeyHint{
		{Key: "Enter", Description: "Send"},
		{Key: "PgUp/PgDn", Description: "Scroll"},
		{Key: "Ctrl+P", Description: "Pause"},
		{Key: "Ctrl+F", Description: "Finish"},
	}
}

// observe takes a fresh snapshot and raises the time-up notice the first
// time it is seen.
func (s *InteractionScreen) observe(snap lifecycle.Snapshot) {
	s.snap = snap
	if snap.TimeUp && !s.noticeSeen && !s.leaving {
		s.noticeSeen = true
		s.overlay = overlayTimeUp
	}
	s.chat.syncInput(snap)
}

func (s *InteractionScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case screen.RefreshMsg:
		s.observe(s.sess.Snapshot())
		return s, s.startReading()

	case screen.PhaseMsg:
		s.leaving = false
		s.err = msg.Err
		s.observe(s.sess.Snapshot())
		return s, nil

	case enteredMsg:
		s.entering = false
		s.err = msg.err
		s.observe(s.sess.Snapshot())
		return s, s.startReading()

	case pausedMsg:
		s.observe(s.sess.Snapshot())
		return s, nil

	case navigatedMsg:
		return s, s.reading.navigated(s, msg)

	case sentMsg:
		s.chat.received(msg)
		s.observe(s.sess.Snapshot())
		s.refreshTranscript()
		return s, nil

	case tea.KeyMsg:
		return s, s.handleKey(msg)
	}
	return s, nil
}

func (s *InteractionScreen) handleKey(msg tea.KeyMsg) tea.Cmd {
	key := msg.String()

	if s.leaving {
		return nil
	}

	switch s.overlay {
	case overlayConfirmFinish:
		switch key {
		case "y", "enter":
			s.overlay = overlayNone
			return s.leave()
		case "n", "esc":
			s.overlay = overlayNone
		}
		return nil
	case overlayTimeUp:
		switch key {
		case "enter":
			s.overlay = overlayNone
			return s.leave()
		case "esc":
			s.overlay = overlayNone
		}
		return nil
	}

	if !s.snap.Ready {
		if key == "r" && !s.entering {
			s.entering = true
			s.err = nil
			return s.enter()
		}
		return nil
	}

	switch key {
	case "ctrl+p":
		return s.togglePause()
	case "ctrl+f":
		s.overlay = overlayConfirmFinish
		return nil
	}

	if s.reads() {
		return s.reading.handleKey(s, msg)
	}
	return s.chat.handleKey(s, msg)
}

// leave runs the leave sequence. After the time-up signal the
// acknowledgement path is used so the completion event records it.
func (s *InteractionScreen) leave() tea.Cmd {
	s.leaving = true
	s.err = nil
	return screen.FinishCmd(s.sess, s.snap.TimeUp)
}

func (s *InteractionScreen) enter() tea.Cmd {
	sess := s.sess
	return func() tea.Msg {
		return enteredMsg{err: sess.EnterInteraction(context.Background())}
	}
}

func (s *InteractionScreen) togglePause() tea.Cmd {
	sess, paused := s.sess, !s.snap.Paused
	return func() tea.Msg {
		sess.SetPaused(context.Background(), paused)
		return pausedMsg{}
	}
}

// resize fits the viewport into the space left under the status lines.
func (s *InteractionScreen) resize(width, height, chrome int) {
	w := max(min(width-4, 100), 20)
	h := max(height-chrome, 3)
	s.vp.SetHeight(h)
	if w != s.vpWidth {
		s.vpWidth = w
		s.vp.SetWidth(w)
		if s.reads() {
			s.reading.render(s)
		} else {
			s.refreshTranscript()
		}
	}
}

func (s *InteractionScreen) View(width, height int) string {
	if !s.snap.Ready {
		return s.viewPreparing(width, height)
	}

	var top []string
	top = append(top, s.statusLine(width))
	if s.snap.TimeUp {
		top = append(top, theme.Notice.Render("Recommended time is up. You can keep going or finish when ready."))
	}
	if s.err != nil {
		top = append(top, theme.ErrorText.Render(errorLine(s.err)))
	}

	var bottom string
	if !s.reads() {
		bottom = s.chat.view(width)
	}
	chrome := len(top) + lipgloss.Height(bottom) + 2
	s.resize(width, height, chrome)

	body := s.vp.View()
	if s.snap.Paused {
		body = lipgloss.Place(s.vpWidth, s.vp.Height(), lipgloss.Center, lipgloss.Center,
			theme.Notice.Render("Paused. Press Ctrl+P to resume."))
	}

	parts := append(top, "", body)
	if bottom != "" {
		parts = append(parts, bottom)
	}
	view := lipgloss.NewStyle().PaddingLeft(2).Render(strings.Join(parts, "\n"))

	if card := s.overlayView(); card != "" {
		return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, card)
	}
	return view
}

func (s *InteractionScreen) statusLine(width int) string {
	timer := s.snap.Timer
	left := fmt.Sprintf("%s remaining", layout.FormatClock(timer.RemainingSeconds))
	if timer.Paused {
		left += " (paused)"
	}
	left = lipgloss.NewStyle().Foreground(theme.UrgencyColor(timer.Urgency)).Bold(true).Render(left)

	var right string
	if s.reads() {
		right = s.reading.status(s)
	} else {
		right = s.chat.status(s.snap)
	}
	gap := max(width-4-lipgloss.Width(left)-lipgloss.Width(right), 2)
	return left + strings.Repeat(" ", gap) + right
}

func (s *InteractionScreen) overlayView() string {
	switch {
	case s.leaving:
		return theme.Card.Render("Saving your session...")
	case s.overlay == overlayConfirmFinish:
		return theme.Card.Render(
			theme.Notice.Render("Finish the learning session now?") + "\n\n" +
				theme.Body.Render("You will move on to the post-assessment and cannot come back.") + "\n\n" +
				theme.Hint.Render("Y to finish, N to keep going"))
	case s.overlay == overlayTimeUp:
		return theme.Card.Render(
			theme.Notice.Render("The recommended time is up") + "\n\n" +
				theme.Body.Render("Continue to the post-assessment when you are ready.") + "\n\n" +
				theme.Hint.Render("Enter to continue, Esc to keep going"))
	}
	return ""
}

func (s *InteractionScreen) viewPreparing(width, height int) string {
	msg := theme.Hint.Render("Preparing your session...")
	switch {
	case s.entering:
	case s.err != nil:
		msg = theme.ErrorText.Render(errorLine(s.err)) + "\n\n" + theme.Hint.Render("Press R to retry")
	}
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, msg)
}

func errorLine(err error) string {
	var cle *study.CostLimitError
	switch {
	case errors.As(err, &cle):
		return "Message not sent: " + cle.Error()
	case study.IsFatal(err):
		return "This session can no longer be changed: " + err.Error()
	case lifecycle.IsRetryable(err):
		return "Could not reach the study server, please try again."
	}
	return err.Error()
}

// progress renders a thin bar for ratios in [0,1].
func progress(label string, ratio float64, width int) string {
	return components.ProgressBar{Label: label, Percent: ratio, ShowPercent: true, Width: width}.View()
}
