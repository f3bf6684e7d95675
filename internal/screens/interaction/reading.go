package interaction

import (
	"fmt"
	"math"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/studyctl/internal/ui/theme"
)

type navigatedMsg struct {
	unit int
	err  error
}

// reading is the READING modality part of the screen.
type reading struct {
	unit       int
	navigating bool
	lastDepth  int
}

// startReading opens the first unit once the session is ready.
func (s *InteractionScreen) startReading() tea.Cmd {
	if !s.reads() || !s.snap.Ready || s.reading.unit != 0 || s.reading.navigating {
		return nil
	}
	if s.snap.CurrentUnit > 0 {
		s.reading.unit = s.snap.CurrentUnit
		s.reading.render(s)
		return nil
	}
	return s.reading.navigate(s, 1)
}

func (r *reading) navigate(s *InteractionScreen, unit int) tea.Cmd {
	if s.doc == nil || unit < 1 || unit > s.doc.Len() || r.navigating {
		return nil
	}
	r.navigating = true
	sess := s.sess
	return func() tea.Msg {
		return navigatedMsg{unit: unit, err: sess.Navigate(unit)}
	}
}

func (r *reading) navigated(s *InteractionScreen, msg navigatedMsg) tea.Cmd {
	r.navigating = false
	if msg.err != nil {
		s.err = msg.err
		return nil
	}
	s.err = nil
	r.unit = msg.unit
	r.lastDepth = -1
	r.render(s)
	s.vp.GotoTop()
	s.observe(s.sess.Snapshot())
	return nil
}

func (r *reading) render(s *InteractionScreen) {
	if s.doc == nil {
		return
	}
	u, ok := s.doc.Unit(r.unit)
	if !ok {
		return
	}
	w := max(s.vpWidth, 20)
	text := theme.Subtitle.Align(lipgloss.Left).Bold(true).Render(u.Title) + "\n\n" +
		theme.Body.Width(w).Render(u.Body)
	s.vp.SetContent(text)
}

func (r *reading) handleKey(s *InteractionScreen, msg tea.KeyMsg) tea.Cmd {
	if s.snap.Paused {
		if msg.String() == "p" {
			return s.togglePause()
		}
		return nil
	}
	switch msg.String() {
	case "p":
		return s.togglePause()
	case "f":
		s.overlay = overlayConfirmFinish
		return nil
	case "left", "h":
		return r.navigate(s, r.unit-1)
	case "right", "l":
		return r.navigate(s, r.unit+1)
	}

	var cmd tea.Cmd
	s.vp, cmd = s.vp.Update(msg)
	r.recordScroll(s)
	return cmd
}

// recordScroll reports the viewport position as a percentage. The tracker
// debounces, so every movement can be forwarded.
func (r *reading) recordScroll(s *InteractionScreen) {
	if r.unit == 0 {
		return
	}
	depth := int(math.Round(s.vp.ScrollPercent() * 100))
	if depth == r.lastDepth {
		return
	}
	r.lastDepth = depth
	if err := s.sess.Scroll(depth); err != nil {
		s.err = err
	}
}

func (r *reading) status(s *InteractionScreen) string {
	total := 0
	if s.doc != nil {
		total = s.doc.Len()
	}
	page := theme.Hint.Render(fmt.Sprintf("Page %d of %d", r.unit, total))
	return page + "  " + progress("Read", s.snap.Tracker.ReadingProgress/100, 30)
}
