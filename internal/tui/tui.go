// Package tui is the terminal front end of a study session. It renders
// the lifecycle controller's snapshot and swaps the active screen
// whenever the phase changes.
package tui

import (
	"context"
	"fmt"
	"image/color"
	"os"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/studyctl/internal/content"
	"github.com/abhisek/studyctl/internal/lifecycle"
	"github.com/abhisek/studyctl/internal/router"
	"github.com/abhisek/studyctl/internal/screen"
	"github.com/abhisek/studyctl/internal/screens/done"
	"github.com/abhisek/studyctl/internal/screens/interaction"
	"github.com/abhisek/studyctl/internal/screens/loading"
	"github.com/abhisek/studyctl/internal/screens/step"
	"github.com/abhisek/studyctl/internal/study"
	"github.com/abhisek/studyctl/internal/ui/layout"
	"github.com/abhisek/studyctl/internal/ui/theme"
)

// Controller is what the UI needs from *lifecycle.Controller.
type Controller interface {
	screen.Session
	Load(ctx context.Context) (study.Phase, error)
	Unload()
}

var _ Controller = (*lifecycle.Controller)(nil)

// Changes coalesces controller change notifications for the UI loop.
type Changes chan struct{}

// NewChanges returns a Changes with room for one pending notification.
func NewChanges() Changes {
	return make(Changes, 1)
}

// Notify records a change without blocking. Use it as the controller's
// OnChange callback.
func (c Changes) Notify() {
	select {
	case c <- struct{}{}:
	default:
	}
}

// AppModel is the root Bubble Tea model.
type AppModel struct {
	ctrl    Controller
	doc     *content.Document
	changes Changes
	router  *router.Router
	shown   study.Phase
	fatal   error
	width   int
	height  int
}

// newAppModel creates the root model showing the loading screen.
func newAppModel(ctrl Controller, doc *content.Document, changes Changes) AppModel {
	m := AppModel{ctrl: ctrl, doc: doc, changes: changes}
	m.router = router.New(loading.New(m.load()))
	return m
}

func (m AppModel) Init() tea.Cmd {
	return tea.Batch(m.load(), m.listen())
}

func (m AppModel) load() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		phase, err := ctrl.Load(context.Background())
		return screen.PhaseMsg{Phase: phase, Err: err}
	}
}

// listen waits for the next controller change.
func (m AppModel) listen() tea.Cmd {
	if m.changes == nil {
		return nil
	}
	changes := m.changes
	return func() tea.Msg {
		if _, ok := <-changes; !ok {
			return nil
		}
		return screen.RefreshMsg{}
	}
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || m.fatal != nil {
			return m, tea.Quit
		}

	case screen.RefreshMsg:
		swap := m.sync()
		return m, tea.Batch(swap, m.router.Update(msg), m.listen())

	case screen.PhaseMsg:
		if study.IsFatal(msg.Err) {
			m.fatal = msg.Err
			return m, nil
		}
		swap := m.sync()
		return m, tea.Batch(swap, m.router.Update(msg))
	}

	cmd := m.router.Update(msg)
	return m, cmd
}

// sync replaces the active screen when the controller's phase differs
// from the one on display.
func (m *AppModel) sync() tea.Cmd {
	snap := m.ctrl.Snapshot()
	if snap.Phase == "" || snap.Phase == m.shown {
		return nil
	}
	m.shown = snap.Phase
	return m.router.Replace(m.screenFor(snap))
}

func (m *AppModel) screenFor(snap lifecycle.Snapshot) screen.Screen {
	switch snap.Phase {
	case study.PhaseInteraction:
		return interaction.New(m.ctrl, m.doc)
	case study.PhaseCompleted:
		return done.New(snap)
	default:
		return step.New(m.ctrl, snap.Phase)
	}
}

func (m AppModel) View() tea.View {
	v := tea.NewView("")
	v.AltScreen = true
	if frame := m.render(); frame != "" {
		v.SetContent(frame)
	}
	return v
}

// render draws the full frame, or nothing before the first size message.
func (m AppModel) render() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	if layout.IsTooSmall(m.width, m.height) {
		return layout.RenderMinSizeMessage(m.width, m.height)
	}

	snap := m.ctrl.Snapshot()
	active := m.router.Active()
	title := ""
	if active != nil {
		title = active.Title()
	}

	status, statusColor := headerStatus(snap)
	header := layout.RenderHeader(title, status, statusColor, m.width)

	footerHints := []layout.KeyHint{{Key: "Ctrl+C", Description: "Quit"}}
	if p, ok := active.(screen.KeyHintProvider); ok {
		footerHints = p.KeyHints()
	}
	if m.fatal != nil {
		footerHints = []layout.KeyHint{{Key: "Any key", Description: "Quit"}}
	}
	footer := layout.RenderFooter(footerHints, m.width)

	contentHeight := max(m.height-lipgloss.Height(header)-lipgloss.Height(footer), 0)

	var body string
	if m.fatal != nil {
		body = renderFatal(m.fatal, m.width, contentHeight)
	} else {
		body = m.router.View(m.width, contentHeight)
	}
	return layout.RenderFrame(header, body, footer, m.width, m.height)
}

// headerStatus shows the countdown during the interaction and the study
// progress otherwise.
func headerStatus(snap lifecycle.Snapshot) (string, color.Color) {
	if snap.Phase == study.PhaseInteraction && snap.Ready {
		status := layout.FormatClock(snap.Timer.RemainingSeconds)
		if snap.Paused {
			status = "paused " + status
		}
		return status + "  ", theme.UrgencyColor(snap.Timer.Urgency)
	}
	if snap.Phase == "" {
		return "", theme.TextDim
	}
	return fmt.Sprintf("%d%% done  ", snap.CompletionPercentage), theme.TextDim
}

func renderFatal(err error, width, height int) string {
	text := theme.ErrorText.Render("This study session can no longer continue.") + "\n\n" +
		theme.Hint.Render(err.Error()) + "\n\n" +
		theme.Body.Render("Please contact the study team.")
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, text)
}

// Run starts the Bubble Tea program and unloads the controller when the
// participant quits.
func Run(ctrl Controller, doc *content.Document, changes Changes) error {
	defer ctrl.Unload()
	p := tea.NewProgram(newAppModel(ctrl, doc, changes))
	_, err := p.Run()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error running program:", err)
		return err
	}
	return nil
}
