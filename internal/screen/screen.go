package screen

import (
	"context"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/studyctl/internal/lifecycle"
	"github.com/abhisek/studyctl/internal/study"
	"github.com/abhisek/studyctl/internal/ui/layout"
)

// Screen defines the interface for all application screens.
type Screen interface {
	// Init returns an initial command when the screen is first created.
	Init() tea.Cmd

	// Update handles messages and returns updated screen + command.
	Update(msg tea.Msg) (Screen, tea.Cmd)

	// View renders the screen content (excluding header/footer).
	View(width, height int) string

	// Title returns the screen name for the header.
	Title() string
}

// KeyHintProvider is an optional interface that screens can implement
// to provide custom footer key hints.
type KeyHintProvider interface {
	KeyHints() []layout.KeyHint
}

// Session is the part of the lifecycle controller the screens drive.
// *lifecycle.Controller implements it.
type Session interface {
	Snapshot() lifecycle.Snapshot
	Advance(ctx context.Context, expected, target study.Phase) (study.Phase, error)
	EnterInteraction(ctx context.Context) error
	SetPaused(ctx context.Context, paused bool)
	Navigate(unit int) error
	Scroll(depth int) error
	Send(ctx context.Context, message string) (*study.ExchangeResponse, error)
	Finish(ctx context.Context) error
	AcknowledgeTimeUp(ctx context.Context) error
}

var _ Session = (*lifecycle.Controller)(nil)

// PhaseMsg reports the outcome of a phase change. The root model swaps the
// active screen when Phase differs from the one on display.
type PhaseMsg struct {
	Phase study.Phase
	Err   error
}

// RefreshMsg is sent whenever the controller state changed in the
// background (timer tick, sync, ledger refresh).
type RefreshMsg struct{}

// AdvanceCmd runs Advance off the UI goroutine.
func AdvanceCmd(s Session, expected, target study.Phase) tea.Cmd {
	return func() tea.Msg {
		phase, err := s.Advance(context.Background(), expected, target)
		return PhaseMsg{Phase: phase, Err: err}
	}
}

// FinishCmd leaves the interaction phase, either early or after the
// time-up acknowledgement.
func FinishCmd(s Session, timeUp bool) tea.Cmd {
	return func() tea.Msg {
		var err error
		if timeUp {
			err = s.AcknowledgeTimeUp(context.Background())
		} else {
			err = s.Finish(context.Background())
		}
		return PhaseMsg{Phase: s.Snapshot().Phase, Err: err}
	}
}
