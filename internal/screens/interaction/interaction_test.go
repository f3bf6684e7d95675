package interaction

import (
	"context"
	"strings"
	"testing"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/studyctl/internal/content"
	"github.com/abhisek/studyctl/internal/deadline"
	"github.com/abhisek/studyctl/internal/lifecycle"
	"github.com/abhisek/studyctl/internal/screen"
	"github.com/abhisek/studyctl/internal/study"
)

type fakeSession struct {
	snap      lifecycle.Snapshot
	navigated []int
	scrolls   []int
	paused    []bool
	sent      []string
	sendErr   error
	finished  int
	acked     int
	entered   int
}

func (f *fakeSession) Snapshot() lifecycle.Snapshot { return f.snap }
func (f *fakeSession) Advance(_ context.Context, expected, _ study.Phase) (study.Phase, error) {
	return expected, nil
}
func (f *fakeSession) EnterInteraction(context.Context) error {
	f.entered++
	f.snap.Ready = true
	return nil
}
func (f *fakeSession) SetPaused(_ context.Context, paused bool) {
	f.paused = append(f.paused, paused)
	f.snap.Paused = paused
}
func (f *fakeSession) Navigate(unit int) error {
	f.navigated = append(f.navigated, unit)
	f.snap.CurrentUnit = unit
	return nil
}
func (f *fakeSession) Scroll(depth int) error {
	f.scrolls = append(f.scrolls, depth)
	return nil
}
func (f *fakeSession) Send(_ context.Context, msg string) (*study.ExchangeResponse, error) {
	f.sent = append(f.sent, msg)
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &study.ExchangeResponse{Reply: "echo: " + msg, Turn: len(f.sent)}, nil
}
func (f *fakeSession) Finish(context.Context) error {
	f.finished++
	f.snap.Phase = study.PhasePostAssessment
	return nil
}
func (f *fakeSession) AcknowledgeTimeUp(context.Context) error {
	f.acked++
	f.snap.Phase = study.PhasePostAssessment
	return nil
}

func readySnapshot(m study.Modality) lifecycle.Snapshot {
	return lifecycle.Snapshot{
		Phase:    study.PhaseInteraction,
		Modality: m,
		Ready:    true,
		Timer:    deadline.State{RemainingSeconds: 1800, Running: true},
	}
}

func testDoc() *content.Document {
	return &content.Document{Units: []content.Unit{
		{Title: "First page", Body: "alpha"},
		{Title: "Second page", Body: "beta"},
	}}
}

func key(s string) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: rune(s[0]), Text: s}
}

// run executes cmd and feeds its message back into the screen.
func run(t *testing.T, s *InteractionScreen, cmd tea.Cmd) tea.Msg {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	msg := cmd()
	s.Update(msg)
	return msg
}

func TestInteractionScreen_Title(t *testing.T) {
	s := New(&fakeSession{snap: readySnapshot(study.ModalityReading)}, testDoc())
	if s.Title() != "Learning" {
		t.Errorf("Title = %q, want %q", s.Title(), "Learning")
	}
}

func TestReading_OpensFirstUnit(t *testing.T) {
	fake := &fakeSession{snap: readySnapshot(study.ModalityReading)}
	s := New(fake, testDoc())
	run(t, s, s.Init())

	if len(fake.navigated) != 1 || fake.navigated[0] != 1 {
		t.Fatalf("navigated = %v, want [1]", fake.navigated)
	}
	if !strings.Contains(s.View(100, 30), "First page") {
		t.Error("expected first unit in view")
	}
}

func TestReading_WaitsForReady(t *testing.T) {
	fake := &fakeSession{snap: readySnapshot(study.ModalityReading)}
	fake.snap.Ready = false
	s := New(fake, testDoc())
	if cmd := s.Init(); cmd != nil {
		t.Fatal("expected no navigation before the session is ready")
	}
	if !strings.Contains(s.View(100, 30), "Preparing") {
		t.Error("expected preparing message")
	}

	_, cmd := s.Update(key("r"))
	if cmd == nil {
		t.Fatal("expected a retry command")
	}
	_, next := s.Update(cmd())
	if fake.entered != 1 {
		t.Errorf("entered = %d, want 1", fake.entered)
	}
	run(t, s, next)
	if len(fake.navigated) != 1 || fake.navigated[0] != 1 {
		t.Errorf("navigated = %v, want [1]", fake.navigated)
	}
}

func TestReading_PageNavigation(t *testing.T) {
	fake := &fakeSession{snap: readySnapshot(study.ModalityReading)}
	s := New(fake, testDoc())
	run(t, s, s.Init())

	_, cmd := s.Update(tea.KeyPressMsg{Code: tea.KeyRight})
	run(t, s, cmd)
	if !strings.Contains(s.View(100, 30), "Second page") {
		t.Error("expected second unit after Right")
	}

	// Past the last unit nothing happens.
	if _, cmd := s.Update(tea.KeyPressMsg{Code: tea.KeyRight}); cmd != nil {
		t.Error("expected no command past the last unit")
	}

	_, cmd = s.Update(tea.KeyPressMsg{Code: tea.KeyLeft})
	run(t, s, cmd)
	want := []int{1, 2, 1}
	if len(fake.navigated) != len(want) {
		t.Fatalf("navigated = %v, want %v", fake.navigated, want)
	}
	for i := range want {
		if fake.navigated[i] != want[i] {
			t.Errorf("navigated = %v, want %v", fake.navigated, want)
		}
	}
}

func TestReading_PauseToggle(t *testing.T) {
	fake := &fakeSession{snap: readySnapshot(study.ModalityReading)}
	s := New(fake, testDoc())
	run(t, s, s.Init())

	_, cmd := s.Update(key("p"))
	run(t, s, cmd)
	if !strings.Contains(s.View(100, 30), "Paused") {
		t.Error("expected paused view")
	}

	// Navigation is ignored while paused.
	if _, cmd := s.Update(tea.KeyPressMsg{Code: tea.KeyRight}); cmd != nil {
		t.Error("expected no navigation while paused")
	}

	_, cmd = s.Update(key("p"))
	run(t, s, cmd)
	if len(fake.paused) != 2 || !fake.paused[0] || fake.paused[1] {
		t.Errorf("paused = %v, want [true false]", fake.paused)
	}
}

func TestFinishRequiresConfirmation(t *testing.T) {
	fake := &fakeSession{snap: readySnapshot(study.ModalityReading)}
	s := New(fake, testDoc())
	run(t, s, s.Init())

	s.Update(key("f"))
	if !strings.Contains(s.View(100, 30), "Finish the learning session") {
		t.Fatal("expected confirmation")
	}
	s.Update(key("n"))
	if fake.finished != 0 {
		t.Fatal("finish must not run after N")
	}

	s.Update(key("f"))
	_, cmd := s.Update(key("y"))
	msg := run(t, s, cmd)
	pm, ok := msg.(screen.PhaseMsg)
	if !ok || pm.Phase != study.PhasePostAssessment {
		t.Errorf("msg = %#v, want PhaseMsg POST_ASSESSMENT", msg)
	}
	if fake.finished != 1 || fake.acked != 0 {
		t.Errorf("finished = %d acked = %d, want 1 and 0", fake.finished, fake.acked)
	}
}

func TestTimeUpNoticeShownOnce(t *testing.T) {
	fake := &fakeSession{snap: readySnapshot(study.ModalityReading)}
	s := New(fake, testDoc())
	run(t, s, s.Init())

	fake.snap.TimeUp = true
	fake.snap.Timer = deadline.State{Expired: true, Urgency: deadline.UrgencyUrgent}
	s.Update(screen.RefreshMsg{})
	if !strings.Contains(s.View(100, 30), "recommended time is up") {
		t.Fatal("expected time-up notice")
	}

	// Keep going: the notice goes away, the banner stays.
	s.Update(tea.KeyPressMsg{Code: tea.KeyEscape})
	s.Update(screen.RefreshMsg{})
	view := s.View(100, 30)
	if strings.Contains(view, "Enter to continue") {
		t.Error("notice must only be shown once")
	}
	if !strings.Contains(view, "Recommended time is up") {
		t.Error("expected persistent banner")
	}

	// Finishing after time up acknowledges it.
	s.Update(key("f"))
	_, cmd := s.Update(key("y"))
	run(t, s, cmd)
	if fake.acked != 1 || fake.finished != 0 {
		t.Errorf("acked = %d finished = %d, want 1 and 0", fake.acked, fake.finished)
	}
}

func TestTimeUpAcknowledgeWithEnter(t *testing.T) {
	fake := &fakeSession{snap: readySnapshot(study.ModalityConversational)}
	fake.snap.TimeUp = true
	s := New(fake, nil)

	_, cmd := s.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	run(t, s, cmd)
	if fake.acked != 1 {
		t.Errorf("acked = %d, want 1", fake.acked)
	}
}

func TestChat_SendShowsReply(t *testing.T) {
	fake := &fakeSession{snap: readySnapshot(study.ModalityConversational)}
	s := New(fake, nil)
	s.View(100, 30)

	s.chat.input.Model.SetValue("what is retrieval practice?")
	_, cmd := s.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	if !s.chat.input.Disabled() {
		t.Error("expected input disabled while waiting")
	}
	run(t, s, cmd)

	if len(fake.sent) != 1 || fake.sent[0] != "what is retrieval practice?" {
		t.Fatalf("sent = %v", fake.sent)
	}
	if s.chat.input.Disabled() {
		t.Error("expected input enabled after reply")
	}
	if !strings.Contains(s.View(100, 30), "echo: what is retrieval practice?") {
		t.Error("expected reply in transcript")
	}
}

func TestChat_EmptyMessageNotSent(t *testing.T) {
	fake := &fakeSession{snap: readySnapshot(study.ModalityConversational)}
	s := New(fake, nil)
	s.chat.input.Model.SetValue("   ")
	if _, cmd := s.Update(tea.KeyPressMsg{Code: tea.KeyEnter}); cmd != nil {
		t.Error("expected no command for a blank message")
	}
}

func TestChat_CostLimitDisablesInput(t *testing.T) {
	fake := &fakeSession{snap: readySnapshot(study.ModalityConversational)}
	fake.sendErr = &study.CostLimitError{Reason: "daily limit reached"}
	s := New(fake, nil)

	s.chat.input.Model.SetValue("hello")
	_, cmd := s.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	fake.snap.BlockReason = "daily limit reached"
	run(t, s, cmd)

	if !s.chat.input.Disabled() {
		t.Error("expected input disabled by the cost ledger")
	}
	if !strings.Contains(s.View(100, 30), "Message not sent: daily limit reached") {
		t.Error("expected cost limit notice")
	}
}

func TestKeyHintsByModality(t *testing.T) {
	r := New(&fakeSession{snap: readySnapshot(study.ModalityReading)}, testDoc())
	c := New(&fakeSession{snap: readySnapshot(study.ModalityConversational)}, nil)
	if r.KeyHints()[0].Key != "←→" {
		t.Errorf("reading hints = %v", r.KeyHints())
	}
	if c.KeyHints()[0].Key != "Enter" {
		t.Errorf("conversation hints = %v", c.KeyHints())
	}
}
