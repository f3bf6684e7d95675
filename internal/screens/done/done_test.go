package done

import (
	"strings"
	"testing"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/studyctl/internal/lifecycle"
	"github.com/abhisek/studyctl/internal/study"
)

func testSnapshot() lifecycle.Snapshot {
	return lifecycle.Snapshot{
		Phase:                study.PhaseCompleted,
		CompletionPercentage: 100,
		SessionID:            "s-42",
	}
}

func TestDoneScreen_Title(t *testing.T) {
	s := New(testSnapshot())
	if s.Title() != "Completed" {
		t.Errorf("Title = %q, want %q", s.Title(), "Completed")
	}
}

func TestDoneScreen_Display(t *testing.T) {
	view := New(testSnapshot()).View(80, 24)
	if !strings.Contains(view, "Thank you") {
		t.Error("expected thank-you message")
	}
	if !strings.Contains(view, "s-42") {
		t.Error("expected session id")
	}
}

func TestDoneScreen_EnterQuits(t *testing.T) {
	s := New(testSnapshot())
	_, cmd := s.Update(tea.KeyPressMsg{Code: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected a command on Enter")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected QuitMsg")
	}
}

func TestDoneScreen_KeyHints(t *testing.T) {
	if len(New(testSnapshot()).KeyHints()) != 1 {
		t.Error("expected one key hint")
	}
}
