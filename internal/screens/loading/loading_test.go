package loading

import (
	"errors"
	"strings"
	"testing"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/studyctl/internal/screen"
)

func TestLoadingScreen_RetryOnlyAfterError(t *testing.T) {
	retried := false
	s := New(func() tea.Msg {
		retried = true
		return nil
	})

	if _, cmd := s.Update(tea.KeyPressMsg{Code: 'r', Text: "r"}); cmd != nil {
		t.Fatal("expected no retry while loading")
	}

	s.Update(screen.PhaseMsg{Err: errors.New("connection refused")})
	if !strings.Contains(s.View(80, 20), "connection refused") {
		t.Error("expected error in view")
	}
	if len(s.KeyHints()) != 2 {
		t.Errorf("KeyHints length = %d, want 2", len(s.KeyHints()))
	}

	_, cmd := s.Update(tea.KeyPressMsg{Code: 'r', Text: "r"})
	if cmd == nil {
		t.Fatal("expected retry command")
	}
	cmd()
	if !retried {
		t.Error("expected retry to run")
	}
}
