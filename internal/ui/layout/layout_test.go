package layout

import (
	"strings"
	"testing"

	"github.com/abhisek/studyctl/internal/ui/theme"
)

func TestFormatClock(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{1800, "30:00"},
		{299, "4:59"},
		{60, "1:00"},
		{5, "0:05"},
		{0, "0:00"},
		{-3, "0:00"},
	}
	for _, tt := range tests {
		if got := FormatClock(tt.seconds); got != tt.want {
			t.Errorf("FormatClock(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestIsTooSmall(t *testing.T) {
	if !IsTooSmall(MinWidth-1, MinHeight) {
		t.Error("expected narrow terminal to be too small")
	}
	if IsTooSmall(MinWidth, MinHeight) {
		t.Error("expected minimum size to fit")
	}
}

func TestRenderHeader(t *testing.T) {
	h := RenderHeader("Learning", "12:34", theme.Accent, 80)
	for _, want := range []string{"studyctl", "Learning", "12:34"} {
		if !strings.Contains(h, want) {
			t.Errorf("header missing %q", want)
		}
	}
}
