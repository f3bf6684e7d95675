package components

import (
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/studyctl/internal/ui/theme"
)

// TextInput wraps bubbles/textinput for the chat composer. While disabled
// it ignores keys and shows the reason instead of the input.
type TextInput struct {
	Model    textinput.Model
	disabled string
}

// NewTextInput creates a focused input limited to charLimit bytes.
func NewTextInput(placeholder string, charLimit int) TextInput {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = charLimit
	ti.Focus()
	return TextInput{Model: ti}
}

// Init returns the initial command.
func (t TextInput) Init() tea.Cmd {
	return t.Model.Focus()
}

// Update handles messages.
func (t TextInput) Update(msg tea.Msg) (TextInput, tea.Cmd) {
	if t.disabled != "" {
		return t, nil
	}
	var cmd tea.Cmd
	t.Model, cmd = t.Model.Update(msg)
	return t, cmd
}

// View renders the input, or the disabled reason.
func (t TextInput) View() string {
	if t.disabled != "" {
		return lipgloss.NewStyle().Foreground(theme.Accent).Render(t.disabled)
	}
	return t.Model.View()
}

// SetWidth sets the visible width.
func (t *TextInput) SetWidth(w int) {
	t.Model.SetWidth(w)
}

// SetDisabled disables the input with a reason; an empty reason enables it.
func (t *TextInput) SetDisabled(reason string) {
	t.disabled = reason
}

// Disabled reports whether the input is disabled.
func (t TextInput) Disabled() bool {
	return t.disabled != ""
}

// Value returns the trimmed input value.
func (t TextInput) Value() string {
	return strings.TrimSpace(t.Model.Value())
}

// Reset clears the input.
func (t *TextInput) Reset() {
	t.Model.Reset()
}
