package interaction

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/studyctl/internal/lifecycle"
	"github.com/abhisek/studyctl/internal/study"
	"github.com/abhisek/studyctl/internal/ui/components"
	"github.com/abhisek/studyctl/internal/ui/theme"
)

// maxMessageLen matches the server's request limit.
const maxMessageLen = 4000

type sentMsg struct {
	message string
	resp    *study.ExchangeResponse
	err     error
}

type chatLine struct {
	from string
	text string
}

// chat is the CONVERSATIONAL modality part of the screen.
type chat struct {
	input      components.TextInput
	transcript []chatLine
	sending    bool
	err        error
}

func newChat() chat {
	return chat{input: components.NewTextInput("Ask a question about the topic...", maxMessageLen)}
}

// syncInput disables the composer while a reply is pending, while paused
// or while the cost ledger blocks sending.
func (c *chat) syncInput(snap lifecycle.Snapshot) {
	switch {
	case c.sending:
		c.input.SetDisabled("Waiting for the assistant...")
	case snap.Paused:
		c.input.SetDisabled("Paused. Press Ctrl+P to resume.")
	case snap.BlockReason != "":
		c.input.SetDisabled("Sending is disabled: " + snap.BlockReason)
	default:
		c.input.SetDisabled("")
	}
}

func (c *chat) handleKey(s *InteractionScreen, msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "pgup", "pgdown":
		var cmd tea.Cmd
		s.vp, cmd = s.vp.Update(msg)
		return cmd
	case "enter":
		if c.input.Disabled() {
			return nil
		}
		text := c.input.Value()
		if text == "" {
			return nil
		}
		c.input.Reset()
		c.sending = true
		c.err = nil
		c.transcript = append(c.transcript, chatLine{from: "You", text: text})
		c.syncInput(s.snap)
		s.refreshTranscript()
		sess := s.sess
		return func() tea.Msg {
			resp, err := sess.Send(context.Background(), text)
			return sentMsg{message: text, resp: resp, err: err}
		}
	}
	var cmd tea.Cmd
	c.input, cmd = c.input.Update(msg)
	return cmd
}

func (c *chat) received(msg sentMsg) {
	c.sending = false
	if msg.err != nil {
		c.err = msg.err
		return
	}
	c.err = nil
	if msg.resp != nil {
		c.transcript = append(c.transcript, chatLine{from: "Assistant", text: msg.resp.Reply})
	}
}

// refreshTranscript re-renders the conversation and follows the newest
// message.
func (s *InteractionScreen) refreshTranscript() {
	w := max(s.vpWidth, 20)
	var b strings.Builder
	for i, line := range s.chat.transcript {
		if i > 0 {
			b.WriteString("\n\n")
		}
		label := theme.AssistantLabel
		if line.from == "You" {
			label = theme.UserLabel
		}
		b.WriteString(label.Render(line.from))
		b.WriteString("\n")
		b.WriteString(theme.Body.Width(w).Render(line.text))
	}
	if len(s.chat.transcript) == 0 {
		b.WriteString(theme.Hint.Render("Ask the assistant anything about the topic to get started."))
	}
	s.vp.SetContent(b.String())
	s.vp.GotoBottom()
}

func (c *chat) view(width int) string {
	var lines []string
	if c.err != nil {
		var cle *study.CostLimitError
		if errors.As(c.err, &cle) {
			lines = append(lines, theme.Notice.Render(errorLine(c.err)))
		} else {
			lines = append(lines, theme.ErrorText.Render(errorLine(c.err)))
		}
	}
	c.input.SetWidth(max(min(width-8, 100), 20))
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Border).
		Render(c.input.View())
	lines = append(lines, box)
	return strings.Join(lines, "\n")
}

func (c *chat) status(snap lifecycle.Snapshot) string {
	t := snap.Tracker
	return theme.Hint.Render(fmt.Sprintf("%d exchanges  %d tokens  $%.4f", t.ExchangeCount, t.TotalTokens, t.TotalCost))
}
