// Package tui renders a chat session in the terminal. Two front ends share
// the same controller: an interactive bubbletea program and a line-oriented
// REPL for pipes and dumb terminals.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ashureev/todochat/internal/chat"
	"github.com/ashureev/todochat/internal/domain"
	"github.com/ashureev/todochat/internal/identity"
)

// Controller is the slice of chat.Controller the front ends drive.
type Controller interface {
	State() chat.State
	Subscribe(fn func(chat.State)) (cancel func())
	SetDraft(text string)
	Submit(ctx context.Context, text string) bool
	StartNewConversation(ctx context.Context) error
	SelectConversation(ctx context.Context, id domain.ConversationID) error
	Conversations(ctx context.Context) []domain.ConversationSummary
}

var _ Controller = (*chat.Controller)(nil)

const (
	appTitle        = "Todo AI Assistant"
	inputHint       = "Type your message..."
	pendingLabel    = "Assistant is thinking..."
	emptyHistory    = "No previous conversations"
	historyHeading  = "Recent Conversations"
	summaryTimeForm = "Jan 2 15:04"
)

var welcomeLines = []string{
	"Welcome! I'm your task management assistant.",
	"",
	"Try saying:",
	`  "Add buy groceries to my list"`,
	`  "Show me all my tasks"`,
	`  "Mark the first task as done"`,
	`  "Delete the meeting task"`,
}

type styles struct {
	title     lipgloss.Style
	muted     lipgloss.Style
	user      lipgloss.Style
	assistant lipgloss.Style
	err       lipgloss.Style
	spinner   lipgloss.Style
	selected  lipgloss.Style
	welcome   lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		title:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		muted:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		user:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		assistant: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13")),
		err:       lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		spinner:   lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		selected:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14")),
		welcome:   lipgloss.NewStyle().Foreground(lipgloss.Color("7")).PaddingLeft(1),
	}
}

// sessionLabel describes who is talking and in which conversation.
func sessionLabel(s chat.State) string {
	conv := "new conversation"
	if !s.ActiveConversation.IsZero() {
		conv = "conversation " + s.ActiveConversation.String()
	}
	return identity.DisplayName(s.Identity) + " · " + conv
}

// renderLog lays out the message log for a pane of the given width. An empty
// log renders the welcome copy.
func renderLog(s chat.State, width int, st styles) string {
	if len(s.Messages) == 0 {
		return st.welcome.Render(strings.Join(welcomeLines, "\n"))
	}

	body := lipgloss.NewStyle().PaddingLeft(2)
	if width > 4 {
		body = body.Width(width - 2)
	}

	var b strings.Builder
	for i, msg := range s.Messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		label := st.assistant
		if msg.Role == domain.RoleUser {
			label = st.user
		}
		b.WriteString(label.Render(msg.Label()))
		b.WriteString("\n")
		b.WriteString(body.Render(msg.Content))
	}
	return b.String()
}

// formatSummary renders one conversation listing entry.
func formatSummary(c domain.ConversationSummary, active domain.ConversationID) string {
	marker := "  "
	if c.ID == active {
		marker = "* "
	}
	when := "unknown"
	if !c.UpdatedAt.IsZero() {
		when = c.UpdatedAt.Local().Format(summaryTimeForm)
	}
	return fmt.Sprintf("%s#%s  %s", marker, c.ID, when)
}
