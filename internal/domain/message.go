// Package domain contains core domain types for the todochat client.
package domain

// Role tags who authored a message.
type Role string

const (
	// RoleUser marks messages typed by the person at the keyboard.
	RoleUser Role = "user"
	// RoleAssistant marks replies produced by the remote assistant.
	RoleAssistant Role = "assistant"
)

// Message is a single role-tagged entry in the conversation log.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserMessage returns a message authored by the user.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage returns a message authored by the assistant.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// Label returns the display label for the message author.
func (m Message) Label() string {
	if m.Role == RoleUser {
		return "You"
	}
	return "Assistant"
}
