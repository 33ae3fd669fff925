// Package agent talks to the remote to-do assistant service.
package agent

import (
	"time"

	"github.com/ashureev/todochat/internal/domain"
)

// chatRequest is the JSON body sent to POST /api/{user}/chat.
type chatRequest struct {
	Message        string                `json:"message"`
	ConversationID domain.ConversationID `json:"conversation_id"`
}

// ChatResponse is the JSON body returned by POST /api/{user}/chat.
type ChatResponse struct {
	ConversationID domain.ConversationID `json:"conversation_id"`
	Response       string                `json:"response"`
	ToolCalls      []domain.ToolCall     `json:"tool_calls"`
	Error          *string               `json:"error"`
}

// conversationList is the JSON body returned by GET /api/{user}/conversations.
type conversationList struct {
	Conversations []domain.ConversationSummary `json:"conversations"`
	Count         int                          `json:"count"`
}

// errorBody is the shape of a JSON error returned with a non-2xx status.
type errorBody struct {
	Error string `json:"error"`
}

// ClientConfig holds configuration for the HTTP client.
type ClientConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
}

// DefaultClientConfig returns default configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:        "http://localhost:8000",
		RequestTimeout: 30 * time.Second,
	}
}
