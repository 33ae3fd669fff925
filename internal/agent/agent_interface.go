package agent

import (
	"context"

	"github.com/ashureev/todochat/internal/domain"
)

// Transport defines the exchanges the chat controller performs against the
// assistant service. Implementations absorb every failure into their return
// values; nothing here returns an error.
type Transport interface {
	// SendChatMessage sends text on behalf of identity within conversation
	// (absent for a new thread) and reports the outcome.
	SendChatMessage(ctx context.Context, identity, text string, conversation domain.ConversationID) domain.ExchangeResult

	// ListConversations returns the identity's conversations, or an empty
	// slice if they cannot be fetched.
	ListConversations(ctx context.Context, identity string) []domain.ConversationSummary
}

// Ensure Client implements Transport.
var _ Transport = (*Client)(nil)
