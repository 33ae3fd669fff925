// Package chat implements the conversation session manager: the state
// machine that sequences exchanges with the assistant and reconciles their
// outcomes into a displayable message log.
package chat

import (
	"slices"
	"strings"

	"github.com/ashureev/todochat/internal/domain"
)

// State is everything a rendering layer needs to draw a chat session.
type State struct {
	Identity           string
	ActiveConversation domain.ConversationID
	Messages           []domain.Message
	Pending            bool
	LastError          string
	Draft              string

	// Generation increases every time the session is reset or switched.
	// Exchange outcomes tagged with an older generation are discarded.
	Generation uint64
}

// Clone returns a copy that shares no mutable memory with s.
func (s State) Clone() State {
	s.Messages = slices.Clone(s.Messages)
	return s
}

// Event is an input to Reduce.
type Event interface {
	event()
}

// DraftChanged records the current contents of the input buffer.
type DraftChanged struct {
	Text string
}

// Submitted is the user sending Text. It is ignored when Text is blank or
// an exchange is already pending.
type Submitted struct {
	Text string
}

// ExchangeSucceeded carries a successful reply for the exchange started in
// Generation.
type ExchangeSucceeded struct {
	Generation     uint64
	ConversationID domain.ConversationID
	Response       string
}

// ExchangeFailed carries the error of the exchange started in Generation.
type ExchangeFailed struct {
	Generation uint64
	Err        string
}

// ConversationReset starts a fresh conversation.
type ConversationReset struct{}

// ConversationResumed restores the conversation persisted by an earlier run.
type ConversationResumed struct {
	ID domain.ConversationID
}

// ConversationSelected switches to an existing conversation.
type ConversationSelected struct {
	ID domain.ConversationID
}

func (DraftChanged) event()         {}
func (Submitted) event()            {}
func (ExchangeSucceeded) event()    {}
func (ExchangeFailed) event()       {}
func (ConversationReset) event()    {}
func (ConversationResumed) event()  {}
func (ConversationSelected) event() {}

// Accepts reports whether a Submitted event with text would be applied.
func (s State) Accepts(text string) bool {
	return !s.Pending && strings.TrimSpace(text) != ""
}

// Reduce applies ev to s and returns the resulting state. It has no side
// effects and never mutates s.
func Reduce(s State, ev Event) State {
	s = s.Clone()

	switch ev := ev.(type) {
	case DraftChanged:
		s.Draft = ev.Text

	case Submitted:
		if !s.Accepts(ev.Text) {
			return s
		}
		s.Messages = append(s.Messages, domain.UserMessage(ev.Text))
		s.LastError = ""
		s.Pending = true
		s.Draft = ""

	case ExchangeSucceeded:
		// Only one exchange is ever in flight, so its completion always
		// releases the gate, even when the result itself is stale.
		s.Pending = false
		if ev.Generation != s.Generation {
			return s
		}
		if !ev.ConversationID.IsZero() && ev.ConversationID != s.ActiveConversation {
			s.ActiveConversation = ev.ConversationID
		}
		s.Messages = append(s.Messages, domain.AssistantMessage(ev.Response))

	case ExchangeFailed:
		s.Pending = false
		if ev.Generation != s.Generation {
			return s
		}
		s.LastError = ev.Err

	case ConversationReset:
		s.ActiveConversation = ""
		s.Messages = nil
		s.LastError = ""
		s.Generation++

	case ConversationResumed:
		s.ActiveConversation = ev.ID

	case ConversationSelected:
		s.ActiveConversation = ev.ID
		s.Messages = nil
		s.LastError = ""
		s.Generation++
	}

	return s
}
