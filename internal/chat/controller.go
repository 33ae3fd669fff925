package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/todochat/internal/agent"
	"github.com/ashureev/todochat/internal/domain"
)

// ErrNoConversation is returned when selecting an absent conversation handle.
var ErrNoConversation = errors.New("conversation id is required")

// IdentityProvider supplies the stable client identity.
type IdentityProvider interface {
	GetOrCreate(ctx context.Context) string
}

// SessionStore persists the active conversation handle.
type SessionStore interface {
	Load(ctx context.Context) (domain.ConversationID, bool)
	Save(ctx context.Context, id domain.ConversationID) error
	Clear(ctx context.Context) error
}

// Deps are the collaborators a Controller orchestrates.
type Deps struct {
	Identity   IdentityProvider
	Sessions   SessionStore
	Transport  agent.Transport
	Transcript agent.ConversationLogger
	Logger     *slog.Logger
}

// Controller owns the chat State. Every transition goes through Reduce.
// Transitions are serialized together with their persistence and subscriber
// callbacks, so the stored handle never lags behind a reset; readers of
// State only wait for the reduce step itself.
type Controller struct {
	transport  agent.Transport
	sessions   SessionStore
	transcript agent.ConversationLogger
	logger     *slog.Logger
	now        func() time.Time

	// transitionMu is held for a whole transition and is always taken
	// before mu.
	transitionMu sync.Mutex

	mu    sync.Mutex
	state State

	subMu   sync.Mutex
	subs    map[int]func(State)
	nextSub int
}

// New resolves the client identity and resumes the persisted conversation,
// if any. It performs no network calls.
func New(ctx context.Context, deps Deps) *Controller {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Transcript == nil {
		deps.Transcript = agent.NopConversationLogger()
	}

	identity := deps.Identity.GetOrCreate(ctx)
	active, resumed := deps.Sessions.Load(ctx)

	c := &Controller{
		transport:  deps.Transport,
		sessions:   deps.Sessions,
		transcript: deps.Transcript,
		logger:     deps.Logger.With("user_id", identity),
		now:        time.Now,
		state:      State{Identity: identity},
		subs:       make(map[int]func(State)),
	}
	if resumed {
		c.state = Reduce(c.state, ConversationResumed{ID: active})
		c.logger.Info("resumed conversation", "conversation_id", active.String())
	}
	return c
}

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// Subscribe registers fn to receive a snapshot after every transition and
// returns a function that unregisters it. fn runs on the goroutine that
// caused the transition, in transition order. It may call State but must not
// call the Controller's mutating methods.
func (c *Controller) Subscribe(fn func(State)) (cancel func()) {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, id)
			c.subMu.Unlock()
		})
	}
}

// apply runs ev through Reduce. effect, when non-nil, runs after the state
// lock is released with the before and after states, and before subscribers
// are notified. No other transition starts until both are done.
func (c *Controller) apply(ev Event, effect func(prev, next State)) (prev, next State) {
	c.transitionMu.Lock()
	defer c.transitionMu.Unlock()

	c.mu.Lock()
	prev = c.state
	c.state = Reduce(c.state, ev)
	next = c.state.Clone()
	c.mu.Unlock()

	if effect != nil {
		effect(prev, next)
	}

	c.subMu.Lock()
	subs := make([]func(State), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.subMu.Unlock()

	for _, fn := range subs {
		fn(next.Clone())
	}
	return prev, next
}

// SetDraft records the input buffer contents.
func (c *Controller) SetDraft(text string) {
	c.apply(DraftChanged{Text: text}, nil)
}

// Submit sends text to the assistant and blocks until the exchange settles.
// It returns false without doing anything when text is blank or another
// exchange is pending.
func (c *Controller) Submit(ctx context.Context, text string) bool {
	prev, next := c.apply(Submitted{Text: text}, nil)
	if !next.Pending || prev.Pending {
		return false
	}

	gen := next.Generation
	identity := next.Identity
	conversation := next.ActiveConversation
	log := c.logger.With("conversation_id", conversation.String(), "generation", gen)

	c.transcript.Log(agent.ConversationLogEvent{
		Timestamp:      c.timestamp(),
		UserID:         identity,
		ConversationID: conversation.String(),
		Direction:      "outbound",
		EventType:      agent.EventUserMessage,
		ContentRaw:     text,
	})

	settled := false
	defer func() {
		// A panicking transport must not leave the gate closed forever.
		if !settled {
			c.apply(ExchangeFailed{Generation: gen, Err: "Failed to send message"}, nil)
		}
	}()

	log.Debug("sending message", "message_length", len(text))
	res := c.transport.SendChatMessage(ctx, identity, text, conversation)

	if res.Failed() {
		_, after := c.apply(ExchangeFailed{Generation: gen, Err: res.Err}, nil)
		settled = true
		if after.Generation != gen {
			log.Info("discarding failed exchange for superseded session", "error", res.Err)
			return true
		}
		log.Warn("exchange failed", "error", res.Err)
		c.transcript.Log(agent.ConversationLogEvent{
			Timestamp:      c.timestamp(),
			UserID:         identity,
			ConversationID: conversation.String(),
			Direction:      "inbound",
			EventType:      agent.EventExchangeError,
			ContentRaw:     res.Err,
		})
		return true
	}

	_, after := c.apply(ExchangeSucceeded{
		Generation:     gen,
		ConversationID: res.ConversationID,
		Response:       res.Response,
	}, func(prev, next State) {
		if next.Generation != gen || next.ActiveConversation == prev.ActiveConversation {
			return
		}
		if err := c.sessions.Save(ctx, next.ActiveConversation); err != nil {
			log.Warn("failed to persist conversation id", "error", err)
		}
	})
	settled = true

	if after.Generation != gen {
		log.Info("discarding reply for superseded session")
		return true
	}

	toolNames := make([]string, 0, len(res.ToolCalls))
	for _, tc := range res.ToolCalls {
		toolNames = append(toolNames, tc.Tool)
	}
	log.Info("exchange complete",
		"active_conversation_id", after.ActiveConversation.String(),
		"tools", toolNames,
	)
	c.transcript.Log(agent.ConversationLogEvent{
		Timestamp:      c.timestamp(),
		UserID:         identity,
		ConversationID: after.ActiveConversation.String(),
		Direction:      "inbound",
		EventType:      agent.EventAssistantMessage,
		ContentRaw:     res.Response,
		Meta: map[string]any{
			"tools_used": toolNames,
		},
	})
	return true
}

// StartNewConversation drops the active conversation, the log and any
// error. It may be called while an exchange is pending; that exchange's
// result will be discarded. The in-memory reset always happens; the returned
// error only reports a failure to clear the persisted handle.
func (c *Controller) StartNewConversation(ctx context.Context) error {
	var clearErr error
	c.apply(ConversationReset{}, func(_, _ State) {
		clearErr = c.sessions.Clear(ctx)
	})
	if clearErr != nil {
		c.logger.Warn("failed to clear persisted conversation id", "error", clearErr)
		return fmt.Errorf("start new conversation: %w", clearErr)
	}
	c.logger.Info("started new conversation")
	return nil
}

// SelectConversation makes id the active conversation with an empty log.
func (c *Controller) SelectConversation(ctx context.Context, id domain.ConversationID) error {
	if id.IsZero() {
		return ErrNoConversation
	}

	var saveErr error
	c.apply(ConversationSelected{ID: id}, func(_, _ State) {
		saveErr = c.sessions.Save(ctx, id)
	})
	if saveErr != nil {
		c.logger.Warn("failed to persist selected conversation id", "error", saveErr)
		return fmt.Errorf("select conversation: %w", saveErr)
	}
	c.logger.Info("selected conversation", "conversation_id", id.String())
	return nil
}

// Conversations lists the client's conversations. It never fails; an
// unreachable service yields an empty slice.
func (c *Controller) Conversations(ctx context.Context) []domain.ConversationSummary {
	return c.transport.ListConversations(ctx, c.State().Identity)
}

func (c *Controller) timestamp() string {
	return c.now().UTC().Format(time.RFC3339Nano)
}
