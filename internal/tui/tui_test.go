package tui

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/todochat/internal/chat"
	"github.com/ashureev/todochat/internal/domain"
	"github.com/ashureev/todochat/internal/identity"
	"github.com/ashureev/todochat/internal/session"
	"github.com/ashureev/todochat/internal/store"
)

type fakeAssistant struct {
	mu      sync.Mutex
	reply   domain.ExchangeResult
	listing []domain.ConversationSummary
	sent    []string
}

func (f *fakeAssistant) SendChatMessage(_ context.Context, _, text string, _ domain.ConversationID) domain.ExchangeResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return f.reply
}

func (f *fakeAssistant) ListConversations(context.Context, string) []domain.ConversationSummary {
	return f.listing
}

func newController(t *testing.T, assistant *fakeAssistant) (*chat.Controller, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemory()
	ctrl := chat.New(context.Background(), chat.Deps{
		Identity:  identity.NewProvider(mem, nil),
		Sessions:  session.NewStore(mem, nil),
		Transport: assistant,
	})
	return ctrl, mem
}

func typeText(m *Model, text string) {
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

// drain applies the newest controller snapshot to the model.
func drain(t *testing.T, m *Model) {
	t.Helper()
	select {
	case s := <-m.updates:
		m.Update(stateMsg(s))
	case <-time.After(time.Second):
		t.Fatal("no state update")
	}
}

func TestModelShowsWelcomeWhenEmpty(t *testing.T) {
	ctrl, _ := newController(t, &fakeAssistant{})
	m := NewModel(context.Background(), ctrl)
	defer m.Close()

	view := m.View()
	assert.Contains(t, view, appTitle)
	assert.Contains(t, view, "Welcome! I'm your task management assistant.")
	assert.Contains(t, view, "new conversation")
}

func TestModelSubmitRendersExchange(t *testing.T) {
	assistant := &fakeAssistant{reply: domain.ExchangeResult{ConversationID: "7", Response: "Added milk."}}
	ctrl, mem := newController(t, assistant)
	m := NewModel(context.Background(), ctrl)
	defer m.Close()
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})

	typeText(m, "add milk")
	assert.Equal(t, "add milk", ctrl.State().Draft)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Empty(t, m.input.Value())
	assert.IsType(t, submitDoneMsg{}, cmd())
	drain(t, m)

	view := m.View()
	assert.Contains(t, view, "You")
	assert.Contains(t, view, "add milk")
	assert.Contains(t, view, "Assistant")
	assert.Contains(t, view, "Added milk.")
	assert.Contains(t, view, "conversation 7")

	v, ok, err := mem.Get(context.Background(), store.KeyConversationID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "7", v)
}

func TestModelEnterIgnoresBlankInput(t *testing.T) {
	assistant := &fakeAssistant{}
	ctrl, _ := newController(t, assistant)
	m := NewModel(context.Background(), ctrl)
	defer m.Close()

	typeText(m, "   ")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Empty(t, assistant.sent)
}

func TestModelShowsErrorLine(t *testing.T) {
	assistant := &fakeAssistant{reply: domain.ExchangeResult{Err: "db down"}}
	ctrl, _ := newController(t, assistant)
	m := NewModel(context.Background(), ctrl)
	defer m.Close()

	typeText(m, "x")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	cmd()
	drain(t, m)

	assert.Contains(t, m.View(), "Error: db down")
}

func TestModelNewConversation(t *testing.T) {
	assistant := &fakeAssistant{reply: domain.ExchangeResult{ConversationID: "3", Response: "ok"}}
	ctrl, _ := newController(t, assistant)
	require.True(t, ctrl.Submit(context.Background(), "hello"))

	m := NewModel(context.Background(), ctrl)
	defer m.Close()
	assert.Contains(t, m.View(), "hello")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlN})
	m.Update(cmd())
	drain(t, m)

	view := m.View()
	assert.NotContains(t, view, "hello")
	assert.Contains(t, view, "Started a new conversation.")
	assert.True(t, ctrl.State().ActiveConversation.IsZero())
}

func TestModelConversationPicker(t *testing.T) {
	assistant := &fakeAssistant{listing: []domain.ConversationSummary{
		{ID: "4", UpdatedAt: domain.Timestamp{Time: time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)}},
		{ID: "9", UpdatedAt: domain.Timestamp{Time: time.Date(2026, 1, 3, 10, 0, 0, 0, time.UTC)}},
	}}
	ctrl, _ := newController(t, assistant)
	m := NewModel(context.Background(), ctrl)
	defer m.Close()

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlL})
	assert.Contains(t, m.View(), "Loading...")
	m.Update(cmd())

	view := m.View()
	assert.Contains(t, view, historyHeading)
	assert.Contains(t, view, "#4")
	assert.Contains(t, view, "#9")

	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	m.Update(cmd())
	drain(t, m)

	assert.Equal(t, domain.ConversationID("9"), ctrl.State().ActiveConversation)
	assert.Contains(t, m.View(), "Switched to conversation 9.")
}

func TestModelPickerEmpty(t *testing.T) {
	ctrl, _ := newController(t, &fakeAssistant{})
	m := NewModel(context.Background(), ctrl)
	defer m.Close()

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlL})
	m.Update(cmd())
	assert.Contains(t, m.View(), emptyHistory)

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Nil(t, m.picker)
}

func TestModelEscQuits(t *testing.T) {
	ctrl, _ := newController(t, &fakeAssistant{})
	m := NewModel(context.Background(), ctrl)
	defer m.Close()

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestRunPlain(t *testing.T) {
	assistant := &fakeAssistant{
		reply:   domain.ExchangeResult{ConversationID: "7", Response: "Added milk."},
		listing: []domain.ConversationSummary{{ID: "7"}},
	}
	ctrl, _ := newController(t, assistant)

	in := strings.NewReader(strings.Join([]string{
		"add milk",
		"",
		"/history",
		"/use #12",
		"/use",
		"/bogus",
		"/new",
		"/help",
		"/quit",
		"never sent",
	}, "\n"))
	var out bytes.Buffer

	require.NoError(t, RunPlain(context.Background(), ctrl, in, &out))

	got := out.String()
	assert.Contains(t, got, "Welcome!")
	assert.Contains(t, got, "Assistant: Added milk.")
	assert.Contains(t, got, "* #7")
	assert.Contains(t, got, "Now using conversation 12")
	assert.Contains(t, got, "usage: /use <conversation id>")
	assert.Contains(t, got, "unknown command /bogus")
	assert.Contains(t, got, "Started a new conversation.")
	assert.Contains(t, got, "/history       List recent conversations")
	assert.Equal(t, []string{"add milk"}, assistant.sent)
	assert.True(t, ctrl.State().ActiveConversation.IsZero())
}

func TestRunPlainReportsError(t *testing.T) {
	assistant := &fakeAssistant{reply: domain.ExchangeResult{Err: "HTTP 502: Bad Gateway"}}
	ctrl, _ := newController(t, assistant)

	var out bytes.Buffer
	require.NoError(t, RunPlain(context.Background(), ctrl, strings.NewReader("hi\n"), &out))
	assert.Contains(t, out.String(), "Error: HTTP 502: Bad Gateway")
}

func TestRunPlainStopsOnCancel(t *testing.T) {
	ctrl, _ := newController(t, &fakeAssistant{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A reader that never returns.
	r, w := io.Pipe()
	defer w.Close()
	var out bytes.Buffer
	assert.NoError(t, RunPlain(ctx, ctrl, r, &out))
}

func TestReadLinesStopsWhenDone(t *testing.T) {
	done := make(chan struct{})
	lines, errs := readLines(strings.NewReader("one\ntwo\nthree\n"), done)

	assert.Equal(t, "one", <-lines)
	close(done)

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-lines:
			if !ok {
				assert.NoError(t, <-errs)
				return
			}
		case <-deadline:
			t.Fatal("reader goroutine still running after done closed")
		}
	}
}
