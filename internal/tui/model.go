package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ashureev/todochat/internal/chat"
	"github.com/ashureev/todochat/internal/domain"
)

const (
	defaultWidth  = 80
	defaultHeight = 24
	// header, status, input and help lines around the log viewport.
	chromeLines = 4
)

type (
	stateMsg chat.State

	submitDoneMsg struct{}

	resetDoneMsg struct{ err error }

	conversationsMsg struct{ items []domain.ConversationSummary }

	selectDoneMsg struct {
		id  domain.ConversationID
		err error
	}
)

// picker is the conversation list overlay opened with ctrl+l.
type picker struct {
	loading bool
	items   []domain.ConversationSummary
	cursor  int
}

// Model is the bubbletea model for the interactive chat screen.
type Model struct {
	ctx         context.Context
	ctrl        Controller
	updates     <-chan chat.State
	unsubscribe func()

	state    chat.State
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	styles   styles

	picker *picker
	notice string
	width  int
	height int
}

// NewModel builds a Model subscribed to ctrl. Call Close when the program
// exits to drop the subscription.
func NewModel(ctx context.Context, ctrl Controller) *Model {
	st := defaultStyles()

	in := textinput.New()
	in.Placeholder = inputHint
	in.Prompt = "› "
	in.CharLimit = 0
	in.Width = defaultWidth - 4
	in.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = st.spinner

	updates, unsubscribe := subscribe(ctrl)

	m := &Model{
		ctx:         ctx,
		ctrl:        ctrl,
		updates:     updates,
		unsubscribe: unsubscribe,
		state:       ctrl.State(),
		input:       in,
		viewport:    viewport.New(defaultWidth, defaultHeight-chromeLines),
		spinner:     sp,
		styles:      st,
		width:       defaultWidth,
		height:      defaultHeight,
	}
	m.input.SetValue(m.state.Draft)
	m.refresh()
	return m
}

// subscribe bridges controller notifications into a channel the program can
// wait on. Only the newest snapshot is kept; each one is a full state.
func subscribe(ctrl Controller) (<-chan chat.State, func()) {
	ch := make(chan chat.State, 1)
	cancel := ctrl.Subscribe(func(s chat.State) {
		select {
		case <-ch:
		default:
		}
		ch <- s
	})
	return ch, cancel
}

func waitForState(ch <-chan chat.State) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-ch)
	}
}

// Close releases the controller subscription.
func (m *Model) Close() {
	m.unsubscribe()
}

func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, waitForState(m.updates)}
	if m.state.Pending {
		cmds = append(cmds, m.spinner.Tick)
	}
	return tea.Batch(cmds...)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case stateMsg:
		wasPending := m.state.Pending
		m.state = chat.State(msg)
		m.refresh()
		cmds := []tea.Cmd{waitForState(m.updates)}
		if m.state.Pending && !wasPending {
			cmds = append(cmds, m.spinner.Tick)
		}
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		if !m.state.Pending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case submitDoneMsg:
		return m, nil

	case resetDoneMsg:
		if msg.err != nil {
			m.notice = "Could not forget the previous conversation: " + msg.err.Error()
		} else {
			m.notice = "Started a new conversation."
		}
		return m, nil

	case conversationsMsg:
		if m.picker != nil {
			m.picker.loading = false
			m.picker.items = msg.items
			m.picker.cursor = 0
		}
		return m, nil

	case selectDoneMsg:
		if msg.err != nil {
			m.notice = "Could not switch conversation: " + msg.err.Error()
		} else {
			m.notice = "Switched to conversation " + msg.id.String() + "."
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var inputCmd, viewCmd tea.Cmd
	m.input, inputCmd = m.input.Update(msg)
	m.viewport, viewCmd = m.viewport.Update(msg)
	return m, tea.Batch(inputCmd, viewCmd)
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}
	if m.picker != nil {
		return m.handlePickerKey(msg)
	}

	switch msg.Type {
	case tea.KeyEsc:
		return m, tea.Quit

	case tea.KeyCtrlN:
		m.notice = ""
		return m, m.startNew()

	case tea.KeyCtrlL:
		m.notice = ""
		m.picker = &picker{loading: true}
		return m, m.listConversations()

	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.KeyEnter:
		text := m.input.Value()
		if !m.state.Accepts(text) {
			return m, nil
		}
		m.notice = ""
		m.input.Reset()
		return m, m.submit(text)
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if after := m.input.Value(); after != before {
		m.ctrl.SetDraft(after)
	}
	return m, cmd
}

func (m *Model) handlePickerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	p := m.picker
	switch msg.String() {
	case "esc", "ctrl+l":
		m.picker = nil
	case "up", "k":
		if p.cursor > 0 {
			p.cursor--
		}
	case "down", "j":
		if p.cursor < len(p.items)-1 {
			p.cursor++
		}
	case "enter":
		if p.loading || len(p.items) == 0 {
			m.picker = nil
			return m, nil
		}
		id := p.items[p.cursor].ID
		m.picker = nil
		return m, m.selectConversation(id)
	}
	return m, nil
}

func (m *Model) submit(text string) tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		ctrl.Submit(ctx, text)
		return submitDoneMsg{}
	}
}

func (m *Model) startNew() tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		return resetDoneMsg{err: ctrl.StartNewConversation(ctx)}
	}
}

func (m *Model) listConversations() tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		return conversationsMsg{items: ctrl.Conversations(ctx)}
	}
}

func (m *Model) selectConversation(id domain.ConversationID) tea.Cmd {
	ctx, ctrl := m.ctx, m.ctrl
	return func() tea.Msg {
		return selectDoneMsg{id: id, err: ctrl.SelectConversation(ctx, id)}
	}
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = max(width-4, 10)
	m.viewport.Width = width
	m.viewport.Height = max(height-chromeLines, 1)
	m.refresh()
}

// refresh re-renders the log into the viewport and keeps it pinned to the
// latest message.
func (m *Model) refresh() {
	m.viewport.SetContent(renderLog(m.state, m.width, m.styles))
	m.viewport.GotoBottom()
}

func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(m.styles.title.Render(appTitle))
	b.WriteString("  ")
	b.WriteString(m.styles.muted.Render(sessionLabel(m.state)))
	b.WriteString("\n")

	if m.picker != nil {
		b.WriteString(m.pickerView())
	} else {
		b.WriteString(m.viewport.View())
	}
	b.WriteString("\n")

	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(m.styles.muted.Render("enter send · ctrl+n new · ctrl+l history · esc quit"))
	return b.String()
}

func (m *Model) statusLine() string {
	switch {
	case m.state.Pending:
		return m.spinner.View() + " " + pendingLabel
	case m.state.LastError != "":
		return m.styles.err.Render("Error: " + m.state.LastError)
	default:
		return m.styles.muted.Render(m.notice)
	}
}

func (m *Model) pickerView() string {
	lines := []string{m.styles.title.Render(historyHeading), ""}
	switch {
	case m.picker.loading:
		lines = append(lines, m.styles.muted.Render("Loading..."))
	case len(m.picker.items) == 0:
		lines = append(lines, m.styles.muted.Render(emptyHistory))
	default:
		for i, item := range m.picker.items {
			line := formatSummary(item, m.state.ActiveConversation)
			if i == m.picker.cursor {
				line = m.styles.selected.Render(line)
			}
			lines = append(lines, line)
		}
	}
	lines = append(lines, "", m.styles.muted.Render("↑/↓ choose · enter open · esc back"))

	height := max(m.height-chromeLines, 1)
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// Run starts the interactive program and blocks until the user quits or ctx
// is cancelled.
func Run(ctx context.Context, ctrl Controller, opts ...tea.ProgramOption) error {
	m := NewModel(ctx, ctrl)
	defer m.Close()

	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	if _, err := tea.NewProgram(m, opts...).Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("run chat ui: %w", err)
	}
	return nil
}
