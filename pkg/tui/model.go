package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/foodlink/foodlink/pkg/usecase/dashboard"
	"github.com/foodlink/foodlink/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

const (
	headerHeight = 1
	inputHeight  = 3
	statusHeight = 1
	panelRatio   = 3
)

// Sender delivers a user message to the hub
type Sender interface {
	Send(ctx context.Context, text string) error
}

type updateMsg struct{}

type sendResultMsg struct {
	err error
}

// Model is the bubbletea model of the dashboard. It renders dashboard.State and
// forwards input to the Sender; it keeps no conversation state of its own.
type Model struct {
	ctx    context.Context
	sender Sender
	state  *dashboard.State
	title  string

	input    textinput.Model
	viewport viewport.Model
	renderer *glamour.TermRenderer
	style    string

	width, height int
	ready         bool
	selected      int
	status        string
	now           func() time.Time
}

// Option configures Model
type Option func(*Model)

// WithTitle sets the header text
func WithTitle(title string) Option {
	return func(m *Model) { m.title = title }
}

// WithGlamourStyle sets the glamour standard style used for assistant messages
func WithGlamourStyle(style string) Option {
	return func(m *Model) { m.style = style }
}

// WithClock replaces time.Now for relative timestamps
func WithClock(now func() time.Time) Option {
	return func(m *Model) { m.now = now }
}

// New creates the dashboard model
func New(ctx context.Context, sender Sender, state *dashboard.State, opts ...Option) Model {
	input := textinput.New()
	input.Placeholder = "Message FoodLink... (Enter to send, Tab to select a transfer, Ctrl+C to quit)"
	input.Prompt = "> "
	input.Focus()

	m := Model{
		ctx:      ctx,
		sender:   sender,
		state:    state,
		title:    "FoodLink",
		input:    input,
		style:    "dark",
		selected: -1,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.renderer = newRenderer(m.style, 80)
	return m
}

func newRenderer(style string, width int) *glamour.TermRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(max(width, 20)),
	)
	if err != nil {
		return nil
	}
	return r
}

// Run starts the program on the alternate screen and blocks until the user quits
func Run(ctx context.Context, sender Sender, state *dashboard.State, opts ...Option) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(New(ctx, sender, state, opts...), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return goerr.Wrap(err, "dashboard program failed")
	}
	return nil
}

// waitForUpdate blocks until the state reports a change or ctx is done
func waitForUpdate(ctx context.Context, state *dashboard.State) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return nil
		case <-state.Updates():
			return updateMsg{}
		}
	}
}

func (m Model) send(text string) tea.Cmd {
	return func() tea.Msg {
		return sendResultMsg{err: m.sender.Send(m.ctx, text)}
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForUpdate(m.ctx, m.state))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit

		case tea.KeyEnter:
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			m.input.Reset()
			m.status = ""
			return m, m.send(text)

		case tea.KeyTab:
			m.selected = nextSelection(m.selected, len(m.state.Assignments()), 1)
			return m, nil

		case tea.KeyShiftTab:
			m.selected = nextSelection(m.selected, len(m.state.Assignments()), -1)
			return m, nil

		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		chatWidth := m.chatWidth()
		chatHeight := max(msg.Height-headerHeight-inputHeight-statusHeight, 1)
		if !m.ready {
			m.viewport = viewport.New(chatWidth, chatHeight)
			m.ready = true
		} else {
			m.viewport.Width = chatWidth
			m.viewport.Height = chatHeight
		}
		m.input.Width = max(chatWidth-4, 10)
		m.renderer = newRenderer(m.style, chatWidth-4)
		m.refresh()

	case updateMsg:
		m.refresh()
		return m, waitForUpdate(m.ctx, m.state)

	case sendResultMsg:
		if msg.err != nil {
			logging.From(m.ctx).Warn("failed to send message", "error", msg.err)
			if errors.Is(msg.err, dashboard.ErrNotConnected) {
				m.status = "Not connected. The message was kept locally."
			} else {
				m.status = "Failed to send: " + msg.err.Error()
			}
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// nextSelection cycles through n assignments, with -1 meaning nothing selected
func nextSelection(current, n, step int) int {
	if n == 0 {
		return -1
	}
	next := current + step
	switch {
	case next >= n:
		return -1
	case next < -1:
		return n - 1
	}
	return next
}

func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(renderConversation(m.state.Messages(), m.renderer, m.chatWidth()))
	m.viewport.GotoBottom()
}

func (m Model) chatWidth() int {
	if m.width == 0 {
		return 80
	}
	return max(m.width-m.width/panelRatio-1, 20)
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	inputStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
)

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	conn := "● connected"
	if !m.state.Connected() {
		conn = "○ disconnected"
	}
	header := headerStyle.Render(m.title) + "  " + conn

	left := lipgloss.JoinVertical(lipgloss.Left,
		m.viewport.View(),
		inputStyle.Width(m.chatWidth()-2).Render(m.input.View()),
		statusStyle.Render(m.status),
	)

	side := renderPanel(panelData{
		db:            m.state.Database(),
		assignments:   m.state.Assignments(),
		notifications: m.state.Notifications(),
		selected:      m.selected,
		now:           m.now(),
	}, max(m.width/panelRatio, 20))

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		lipgloss.JoinHorizontal(lipgloss.Top, left, " ", side),
	)
}
