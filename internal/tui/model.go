package tui

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/brscn2/aesthetiq-sub001/internal/stylist/stream"
)

type streamMsg struct{ events <-chan stream.Event }
type frameMsg stream.Event
type streamEndMsg struct{}
type streamFailMsg struct{ err error }

// Model is the Bubble Tea model for the stylist chat client.
type Model struct {
	client    *StreamClient
	input     textinput.Model
	viewport  viewport.Model
	lines     []string
	draft     string
	status    string
	userID    string
	sessionID string
	events    <-chan stream.Event
	cancel    context.CancelFunc
	streaming bool
	ready     bool
}

// New creates a new chat model instance.
func New(client *StreamClient, userID, sessionID string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Describe what you're looking for and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		client:    client,
		input:     ti,
		viewport:  vp,
		userID:    userID,
		sessionID: sessionID,
		status:    "Ready. Ask your stylist anything.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window, and stream events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		headerLines := 2 // title + session
		footerLines := 1 // status
		reserved := headerLines + footerLines + ih + 1
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = maxInt(20, msg.Width)
		m.viewport.Height = maxInt(3, vh-th)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
		if msg.String() == "enter" && !m.streaming {
			q := strings.TrimSpace(m.input.Value())
			if q != "" {
				m.lines = append(m.lines, userStyle.Render("You: ")+q)
				m.input.Reset()
				m.streaming = true
				m.status = "Styling..."
				m.refresh()
				return m, m.startTurn(q)
			}
		}

	case streamMsg:
		m.events = msg.events
		return m, m.nextFrame()

	case frameMsg:
		m.apply(stream.Event(msg))
		m.refresh()
		if stream.Event(msg).Terminal() {
			m.finishTurn()
			return m, nil
		}
		return m, m.nextFrame()

	case streamEndMsg:
		if m.streaming {
			m.status = "Connection closed."
			m.finishTurn()
		}
		return m, nil

	case streamFailMsg:
		m.lines = append(m.lines, errStyle.Render("! "+msg.err.Error()))
		m.status = "Request failed."
		m.finishTurn()
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the chat layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("AesthetIQ Stylist")
	session := dimStyle.Render("session: " + m.sessionLabel())
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := inputBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + session + "\n" + transcript + "\n" + input + "\n" + status
}

func (m *Model) startTurn(query string) tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	client, userID, sessionID := m.client, m.userID, m.sessionID
	return func() tea.Msg {
		events, err := client.Stream(ctx, query, userID, sessionID)
		if err != nil {
			return streamFailMsg{err}
		}
		return streamMsg{events}
	}
}

func (m Model) nextFrame() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return streamEndMsg{}
		}
		return frameMsg(ev)
	}
}

func (m *Model) finishTurn() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.events = nil
	m.streaming = false
}

// apply folds one event frame into the view state.
func (m *Model) apply(ev stream.Event) {
	switch ev.Type {
	case stream.EventMetadata:
		if sid := contentString(ev, "session_id"); sid != "" {
			m.sessionID = sid
		}
	case stream.EventStatus:
		m.status = capitalize(contentString(ev, "status"))
	case stream.EventIntent:
		m.status = "Intent: " + contentString(ev, "intent")
	case stream.EventFilters:
		if q := contentString(ev, "semantic_query"); q != "" {
			m.status = fmt.Sprintf("Searching for %q", q)
		}
	case stream.EventItemsFound:
		m.lines = append(m.lines, dimStyle.Render(itemsFoundLine(ev)))
	case stream.EventAnalysis:
		if text := contentString(ev, "analysis"); text != "" {
			m.draft = text
		}
	case stream.EventChunk:
		m.draft += contentString(ev, "text")
	case stream.EventDone:
		final := m.draft
		if final == "" {
			final = contentString(ev, "response")
		}
		if final != "" {
			m.lines = append(m.lines, stylistStyle.Render("Stylist: ")+final, "")
		}
		m.draft = ""
		m.status = "Done. Ask a follow-up."
	case stream.EventError:
		m.lines = append(m.lines, errStyle.Render("! "+contentString(ev, "error")), "")
		m.draft = ""
		m.status = "The stylist hit a problem."
	}
}

func (m *Model) refresh() {
	content := strings.Join(m.lines, "\n")
	if m.draft != "" {
		if content != "" {
			content += "\n"
		}
		content += stylistStyle.Render("Stylist: ") + m.draft
	}
	if content == "" {
		content = dimStyle.Render("No messages yet.")
	}
	width := m.viewport.Width - 2
	if width > 0 {
		content = lipgloss.NewStyle().Width(width).Render(content)
	}
	m.viewport.SetContent(content)
	m.viewport.GotoBottom()
}

func (m Model) sessionLabel() string {
	if m.sessionID == "" {
		return "new"
	}
	if len(m.sessionID) > 8 {
		return m.sessionID[:8]
	}
	return m.sessionID
}

var (
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	userStyle          = lipgloss.NewStyle().Bold(true)
	stylistStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	dimStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func contentString(ev stream.Event, key string) string {
	if s, ok := ev.Content[key].(string); ok {
		return s
	}
	return ""
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

func itemsFoundLine(ev stream.Event) string {
	count := 0
	if n, ok := ev.Content["count"].(float64); ok {
		count = int(n)
	}
	pass := 0
	if n, ok := ev.Content["iteration"].(float64); ok {
		pass = int(n)
	}
	if pass > 0 {
		return fmt.Sprintf("· %d items found (pass %d)", count, pass)
	}
	return fmt.Sprintf("· %d items found", count)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
