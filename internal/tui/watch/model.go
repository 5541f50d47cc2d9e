package watch

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/slackline/internal/events"
)

const eventLogDepth = 30

// Model is the main BubbleTea model for the watch TUI.
type Model struct {
	apiURL string
	apiKey string

	width  int
	height int

	health    healthMsg
	connected bool
	eventLog  []events.Event

	spinner spinner.Model
	theme   Theme

	hubEvents chan events.Event
	lastError string
}

// New creates a new watch TUI model.
func New(apiURL, apiKey string) *Model {
	theme := NewDefaultTheme()
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = theme.Highlight

	return &Model{
		apiURL:    apiURL,
		apiKey:    apiKey,
		eventLog:  make([]events.Event, 0, eventLogDepth),
		hubEvents: make(chan events.Event, 100),
		spinner:   sp,
		theme:     theme,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		subscribeToEvents(m.apiURL, m.apiKey, m.hubEvents),
		receiveNextEvent(m.hubEvents),
		func() tea.Msg { return fetchHealth(m.apiURL, m.apiKey) },
		m.spinner.Tick,
		tea.EnterAltScreen,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		e := events.Event(msg)
		m.eventLog = append([]events.Event{e}, m.eventLog...)
		if len(m.eventLog) > eventLogDepth {
			m.eventLog = m.eventLog[:eventLogDepth]
		}
		m.connected = true
		m.lastError = ""
		return m, receiveNextEvent(m.hubEvents)

	case healthMsg:
		m.health = msg
		m.connected = true
		m.lastError = ""
		return m, tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
			return fetchHealth(m.apiURL, m.apiKey)
		})

	case sseDisconnectedMsg:
		m.connected = false
		m.lastError = "SSE disconnected, reconnecting..."
		return m, tea.Tick(3*time.Second, func(t time.Time) tea.Msg {
			return reconnectMsg{}
		})

	case reconnectMsg:
		return m, subscribeToEvents(m.apiURL, m.apiKey, m.hubEvents)

	case errMsg:
		m.lastError = msg.Error()
		return m, tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
			return fetchHealth(m.apiURL, m.apiKey)
		})
	}

	return m, nil
}

func (m Model) View() string {
	if m.width == 0 {
		return "Connecting to slackline..."
	}

	parts := []string{
		m.renderHeader(),
		m.renderEventStream(),
	}
	if m.lastError != "" {
		parts = append(parts, m.theme.StatusFailed.Render(" ⚠ "+m.lastError))
	}
	parts = append(parts, m.theme.Dim.Render(" [q] Quit"))

	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}

func (m Model) renderHeader() string {
	status := m.theme.StatusFailed.Render("DISCONNECTED")
	if m.connected {
		status = m.theme.StatusOK.Render("LIVE")
	}

	line := fmt.Sprintf("%s slackline %s  uptime %s  archived %d  fetches %d",
		m.spinner.View(),
		status,
		(time.Duration(m.health.UptimeSeconds) * time.Second).String(),
		m.health.ArchivedTotal,
		m.health.FetchedTotal,
	)
	return m.theme.Border.Width(m.width - 4).Render(m.theme.Header.Render(line))
}

func (m Model) renderEventStream() string {
	if len(m.eventLog) == 0 {
		return m.theme.Border.Width(m.width - 4).Render(
			lipgloss.JoinVertical(lipgloss.Left,
				m.theme.Title.Render("ACTIVITY"),
				m.theme.Dim.Render("  Waiting for events..."),
			))
	}

	var lines []string
	for i, e := range m.eventLog {
		if i >= m.maxEventRows() {
			break
		}
		lines = append(lines, m.formatEvent(e))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		m.theme.Title.Render("ACTIVITY"),
		lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n")),
	)
	return m.theme.Border.Width(m.width - 4).Render(content)
}

func (m Model) maxEventRows() int {
	rows := m.height - 8
	if rows < 5 {
		rows = 5
	}
	if rows > eventLogDepth {
		rows = eventLogDepth
	}
	return rows
}

func (m Model) formatEvent(e events.Event) string {
	ts := m.theme.Dim.Render(e.At.Format("15:04:05"))

	var typeStyle lipgloss.Style
	switch e.Type {
	case events.TypeEventArchived, events.TypeFetchComplete, events.TypeHandshake:
		typeStyle = m.theme.StatusOK
	case events.TypeFetchFailed, events.TypeFetchDropped:
		typeStyle = m.theme.StatusFailed
	case events.TypeFetchQueued:
		typeStyle = m.theme.Highlight
	default:
		typeStyle = m.theme.StatusQueued
	}
	typeName := typeStyle.Render(fmt.Sprintf("%-18s", e.Type))

	return fmt.Sprintf("%s %s %s", ts, typeName, summarize(e))
}

func summarize(e events.Event) string {
	data := make(map[string]any)
	_ = json.Unmarshal(e.Data, &data)

	var parts []string
	for _, key := range []string{"team_id", "path", "file_id", "type", "error"} {
		if v, ok := data[key].(string); ok && v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		raw := string(e.Data)
		if len(raw) > 60 {
			raw = raw[:60] + "..."
		}
		return raw
	}
	return strings.Join(parts, " ")
}
