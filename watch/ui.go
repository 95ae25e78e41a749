package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ClearAfter is how long a caption stays up without a new update.
const ClearAfter = 3000 * time.Millisecond

type clearMsg struct {
	generation int
}

var (
	captionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF"))
	historyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
	barStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1)
	offlineStyle = barStyle.Background(lipgloss.Color("#A02525"))
)

type Model struct {
	viewport   viewport.Model
	ready      bool
	events     chan tea.Msg
	clearAfter time.Duration

	caption    string
	generation int
	history    []string
	anchorTop  bool
	connected  bool
	logEntries []string
	showLog    bool
}

func NewModel(events chan tea.Msg) Model {
	return Model{
		events:     events,
		clearAfter: ClearAfter,
	}
}

func (m Model) Init() tea.Cmd {
	return waitForEvent(m.events)
}

func waitForEvent(events chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-events
	}
}

// clearLater tags the tick with the current generation so only the
// newest timer clears the caption.
func (m Model) clearLater() tea.Cmd {
	generation := m.generation
	return tea.Tick(m.clearAfter, func(time.Time) tea.Msg {
		return clearMsg{generation: generation}
	})
}

// commit moves the live caption into history.
func (m *Model) commit() {
	if strings.TrimSpace(m.caption) != "" {
		m.history = append(m.history, m.caption)
	}
	m.caption = ""
}

func (m *Model) logf(format string, args ...any) {
	m.logEntries = append(m.logEntries, fmt.Sprintf(format, args...))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "tab":
			m.showLog = !m.showLog
			m.viewport.SetContent(m.contentView())
		}

	case tea.WindowSizeMsg:
		headerHeight := lipgloss.Height(m.headerView())
		footerHeight := lipgloss.Height(m.footerView())
		verticalMarginHeight := headerHeight + footerHeight

		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-verticalMarginHeight)
			m.viewport.YPosition = headerHeight
			m.viewport.SetContent(m.contentView())
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - verticalMarginHeight
		}

	case CaptionMsg:
		m.generation++
		if msg.Text == "" {
			m.commit()
		} else {
			m.caption = msg.Text
			cmds = append(cmds, m.clearLater())
		}
		m.logf("TXT %q", msg.Text)
		m.viewport.SetContent(m.contentView())
		m.viewport.GotoBottom()
		cmds = append(cmds, waitForEvent(m.events))

	case AnchorMsg:
		top := msg.Flag == 1
		if top != m.anchorTop {
			m.logf("POS %d", msg.Flag)
		}
		m.anchorTop = top
		cmds = append(cmds, waitForEvent(m.events))

	case StatusMsg:
		m.connected = msg.Connected
		if msg.Err != nil {
			m.logf("ERR %v", msg.Err)
		}
		cmds = append(cmds, waitForEvent(m.events))

	case clearMsg:
		if msg.generation == m.generation {
			m.commit()
			m.viewport.SetContent(m.contentView())
			m.viewport.GotoBottom()
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if !m.ready {
		return "\n  Connecting..."
	}
	return fmt.Sprintf(
		"%s\n%s\n%s",
		m.headerView(),
		m.viewport.View(),
		m.footerView(),
	)
}

func (m Model) headerView() string {
	style := barStyle
	status := "live"
	if !m.connected {
		style = offlineStyle
		status = "offline"
	}
	title := style.Render("Subtitles · " + status)
	line := strings.Repeat("─", max(0, m.viewport.Width-lipgloss.Width(title)))
	return lipgloss.JoinHorizontal(lipgloss.Center, title, line)
}

func (m Model) footerView() string {
	anchor := "bottom"
	if m.anchorTop {
		anchor = "top"
	}
	info := barStyle.Render(fmt.Sprintf("caption %s · q to quit, Tab for log", anchor))
	line := strings.Repeat("─", max(0, m.viewport.Width-lipgloss.Width(info)))
	return lipgloss.JoinHorizontal(lipgloss.Center, line, info)
}

func (m Model) contentView() string {
	if m.showLog {
		return strings.Join(m.logEntries, "\n")
	}
	return m.captionView()
}

func (m Model) captionView() string {
	var b strings.Builder
	for _, line := range m.history {
		b.WriteString(historyStyle.Render(line))
		b.WriteString("\n")
	}
	if m.caption != "" {
		b.WriteString(captionStyle.Render(m.caption))
	}
	return b.String()
}

// Caption is the text currently on screen.
func (m Model) Caption() string {
	return m.caption
}

func (m Model) History() []string {
	return m.history
}

func (m Model) AnchorTop() bool {
	return m.anchorTop
}
