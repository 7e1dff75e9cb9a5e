// Package tui provides the terminal view of the effect store.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rickgao/effectwatch/internal/connection"
	"github.com/rickgao/effectwatch/internal/effect"
	"github.com/rickgao/effectwatch/internal/render"
)

// StatusInterval is how often the connection status line is refreshed.
const StatusInterval = 500 * time.Millisecond

// StatusSource reports connection state. connection.Manager satisfies it.
type StatusSource interface {
	Stats() connection.ManagerStats
}

// snapshotMsg carries a snapshot from the store subscription.
// ok is false once the subscription is closed.
type snapshotMsg struct {
	snap *effect.Snapshot
	ok   bool
}

type statusTickMsg time.Time

type keyMap struct {
	Quit key.Binding
	Help key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Help, k.Quit}}
}

func defaultKeys() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c", "esc"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
	}
}

// Model is the bubbletea model for the watch view.
type Model struct {
	snapshots <-chan *effect.Snapshot
	status    StatusSource

	spinner spinner.Model
	help    help.Model
	keys    keyMap

	snap     *effect.Snapshot
	conn     connection.ManagerStats
	width    int
	quitting bool

	titleStyle lipgloss.Style
	okStyle    lipgloss.Style
	warnStyle  lipgloss.Style
	metaStyle  lipgloss.Style
}

// New creates the watch view. snapshots is a store subscription; status may
// be nil when there is no connection to report.
func New(snapshots <-chan *effect.Snapshot, status StatusSource) Model {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
	)

	m := Model{
		snapshots:  snapshots,
		status:     status,
		spinner:    s,
		help:       help.New(),
		keys:       defaultKeys(),
		width:      render.DefaultWidth,
		titleStyle: lipgloss.NewStyle().Bold(true),
		okStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
		warnStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		metaStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
	if status != nil {
		m.conn = status.Stats()
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		waitForSnapshot(m.snapshots),
		m.spinner.Tick,
		tickStatus(),
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case snapshotMsg:
		if !msg.ok {
			m.quitting = true
			return m, tea.Quit
		}
		m.snap = msg.snap
		return m, waitForSnapshot(m.snapshots)

	case statusTickMsg:
		if m.status != nil {
			m.conn = m.status.Stats()
		}
		return m, tickStatus()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n\n")

	if m.snap == nil {
		b.WriteString(m.metaStyle.Render("Waiting for effects..."))
	} else {
		b.WriteString(render.List(m.snap.RenderList(), render.Options{
			Width:  m.cardWidth(),
			Hidden: m.snap.Hidden(),
		}))
	}

	b.WriteString("\n\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) header() string {
	title := m.titleStyle.Render("effectwatch")
	if m.status == nil {
		return title
	}

	var state string
	switch m.conn.State {
	case connection.StateConnected:
		state = m.okStyle.Render("● connected")
	case connection.StateConnecting:
		state = m.warnStyle.Render(m.spinner.View() + " connecting")
	default:
		state = m.warnStyle.Render(m.spinner.View() + " reconnecting")
		if m.conn.LastError != "" {
			state += m.metaStyle.Render(fmt.Sprintf(" (%s)", m.conn.LastError))
		}
	}

	meta := m.metaStyle.Render(fmt.Sprintf("attempts: %d  messages: %d", m.conn.Attempts, m.conn.MessagesReceived))
	return lipgloss.JoinHorizontal(lipgloss.Top, title, "  ", state, "  ", meta)
}

func (m Model) cardWidth() int {
	if m.width <= 0 || m.width > render.DefaultWidth*2 {
		return render.DefaultWidth
	}
	return m.width
}

func waitForSnapshot(ch <-chan *effect.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-ch
		return snapshotMsg{snap: snap, ok: ok}
	}
}

func tickStatus() tea.Cmd {
	return tea.Tick(StatusInterval, func(t time.Time) tea.Msg {
		return statusTickMsg(t)
	})
}

// Run shows the watch view until the user quits, ctx is cancelled or the
// subscription closes.
func Run(ctx context.Context, m Model, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)

	_, err := tea.NewProgram(m, opts...).Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
