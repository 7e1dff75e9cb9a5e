package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/effectwatch/internal/connection"
	"github.com/rickgao/effectwatch/internal/effect"
	"github.com/rickgao/effectwatch/internal/model"
)

type fakeStatus struct {
	stats connection.ManagerStats
}

func (f *fakeStatus) Stats() connection.ManagerStats { return f.stats }

func storeWith(t *testing.T, ids ...string) *effect.Store {
	t.Helper()
	s := effect.NewStore(effect.DefaultConfig(), nil)
	for _, id := range ids {
		s.ApplySchedule(model.ScheduleEvent{ID: id, Title: "Effect " + id})
	}
	return s
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok, "Update returned %T", next)
	return out, cmd
}

func TestModel_InitialView(t *testing.T) {
	m := New(make(chan *effect.Snapshot), nil)

	view := m.View()
	assert.Contains(t, view, "effectwatch")
	assert.Contains(t, view, "Waiting for effects...")
	assert.NotNil(t, m.Init())
}

func TestModel_SnapshotRendersList(t *testing.T) {
	store := storeWith(t, "1", "2", "3", "4", "5")
	ch, cancel := store.Subscribe()
	defer cancel()

	m := New(ch, nil)
	m, cmd := update(t, m, snapshotMsg{snap: <-ch, ok: true})
	assert.NotNil(t, cmd, "should keep listening for snapshots")

	view := m.View()
	for _, id := range []string{"1", "2", "3", "4"} {
		assert.Contains(t, view, "Effect "+id)
	}
	assert.NotContains(t, view, "Effect 5")
	assert.Contains(t, view, "+1 more queued")
}

func TestModel_ClosedSubscriptionQuits(t *testing.T) {
	m := New(make(chan *effect.Snapshot), nil)

	m, cmd := update(t, m, snapshotMsg{ok: false})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.Empty(t, m.View())
}

func TestModel_QuitKeys(t *testing.T) {
	for _, msg := range []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune("q")},
		{Type: tea.KeyCtrlC},
		{Type: tea.KeyEsc},
	} {
		m := New(make(chan *effect.Snapshot), nil)
		m, cmd := update(t, m, msg)
		require.NotNil(t, cmd, "key %q", msg.String())
		assert.Equal(t, tea.Quit(), cmd(), "key %q", msg.String())
		assert.True(t, m.quitting)
	}
}

func TestModel_HelpToggle(t *testing.T) {
	m := New(make(chan *effect.Snapshot), nil)
	assert.False(t, m.help.ShowAll)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("?")})
	assert.True(t, m.help.ShowAll)
}

func TestModel_StatusHeader(t *testing.T) {
	status := &fakeStatus{stats: connection.ManagerStats{
		State:     connection.StateDisconnected,
		Attempts:  3,
		LastError: "connect: dial: refused",
	}}
	m := New(make(chan *effect.Snapshot), status)

	view := m.View()
	assert.Contains(t, view, "reconnecting")
	assert.Contains(t, view, "refused")
	assert.Contains(t, view, "attempts: 3")

	status.stats = connection.ManagerStats{State: connection.StateConnected, Attempts: 4, MessagesReceived: 12}
	m, cmd := update(t, m, statusTickMsg{})
	assert.NotNil(t, cmd, "status tick should reschedule itself")

	view = m.View()
	assert.Contains(t, view, "● connected")
	assert.Contains(t, view, "messages: 12")
}

func TestModel_WindowSize(t *testing.T) {
	m := New(make(chan *effect.Snapshot), nil)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 60, Height: 20})

	assert.Equal(t, 60, m.width)
	assert.Equal(t, 60, m.cardWidth())

	m, _ = update(t, m, tea.WindowSizeMsg{Width: 400, Height: 20})
	assert.Equal(t, 48, m.cardWidth())
}
