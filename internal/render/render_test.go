package render

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/effectwatch/internal/model"
)

func TestClassName(t *testing.T) {
	assert.Equal(t, "effect", ClassName(model.StateNone))
	assert.Equal(t, "effect waiting", ClassName(model.StateWaiting))
	assert.Equal(t, "effect applied", ClassName(model.StateApplied))
	assert.Equal(t, "effect reverted", ClassName(model.StateReverted))
	assert.Equal(t, "effect stopped", ClassName(model.StateStopped))
	assert.Equal(t, "effect running", ClassName("RUNNING"))
}

func TestEffect_ShowsTitleDescriptionAndProgress(t *testing.T) {
	out := Effect(model.EffectRecord{
		ID:          "a",
		Title:       "Fog machine",
		Description: "Stage left",
		Progress:    0.5,
		State:       model.StateApplied,
	}, 40)

	assert.Contains(t, out, "Fog machine")
	assert.Contains(t, out, "Stage left")
	assert.Contains(t, out, " 50% applied")
	assert.NotContains(t, out, "scheduled")
}

func TestEffect_WithoutStateOrTitle(t *testing.T) {
	out := Effect(model.EffectRecord{ID: "e-42"}, 40)

	assert.Contains(t, out, "e-42", "falls back to the id when title is empty")
	assert.Contains(t, out, "  0% scheduled")
}

func TestEffect_RespectsWidth(t *testing.T) {
	out := Effect(model.EffectRecord{
		ID:          "a",
		Title:       strings.Repeat("long title ", 10),
		Description: strings.Repeat("x", 200),
		Progress:    1,
	}, 30)

	for _, line := range strings.Split(out, "\n") {
		assert.LessOrEqual(t, lipgloss.Width(line), 30, "line %q", line)
	}
	assert.Contains(t, out, "…")
}

func TestBar(t *testing.T) {
	s := newStyles()
	fill := lipgloss.NewStyle()

	tests := []struct {
		fraction float64
		want     string
	}{
		{0, "[----------]"},
		{0.5, "[=====-----]"},
		{1, "[==========]"},
		{1.5, "[==========]"},
		{-1, "[----------]"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, bar(tt.fraction, 10, fill, s), "fraction %v", tt.fraction)
	}
	assert.Empty(t, bar(0.5, 0, fill, s))
}

func TestList_Empty(t *testing.T) {
	assert.Equal(t, "No effects running.", List(nil, Options{}))
}

func TestList_RendersInOrderWithHiddenCount(t *testing.T) {
	records := []model.EffectRecord{
		{ID: "1", Title: "First"},
		{ID: "2", Title: "Second", State: model.StateWaiting},
		{ID: "3", Title: "Third", State: model.StateStopped, Progress: 0.25},
	}

	out := List(records, Options{Width: 40, Hidden: 2})

	first := strings.Index(out, "First")
	second := strings.Index(out, "Second")
	third := strings.Index(out, "Third")
	require.True(t, first >= 0 && second >= 0 && third >= 0, out)
	assert.Less(t, first, second)
	assert.Less(t, second, third)
	assert.Contains(t, out, "+2 more queued")
	assert.Contains(t, out, " 25% stopped")
}

func TestList_NoHiddenLine(t *testing.T) {
	out := List([]model.EffectRecord{{ID: "1", Title: "Only"}}, Options{})
	assert.NotContains(t, out, "more queued")
}
