package render

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/rickgao/effectwatch/internal/model"
)

type styles struct {
	title       lipgloss.Style
	description lipgloss.Style
	empty       lipgloss.Style
	more        lipgloss.Style
	card        lipgloss.Style
	barBracket  lipgloss.Style
	barEmpty    lipgloss.Style

	// keyed by State.Class()
	state       map[string]lipgloss.Style
	stateBorder map[string]lipgloss.Color
}

func newStyles() styles {
	return styles{
		title:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")),
		description: lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		empty:       lipgloss.NewStyle().Faint(true),
		more:        lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true),
		card:        lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1),
		barBracket:  lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		barEmpty:    lipgloss.NewStyle().Foreground(lipgloss.Color("238")),

		state: map[string]lipgloss.Style{
			"":                          lipgloss.NewStyle().Foreground(lipgloss.Color("159")),
			model.StateWaiting.Class():  lipgloss.NewStyle().Foreground(lipgloss.Color("214")), // Orange
			model.StateApplied.Class():  lipgloss.NewStyle().Foreground(lipgloss.Color("34")),  // Green
			model.StateReverted.Class(): lipgloss.NewStyle().Foreground(lipgloss.Color("244")), // Gray
			model.StateStopped.Class():  lipgloss.NewStyle().Foreground(lipgloss.Color("196")), // Red
		},
		stateBorder: map[string]lipgloss.Color{
			"":                          lipgloss.Color("240"),
			model.StateWaiting.Class():  lipgloss.Color("214"),
			model.StateApplied.Class():  lipgloss.Color("34"),
			model.StateReverted.Class(): lipgloss.Color("240"),
			model.StateStopped.Class():  lipgloss.Color("196"),
		},
	}
}

// stateStyle returns the style for a state class. Unknown classes use the
// style of a record without state.
func (s styles) stateStyle(class string) lipgloss.Style {
	if st, ok := s.state[class]; ok {
		return st
	}
	return s.state[""]
}

func (s styles) borderColor(class string) lipgloss.Color {
	if c, ok := s.stateBorder[class]; ok {
		return c
	}
	return s.stateBorder[""]
}
