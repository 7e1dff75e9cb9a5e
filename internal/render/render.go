// Package render maps effect records to their terminal representation.
// It holds no state: every function is a pure mapping from records to text.
package render

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rickgao/effectwatch/internal/model"
)

const (
	DefaultWidth = 48
	minBarWidth  = 5
)

// Options controls list rendering.
type Options struct {
	Width  int // Card width in cells; DefaultWidth when zero
	Hidden int // Tracked records beyond the display cap
}

// ClassName returns the style class of a record: "effect" followed by the
// lower-cased state when a state is set.
func ClassName(state model.State) string {
	if state == model.StateNone {
		return "effect"
	}
	return "effect " + state.Class()
}

// Effect renders one record as a card with its title, description and a
// progress bar styled by state.
func Effect(rec model.EffectRecord, width int) string {
	return renderEffect(rec, width, newStyles())
}

// List renders the render list. An empty list renders a placeholder.
func List(records []model.EffectRecord, opts Options) string {
	s := newStyles()

	if len(records) == 0 {
		return s.empty.Render("No effects running.")
	}

	cards := make([]string, 0, len(records)+1)
	for _, rec := range records {
		cards = append(cards, renderEffect(rec, opts.Width, s))
	}
	if opts.Hidden > 0 {
		cards = append(cards, s.more.Render(fmt.Sprintf("+%d more queued", opts.Hidden)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, cards...)
}

func renderEffect(rec model.EffectRecord, width int, s styles) string {
	if width <= 0 {
		width = DefaultWidth
	}
	class := rec.State.Class()
	inner := width - 4 // border + padding

	title := rec.Title
	if title == "" {
		title = rec.ID
	}

	lines := []string{s.title.Render(truncate(title, inner))}
	if rec.Description != "" {
		lines = append(lines, s.description.Render(truncate(rec.Description, inner)))
	}
	lines = append(lines, progressLine(rec, inner, s))

	return s.card.
		BorderForeground(s.borderColor(class)).
		Width(inner + 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// progressLine renders "[=====-----]  50% applied".
func progressLine(rec model.EffectRecord, width int, s styles) string {
	class := rec.State.Class()
	label := class
	if label == "" {
		label = "scheduled"
	}

	meta := fmt.Sprintf("%3.0f%% %s", clampFraction(rec.Progress)*100, label)
	barWidth := width - lipgloss.Width(meta) - 3
	if barWidth < minBarWidth {
		barWidth = minBarWidth
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		bar(rec.Progress, barWidth, s.stateStyle(class), s),
		" ",
		s.stateStyle(class).Render(meta),
	)
}

// bar renders a bracketed bar of width fill cells for a fraction in [0,1].
func bar(fraction float64, width int, fill lipgloss.Style, s styles) string {
	if width <= 0 {
		return ""
	}

	filled := int(math.Round(float64(width) * clampFraction(fraction)))
	empty := width - filled

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		fill.Render(strings.Repeat("=", filled)),
		s.barEmpty.Render(strings.Repeat("-", empty)),
		s.barBracket.Render("]"),
	)
}

func clampFraction(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func truncate(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r))+1 > width {
		r = r[:len(r)-1]
	}
	return string(r) + "…"
}
