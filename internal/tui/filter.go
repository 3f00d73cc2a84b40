package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// typeFilter hides event types from the list. Nothing selected shows all.
type typeFilter struct {
	types    []string
	selected []bool
	editing  bool
	cursor   int
}

func newTypeFilter(types ...string) typeFilter {
	return typeFilter{types: types, selected: make([]bool, len(types))}
}

func (f *typeFilter) move(delta int) {
	f.cursor = max(0, min(f.cursor+delta, len(f.types)-1))
}

func (f *typeFilter) toggleAt(i int) bool {
	if i < 0 || i >= len(f.types) {
		return false
	}
	f.selected[i] = !f.selected[i]
	return true
}

func (f *typeFilter) narrowed() bool {
	for _, on := range f.selected {
		if on {
			return true
		}
	}
	return false
}

func (f *typeFilter) passes(eventType string) bool {
	if !f.narrowed() {
		return true
	}
	for i, t := range f.types {
		if t == eventType {
			return f.selected[i]
		}
	}
	return false
}

func (f *typeFilter) label() string {
	var names []string
	for i, t := range f.types {
		if f.selected[i] {
			names = append(names, t)
		}
	}
	if len(names) == 0 {
		return "All"
	}
	return strings.Join(names, "+")
}

// render draws one chip per type with the number of received entries of
// that type; chips that do not fit in width are dropped from the right.
func (f *typeFilter) render(width int, counts map[string]int) string {
	chips := make([]string, 0, len(f.types)+1)
	allStyle := tabInactiveStyle
	if !f.narrowed() {
		allStyle = tabActiveStyle
	}
	chips = append(chips, allStyle.Render("All"))

	for i, t := range f.types {
		text := fmt.Sprintf("%d %s (%d)", i+1, t, counts[t])
		if f.editing && i == f.cursor {
			text = "[" + text + "]"
		}
		style := tabInactiveStyle
		if f.selected[i] {
			style = eventStyle(t).Bold(true)
		}
		chips = append(chips, style.Render(text))
	}

	sep := tabSeparatorStyle.Render(" | ")
	row := chips[0]
	for _, c := range chips[1:] {
		if lipgloss.Width(row+sep+c) > width-1 {
			break
		}
		row += sep + c
	}

	return lipgloss.NewStyle().
		Background(colorTabBg).
		Width(width).
		PaddingLeft(1).
		Render(row)
}
