package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func renderDetail(e *entry, width, height, scroll int) string {
	if e == nil {
		return lipglossCenter("Select an event", width, height)
	}

	contentWidth := width - 2
	if contentWidth < 10 {
		contentWidth = 10
	}

	title := detailTitleStyle.Width(contentWidth).Render(e.Type)
	meta := detailMetaStyle.Render(
		fmt.Sprintf("%s · %s", e.Room, e.Emitted.Format("Jan 2 15:04:05")),
	)

	summary := e.Summary
	if summary == "" {
		summary = "(No summary available)"
	}

	body := detailBodyStyle.Width(contentWidth).Render(wrapText(summary, contentWidth))
	payload := detailBodyStyle.Render(prettyPayload(e.Payload))

	content := lipgloss.JoinVertical(lipgloss.Left, title, meta, "", body, "", payload)

	lines := strings.Split(content, "\n")
	if scroll > 0 && scroll < len(lines) {
		lines = lines[scroll:]
	}

	if len(lines) < height {
		lines = append(lines, make([]string, height-len(lines))...)
	} else if len(lines) > height {
		lines = lines[:height]
	}

	return strings.Join(lines, "\n")
}

func prettyPayload(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

func wrapText(s string, width int) string {
	if width <= 0 {
		return s
	}
	words := strings.Fields(s)
	if len(words) == 0 {
		return ""
	}

	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		if len(line)+1+len(w) > width {
			lines = append(lines, line)
			line = w
		} else {
			line += " " + w
		}
	}
	lines = append(lines, line)
	return strings.Join(lines, "\n")
}
