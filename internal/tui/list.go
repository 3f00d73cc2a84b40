package tui

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/hub"
)

// entry is one event frame received from the room.
type entry struct {
	Type     string
	Room     string
	Payload  json.RawMessage
	Emitted  time.Time
	Received time.Time
	Summary  string
	URL      string
}

func newEntry(f hub.Frame, received time.Time) entry {
	e := entry{
		Type:     f.Type,
		Room:     f.Room,
		Payload:  f.Payload,
		Received: received,
		Emitted:  received,
	}
	if f.EmittedAt != nil {
		e.Emitted = *f.EmittedAt
	}
	e.Summary = summarize(f.Type, f.Payload)
	e.URL = firstString(gjson.ParseBytes(f.Payload), "items.0.url", "disaster.url", "resource.url", "url")
	return e
}

// summarize picks a one-line description out of a known payload shape.
func summarize(eventType string, payload json.RawMessage) string {
	p := gjson.ParseBytes(payload)
	switch eventType {
	case hub.EventDisasterUpdated:
		title := firstString(p, "disaster.title", "disaster.name", "disaster.id")
		return strings.TrimSpace(p.Get("action").String() + " " + title)
	case hub.EventResourcesUpdated:
		name := firstString(p, "resource.name", "resource.type", "resource.id")
		return strings.TrimSpace(p.Get("action").String() + " " + name)
	case hub.EventSocialMediaUpdated:
		n := len(p.Get("items").Array())
		top := p.Get("items.0.title").String()
		if top == "" {
			return fmt.Sprintf("%d updates", n)
		}
		return fmt.Sprintf("%d updates, top: %s", n, top)
	}
	if !p.Exists() {
		return ""
	}
	return p.Raw
}

func firstString(r gjson.Result, paths ...string) string {
	for _, path := range paths {
		if v := r.Get(path); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

// age renders how long before now t was, at the resolution a live feed
// needs.
func age(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < 10*time.Second:
		return "now"
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return t.Format("Jan 2 15:04")
	}
}

func renderListItem(e entry, selected bool, width int, now time.Time) string {
	if width < 10 {
		width = 30
	}

	label := e.Summary
	if label == "" {
		label = "(empty payload)"
	}

	var title string
	if selected {
		title = itemSelectedStyle.Render("> " + truncateStr(label, width-4))
	} else {
		title = itemTitleStyle.Render("  " + truncateStr(label, width-4))
	}

	meta := "  " + eventStyle(e.Type).Render(e.Type) + " " + itemTimeStyle.Render("· "+age(e.Emitted, now))

	return title + "\n" + meta
}

func truncateStr(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

func renderList(entries []entry, cursor, height, width int, now time.Time) string {
	if len(entries) == 0 {
		return lipglossCenter("Waiting for events", width, height)
	}

	// Each item is 2 lines + 1 blank line = 3 lines
	itemHeight := 3
	visible := height / itemHeight
	if visible < 1 {
		visible = 1
	}

	start := 0
	if cursor >= visible {
		start = cursor - visible + 1
	}
	end := start + visible
	if end > len(entries) {
		end = len(entries)
		start = end - visible
		if start < 0 {
			start = 0
		}
	}

	var b strings.Builder
	for i := start; i < end; i++ {
		b.WriteString(renderListItem(entries[i], i == cursor, width, now))
		if i < end-1 {
			b.WriteString("\n")
		}
	}

	return b.String()
}

func lipglossCenter(s string, width, height int) string {
	pad := (width - len(s)) / 2
	if pad < 0 {
		pad = 0
	}
	return strings.Repeat("\n", height/3) + strings.Repeat(" ", pad) + s
}
