package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
)

type statusInfo struct {
	now         time.Time
	events      int
	filterLabel string
	connections int
	heartbeat   bool
	lastBeat    time.Time
	joined      bool
	closed      bool
}

func renderStatusBar(info statusInfo, width int) string {
	liveStyle := lipgloss.NewStyle().
		Foreground(colorGreen).
		Bold(true)
	downStyle := lipgloss.NewStyle().
		Foreground(colorAccent).
		Bold(true)

	var state string
	switch {
	case info.closed:
		state = downStyle.Render("closed")
	case info.joined:
		state = liveStyle.Render("live")
	default:
		state = "joining"
	}

	left := fmt.Sprintf(" %s · %d events", state, info.events)
	if info.filterLabel != "All" {
		left += " · " + info.filterLabel
	}
	if info.heartbeat {
		left += fmt.Sprintf(" · %d connected (beat %s)", info.connections, age(info.lastBeat, info.now))
	}

	right := " o open  f filter  c clear  ? help  q quit "

	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	bar := left + fmt.Sprintf("%*s", gap, "") + right

	return statusBarStyle.Width(width).Render(bar)
}

func renderBottomBar(hints string, width int) string {
	right := " " + hints + " "

	gap := width - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	return statusBarStyle.Width(width).Render(fmt.Sprintf("%*s", gap, "") + right)
}
