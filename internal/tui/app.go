package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tidwall/gjson"

	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/browser"
	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/hub"
)

// maxEntries bounds the in-memory event log; older entries are dropped.
const maxEntries = 500

// Conn is the subscriber side of the websocket transport.
type Conn interface {
	Join(room hub.RoomID, requestID string) error
	Next() (hub.Frame, error)
	Close() error
}

type focusPane int

const (
	focusList focusPane = iota
	focusDetail
)

type mode int

const (
	modeNormal mode = iota
	modeFilter
	modeHelp
)

type App struct {
	conn   Conn
	room   hub.RoomID
	server string
	now    func() time.Time
	open   func(url string) error

	entries []entry // newest first
	cursor  int
	focus   focusPane
	mode    mode

	width  int
	height int

	spinner spinner.Model
	filter  typeFilter

	joined       bool
	closed       bool
	connections  int
	heartbeat    bool
	lastBeat     time.Time
	detailScroll int
	err          error
}

// RunOpts holds all parameters for launching the monitor.
type RunOpts struct {
	Conn   Conn
	Room   hub.RoomID
	Server string
	Now    func() time.Time
	// Open launches a link; defaults to the system browser.
	Open func(url string) error
}

func NewApp(opts RunOpts) *App {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = spinnerStyle

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	open := opts.Open
	if open == nil {
		open = browser.Open
	}

	return &App{
		conn:   opts.Conn,
		room:   opts.Room,
		server: opts.Server,
		now:    now,
		open:   open,
		filter: newTypeFilter(
			hub.EventDisasterUpdated,
			hub.EventResourcesUpdated,
			hub.EventSocialMediaUpdated,
		),
		spinner: sp,
	}
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.joinCmd(), a.waitForFrame(), a.spinner.Tick)
}

func (a *App) joinCmd() tea.Cmd {
	conn, room := a.conn, a.room
	return func() tea.Msg {
		if err := conn.Join(room, "watch-"+hub.NewSubscriberID()); err != nil {
			return joinErrMsg{err: err}
		}
		return nil
	}
}

func (a *App) waitForFrame() tea.Cmd {
	conn := a.conn
	return func() tea.Msg {
		f, err := conn.Next()
		if err != nil {
			return connErrMsg{err: err}
		}
		return frameMsg{frame: f}
	}
}

func (a *App) openLinkCmd(url string) tea.Cmd {
	open := a.open
	return func() tea.Msg {
		if err := open(url); err != nil {
			return openErrMsg{err: err}
		}
		return nil
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case tea.KeyMsg:
		// Clear sticky error on any keypress
		a.err = nil
		return a.handleKey(msg)

	case frameMsg:
		a.handleFrame(msg.frame)
		return a, a.waitForFrame()

	case joinErrMsg:
		a.err = fmt.Errorf("joining %s: %w", a.room, msg.err)
		return a, nil

	case openErrMsg:
		a.err = msg.err
		return a, nil

	case connErrMsg:
		a.closed = true
		a.err = fmt.Errorf("connection closed: %w", msg.err)
		return a, nil

	case spinner.TickMsg:
		if !a.joined && !a.closed {
			var cmd tea.Cmd
			a.spinner, cmd = a.spinner.Update(msg)
			return a, cmd
		}
		return a, nil
	}

	return a, nil
}

func (a *App) handleFrame(f hub.Frame) {
	switch f.Type {
	case hub.FrameAck:
		if gjson.GetBytes(f.Payload, "action").String() == hub.FrameJoinRoom {
			a.joined = true
		}
	case hub.FrameError:
		msg := gjson.GetBytes(f.Payload, "message").String()
		if msg == "" {
			msg = "server error"
		}
		a.err = errors.New(msg)
	case hub.EventSystemHeartbeat:
		a.heartbeat = true
		a.connections = int(gjson.GetBytes(f.Payload, "active_connections").Int())
		a.lastBeat = a.now()
	default:
		e := newEntry(f, a.now())
		a.entries = append([]entry{e}, a.entries...)
		if len(a.entries) > maxEntries {
			a.entries = a.entries[:maxEntries]
		}
		// Keep the selection on the same entry when a visible one arrives above it.
		if a.cursor > 0 && a.filter.passes(e.Type) {
			a.cursor = min(a.cursor+1, len(a.visible())-1)
		}
	}
}

func (a *App) typeCounts() map[string]int {
	counts := make(map[string]int, len(a.filter.types))
	for _, e := range a.entries {
		counts[e.Type]++
	}
	return counts
}

// visible returns the entries that pass the type filter.
func (a *App) visible() []entry {
	if !a.filter.narrowed() {
		return a.entries
	}
	var out []entry
	for _, e := range a.entries {
		if a.filter.passes(e.Type) {
			out = append(out, e)
		}
	}
	return out
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return a, tea.Quit
	}

	switch a.mode {
	case modeFilter:
		return a.handleFilterKey(msg)
	case modeHelp:
		if msg.String() == "?" || msg.String() == "esc" || msg.String() == "q" {
			a.mode = modeNormal
		}
		return a, nil
	}

	switch msg.String() {
	case "q":
		return a, tea.Quit
	case "j", "down":
		if a.focus == focusList && a.cursor < len(a.visible())-1 {
			a.cursor++
			a.detailScroll = 0
		} else if a.focus == focusDetail {
			a.detailScroll++
		}
		return a, nil
	case "k", "up":
		if a.focus == focusList && a.cursor > 0 {
			a.cursor--
			a.detailScroll = 0
		} else if a.focus == focusDetail && a.detailScroll > 0 {
			a.detailScroll--
		}
		return a, nil
	case "g":
		a.cursor = 0
		a.detailScroll = 0
		return a, nil
	case "tab":
		if a.focus == focusList {
			a.focus = focusDetail
		} else {
			a.focus = focusList
		}
		return a, nil
	case "o", "enter":
		entries := a.visible()
		if a.cursor < len(entries) && entries[a.cursor].URL != "" {
			return a, a.openLinkCmd(entries[a.cursor].URL)
		}
		return a, nil
	case "c":
		a.entries = nil
		a.cursor = 0
		a.detailScroll = 0
		return a, nil
	case "f":
		a.mode = modeFilter
		a.filter.editing = true
		return a, nil
	case "?":
		a.mode = modeHelp
		return a, nil
	}

	return a, nil
}

func (a *App) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "f":
		a.mode = modeNormal
		a.filter.editing = false
		return a, nil
	case "left", "h":
		a.filter.move(-1)
		return a, nil
	case "right", "l":
		a.filter.move(1)
		return a, nil
	case " ", "enter":
		if a.filter.toggleAt(a.filter.cursor) {
			a.cursor = 0
		}
		return a, nil
	case "1", "2", "3":
		if a.filter.toggleAt(int(msg.String()[0] - '1')) {
			a.cursor = 0
		}
		return a, nil
	}
	return a, nil
}

func (a *App) withBottomBar(content string, hints string) string {
	bar := renderBottomBar(hints, a.width)
	lines := strings.Split(content, "\n")
	for len(lines) < a.height-1 {
		lines = append(lines, "")
	}
	if len(lines) >= a.height {
		lines = lines[:a.height-1]
	}
	lines = append(lines, bar)
	return strings.Join(lines, "\n")
}

func (a *App) View() string {
	if a.width == 0 {
		return lipgloss.NewStyle().Foreground(colorAccent).Render("  drc watch")
	}

	if a.mode == modeHelp {
		return a.withBottomBar(a.renderHelp(), "? close  q quit")
	}

	headerHeight := 1
	filterHeight := 1
	statusHeight := 1
	contentHeight := a.height - headerHeight - filterHeight - statusHeight - 4 // borders

	listWidth := int(float64(a.width) * 0.4)
	detailWidth := a.width - listWidth - 1

	if contentHeight < 3 {
		contentHeight = 3
	}

	headerLeft := headerStyle.Render("drc watch")
	if !a.joined && !a.closed {
		headerLeft += " " + a.spinner.View()
	}
	headerRight := headerRoomStyle.Render(a.room.String() + " @ " + a.server)
	headerGap := a.width - lipgloss.Width(headerLeft) - lipgloss.Width(headerRight)
	if headerGap < 0 {
		headerGap = 0
	}
	header := headerLeft + fmt.Sprintf("%*s", headerGap, "") + headerRight

	filter := a.filter.render(a.width, a.typeCounts())

	entries := a.visible()
	innerListW := listWidth - 4
	listContent := renderList(entries, a.cursor, contentHeight, innerListW, a.now())

	var listPane string
	if a.focus == focusList {
		listPane = listPaneActiveStyle.Width(listWidth - 2).Height(contentHeight).Render(listContent)
	} else {
		listPane = listPaneStyle.Width(listWidth - 2).Height(contentHeight).Render(listContent)
	}

	var selected *entry
	if len(entries) > 0 && a.cursor < len(entries) {
		selected = &entries[a.cursor]
	}
	detailContent := renderDetail(selected, detailWidth-4, contentHeight, a.detailScroll)

	var detailPane string
	if a.focus == focusDetail {
		detailPane = detailPaneActiveStyle.Width(detailWidth - 2).Height(contentHeight).Render(detailContent)
	} else {
		detailPane = detailPaneStyle.Width(detailWidth - 2).Height(contentHeight).Render(detailContent)
	}

	content := lipgloss.JoinHorizontal(lipgloss.Top, listPane, detailPane)

	status := renderStatusBar(statusInfo{
		now:         a.now(),
		events:      len(entries),
		filterLabel: a.filter.label(),
		connections: a.connections,
		heartbeat:   a.heartbeat,
		lastBeat:    a.lastBeat,
		joined:      a.joined,
		closed:      a.closed,
	}, a.width)

	if a.err != nil {
		status = lipgloss.NewStyle().Foreground(colorAccent).Render(a.err.Error())
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, filter, content, status)
}

func (a *App) renderHelp() string {
	title := lipgloss.NewStyle().Foreground(colorAccent).Bold(true).Render("drc watch")
	dim := helpDimStyle

	help := title + dim.Render(" · Keyboard Shortcuts") + "\n\n" +
		dim.Render("Navigation") + "\n" +
		"  j/k, ↑/↓     Navigate event list\n" +
		"  g             Jump to newest event\n" +
		"  tab           Switch focus between list and detail\n\n" +
		dim.Render("Actions") + "\n" +
		"  o, enter      Open the event's link in browser\n" +
		"  c             Clear the event log\n" +
		"  f             Toggle event type filter mode\n\n" +
		dim.Render("Filter Mode") + "\n" +
		"  ←/→, h/l     Move between event types\n" +
		"  space/enter   Toggle event type\n" +
		"  1-3           Toggle event type by number\n" +
		"  esc, f        Exit filter mode\n\n" +
		dim.Render("General") + "\n" +
		"  ?             Toggle this help\n" +
		"  q, ctrl+c    Quit"

	card := helpCardStyle.Render(help)

	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, card)
}

// Run starts the monitor and closes conn when it exits.
func Run(opts RunOpts) error {
	defer opts.Conn.Close()
	app := NewApp(opts)
	p := tea.NewProgram(app, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
