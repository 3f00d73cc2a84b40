// Package hub fans events out to subscribers grouped into rooms.
//
// Membership is kept in both directions, room to subscribers and subscriber
// to rooms, so a publish touches only the room's members and a disconnect
// drops every membership without scanning all rooms. Delivery is
// best-effort and at-most-once: events are never queued or replayed and a
// failing subscriber does not affect the others.
package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/logging"
)

var (
	ErrUnknownSubscriber = errors.New("unknown subscriber")
	ErrInvalidRoom       = errors.New("invalid room id")
)

// RoomID identifies a broadcast scope, one entity of one kind.
type RoomID struct {
	Kind string
	ID   string
}

// Room builds a RoomID.
func Room(kind, id string) RoomID {
	return RoomID{Kind: kind, ID: id}
}

func DisasterRoom(id string) RoomID {
	return RoomID{Kind: KindDisaster, ID: id}
}

const KindDisaster = "disaster"

// String is the canonical serialization, "<kind>_<id>".
func (r RoomID) String() string {
	return r.Kind + "_" + r.ID
}

func (r RoomID) Validate() error {
	if r.Kind == "" || r.ID == "" {
		return fmt.Errorf("%w: kind and id are required", ErrInvalidRoom)
	}
	for _, c := range r.Kind {
		if c < 'a' || c > 'z' {
			return fmt.Errorf("%w: kind %q must be lowercase letters", ErrInvalidRoom, r.Kind)
		}
	}
	if strings.ContainsAny(r.ID, " \t\n") {
		return fmt.Errorf("%w: id %q contains whitespace", ErrInvalidRoom, r.ID)
	}
	return nil
}

// ParseRoomID parses "<kind>_<id>". The kind ends at the first underscore so
// ids may contain underscores.
func ParseRoomID(s string) (RoomID, error) {
	kind, id, ok := strings.Cut(strings.TrimSpace(s), "_")
	if !ok {
		return RoomID{}, fmt.Errorf("%w: %q", ErrInvalidRoom, s)
	}
	r := RoomID{Kind: kind, ID: id}
	if err := r.Validate(); err != nil {
		return RoomID{}, err
	}
	return r, nil
}

// Event is one transient push. Room is empty for broadcasts.
type Event struct {
	Room      string    `json:"room,omitempty"`
	Type      string    `json:"type"`
	Payload   any       `json:"payload"`
	EmittedAt time.Time `json:"emitted_at"`
}

// Subscriber is a live connection. Send is called on the publisher's
// goroutine and must not wait on the network.
type Subscriber interface {
	ID() string
	Send(Event) error
}

// NewSubscriberID returns a fresh connection identifier.
func NewSubscriberID() string {
	return uuid.NewString()
}

type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]Subscriber
	rooms       map[RoomID]map[string]struct{}
	memberships map[string]map[RoomID]struct{}

	logger       *slog.Logger
	now          func() time.Time
	writeTimeout time.Duration
}

type Option func(*Hub)

func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) { h.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(h *Hub) { h.now = now }
}

// WithWriteTimeout bounds each websocket write. A peer whose write misses
// the deadline is disconnected.
func WithWriteTimeout(d time.Duration) Option {
	return func(h *Hub) { h.writeTimeout = d }
}

func New(opts ...Option) *Hub {
	h := &Hub{
		subscribers: make(map[string]Subscriber),
		rooms:       make(map[RoomID]map[string]struct{}),
		memberships: make(map[string]map[RoomID]struct{}),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.writeTimeout <= 0 {
		h.writeTimeout = defaultWriteTimeout
	}
	h.logger = logging.OrDiscard(h.logger).With("component", "hub")
	return h
}

// Connect registers a subscriber with no room memberships. Reconnecting an
// existing id replaces the connection and keeps its rooms.
func (h *Hub) Connect(s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[s.ID()] = s
	if _, ok := h.memberships[s.ID()]; !ok {
		h.memberships[s.ID()] = make(map[RoomID]struct{})
	}
}

// Join adds a subscriber to a room. Joining twice is a no-op.
func (h *Hub) Join(subscriberID string, room RoomID) error {
	if err := room.Validate(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	rooms, ok := h.memberships[subscriberID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSubscriber, subscriberID)
	}
	rooms[room] = struct{}{}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]struct{})
		h.rooms[room] = members
	}
	members[subscriberID] = struct{}{}
	return nil
}

// Leave removes a subscriber from a room. Leaving a room it is not in is a
// no-op.
func (h *Hub) Leave(subscriberID string, room RoomID) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	rooms, ok := h.memberships[subscriberID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSubscriber, subscriberID)
	}
	delete(rooms, room)
	h.removeMember(room, subscriberID)
	return nil
}

// removeMember drops a member and deletes the room once empty. Caller holds
// the write lock.
func (h *Hub) removeMember(room RoomID, subscriberID string) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, subscriberID)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// Disconnect forgets a subscriber and all of its memberships.
func (h *Hub) Disconnect(subscriberID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for room := range h.memberships[subscriberID] {
		h.removeMember(room, subscriberID)
	}
	delete(h.memberships, subscriberID)
	delete(h.subscribers, subscriberID)
}

// Publish delivers an event to the current members of room and returns how
// many sends succeeded.
func (h *Hub) Publish(room RoomID, eventType string, payload any) int {
	h.mu.RLock()
	targets := make([]Subscriber, 0, len(h.rooms[room]))
	for id := range h.rooms[room] {
		if s, ok := h.subscribers[id]; ok {
			targets = append(targets, s)
		}
	}
	h.mu.RUnlock()

	ev := Event{Room: room.String(), Type: eventType, Payload: payload, EmittedAt: h.now()}
	return h.deliver(targets, ev)
}

// Broadcast delivers an event to every connected subscriber regardless of
// room.
func (h *Hub) Broadcast(eventType string, payload any) int {
	h.mu.RLock()
	targets := make([]Subscriber, 0, len(h.subscribers))
	for _, s := range h.subscribers {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	return h.deliver(targets, Event{Type: eventType, Payload: payload, EmittedAt: h.now()})
}

func (h *Hub) deliver(targets []Subscriber, ev Event) int {
	delivered := 0
	for _, s := range targets {
		if err := s.Send(ev); err != nil {
			h.logger.Warn("delivery failed", "subscriber", s.ID(), "type", ev.Type, "room", ev.Room, "error", err)
			continue
		}
		delivered++
	}
	return delivered
}

// Connections returns the number of connected subscribers.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Members returns the sorted subscriber ids in room.
func (h *Hub) Members(room RoomID) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.rooms[room]))
	for id := range h.rooms[room] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Rooms returns the rooms a subscriber belongs to, sorted by their string
// form.
func (h *Hub) Rooms(subscriberID string) []RoomID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]RoomID, 0, len(h.memberships[subscriberID]))
	for r := range h.memberships[subscriberID] {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Heartbeat sends one system_heartbeat to every subscriber.
func (h *Hub) Heartbeat() int {
	return h.Broadcast(EventSystemHeartbeat, HeartbeatPayload{
		Timestamp:         h.now(),
		ActiveConnections: h.Connections(),
	})
}

// RunHeartbeat broadcasts a heartbeat every interval until ctx is done.
func RunHeartbeat(ctx context.Context, h *Hub, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := h.Heartbeat()
			h.logger.Debug("heartbeat", "delivered", n)
		}
	}
}
