package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/websocket"
)

const (
	FrameJoinRoom  = "join_room"
	FrameLeaveRoom = "leave_room"
	FrameAck       = "ack"
	FrameError     = "error"
)

const (
	maxFramePayloadBytes   = 16 * 1024
	maxFramesPerSecond     = 40
	maxDecodeErrorsPerConn = 3
	peerQueueSize          = 32
	defaultWriteTimeout    = 10 * time.Second
)

var (
	// ErrSlowSubscriber is returned when a peer's outbound queue is full.
	// The peer is closed.
	ErrSlowSubscriber = errors.New("subscriber is not keeping up")
	errPeerClosed     = errors.New("subscriber connection closed")
)

// Frame is the wire shape of every websocket message in both directions.
type Frame struct {
	Type      string          `json:"type"`
	Room      string          `json:"room,omitempty"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	EmittedAt *time.Time      `json:"emitted_at,omitempty"`
}

type AckPayload struct {
	Action string `json:"action"`
	Room   string `json:"room"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// wsPeer is a websocket connection registered with the hub. Frames are
// queued and written by the peer's own writer goroutine, so Send never
// waits on the socket.
type wsPeer struct {
	id           string
	conn         *websocket.Conn
	out          chan Frame
	flush        chan struct{}
	stopped      chan struct{}
	done         chan struct{}
	closeOnce    sync.Once
	writeTimeout time.Duration
}

func newWSPeer(id string, conn *websocket.Conn, writeTimeout time.Duration) *wsPeer {
	return &wsPeer{
		id:           id,
		conn:         conn,
		out:          make(chan Frame, peerQueueSize),
		flush:        make(chan struct{}),
		stopped:      make(chan struct{}),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
	}
}

func (p *wsPeer) ID() string { return p.id }

func (p *wsPeer) Send(ev Event) error {
	emitted := ev.EmittedAt
	return p.writeFrame(Frame{
		Type:      ev.Type,
		Room:      ev.Room,
		Payload:   mustJSON(ev.Payload),
		EmittedAt: &emitted,
	})
}

func (p *wsPeer) writeFrame(frame Frame) error {
	select {
	case <-p.done:
		return errPeerClosed
	default:
	}
	select {
	case p.out <- frame:
		return nil
	case <-p.done:
		return errPeerClosed
	default:
		p.close()
		return ErrSlowSubscriber
	}
}

func (p *wsPeer) writeLoop(logger *slog.Logger) {
	defer close(p.stopped)
	for {
		select {
		case <-p.done:
			return
		case frame := <-p.out:
			if !p.write(frame, logger) {
				return
			}
		case <-p.flush:
			for {
				select {
				case frame := <-p.out:
					if !p.write(frame, logger) {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (p *wsPeer) write(frame Frame, logger *slog.Logger) bool {
	_ = p.conn.SetWriteDeadline(time.Now().Add(p.writeTimeout))
	if err := websocket.JSON.Send(p.conn, frame); err != nil {
		logger.Warn("websocket write failed", "error", err)
		p.close()
		return false
	}
	return true
}

// shutdown writes whatever is still queued, bounded by the write timeout,
// then closes the peer.
func (p *wsPeer) shutdown() {
	close(p.flush)
	select {
	case <-p.stopped:
	case <-time.After(p.writeTimeout):
	}
	p.close()
}

// close stops the writer and expires both deadlines so a blocked read or
// write returns at once; serveConn then tears the connection down.
func (p *wsPeer) close() {
	p.closeOnce.Do(func() {
		close(p.done)
		_ = p.conn.SetDeadline(time.Now())
	})
}

// Handler serves the websocket transport for h.
func Handler(h *Hub) http.Handler {
	wsHandler := websocket.Handler(func(conn *websocket.Conn) {
		h.serveConn(conn)
	})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		wsHandler.ServeHTTP(w, r)
	})
}

func (h *Hub) serveConn(conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
	}()
	conn.MaxPayloadBytes = maxFramePayloadBytes

	peer := newWSPeer(NewSubscriberID(), conn, h.writeTimeout)
	logger := h.logger.With("subscriber", peer.id)
	go peer.writeLoop(logger)
	defer peer.shutdown()
	h.Connect(peer)
	logger.Info("subscriber connected", "connections", h.Connections())
	defer func() {
		h.Disconnect(peer.id)
		logger.Info("subscriber disconnected", "connections", h.Connections())
	}()

	windowStart := time.Now()
	framesInWindow := 0
	decodeErrors := 0

	for {
		// One message per frame; an oversized or malformed frame does not
		// leave a partial read behind for the next one.
		var data []byte
		err := websocket.Message.Receive(conn, &data)
		if err != nil && !errors.Is(err, websocket.ErrFrameTooLarge) {
			if !errors.Is(err, io.EOF) {
				logger.Debug("websocket read failed", "error", err)
			}
			return
		}
		var frame Frame
		if err == nil {
			err = json.Unmarshal(data, &frame)
		}
		if err != nil {
			decodeErrors++
			_ = writeWSError(peer, "", "INVALID_ARGUMENT", "invalid frame")
			if decodeErrors >= maxDecodeErrorsPerConn {
				logger.Warn("closing connection after repeated decode errors", "error", err)
				return
			}
			continue
		}
		decodeErrors = 0

		now := time.Now()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesInWindow = 0
		}
		framesInWindow++
		if framesInWindow > maxFramesPerSecond {
			_ = writeWSError(peer, frame.RequestID, "RESOURCE_EXHAUSTED", "rate limit exceeded")
			return
		}

		switch frame.Type {
		case FrameJoinRoom, FrameLeaveRoom:
			h.handleRoomFrame(peer, frame, logger)
		default:
			_ = writeWSError(peer, frame.RequestID, "INVALID_ARGUMENT", "unsupported frame type")
		}
	}
}

func (h *Hub) handleRoomFrame(peer *wsPeer, frame Frame, logger *slog.Logger) {
	room, err := ParseRoomID(frame.Room)
	if err != nil {
		_ = writeWSError(peer, frame.RequestID, "INVALID_ARGUMENT", err.Error())
		return
	}

	if frame.Type == FrameJoinRoom {
		err = h.Join(peer.id, room)
	} else {
		err = h.Leave(peer.id, room)
	}
	if err != nil {
		_ = writeWSError(peer, frame.RequestID, "FAILED_PRECONDITION", err.Error())
		return
	}
	logger.Debug("membership changed", "action", frame.Type, "room", room.String())

	_ = peer.writeFrame(Frame{
		Type:      FrameAck,
		RequestID: frame.RequestID,
		Payload:   mustJSON(AckPayload{Action: frame.Type, Room: room.String()}),
	})
}

func writeWSError(peer *wsPeer, requestID, code, message string) error {
	return peer.writeFrame(Frame{
		Type:      FrameError,
		RequestID: requestID,
		Payload:   mustJSON(ErrorPayload{Code: code, Message: message}),
	})
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal websocket frame payload", "error", err)
		return nil
	}
	return b
}

// Client is a websocket subscriber used by the CLI monitor.
type Client struct {
	conn    *websocket.Conn
	mu      sync.Mutex
	encoder *json.Encoder
}

// Dial connects to the /ws endpoint of a server at baseURL (http or https).
func Dial(baseURL string) (*Client, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	var wsURL string
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		wsURL = "wss://" + strings.TrimPrefix(baseURL, "https://") + "/ws"
	case strings.HasPrefix(baseURL, "http://"):
		wsURL = "ws://" + strings.TrimPrefix(baseURL, "http://") + "/ws"
	default:
		return nil, fmt.Errorf("unsupported server url %q", baseURL)
	}
	conn, err := websocket.Dial(wsURL, "", baseURL)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", wsURL, err)
	}
	return &Client{conn: conn, encoder: json.NewEncoder(conn)}, nil
}

func (c *Client) Join(room RoomID, requestID string) error {
	return c.send(Frame{Type: FrameJoinRoom, Room: room.String(), RequestID: requestID})
}

func (c *Client) Leave(room RoomID, requestID string) error {
	return c.send(Frame{Type: FrameLeaveRoom, Room: room.String(), RequestID: requestID})
}

func (c *Client) send(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.encoder.Encode(f)
}

// Next blocks until the next frame arrives.
func (c *Client) Next() (Frame, error) {
	var f Frame
	if err := websocket.JSON.Receive(c.conn, &f); err != nil {
		return Frame{}, err
	}
	return f, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}
