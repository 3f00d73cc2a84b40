// Package server exposes resolution and broadcast over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/geocode"
	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/hub"
	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/logging"
	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/resolve"
	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/updates"
	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/verify"
)

const maxBodyBytes = 1 << 20

type Geocoder interface {
	Resolve(ctx context.Context, text string) (resolve.Result[geocode.Location], error)
}

type Verifier interface {
	Verify(ctx context.Context, reference string, dctx resolve.Context) (resolve.Result[verify.Verdict], error)
}

type UpdateFetcher interface {
	Fetch(ctx context.Context, disasterID string, dctx resolve.Context, limit int) (*updates.Feed, error)
}

type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	Geocoder        Geocoder
	Verifier        Verifier
	Updates         UpdateFetcher
	Hub             *hub.Hub
	Logger          *slog.Logger
}

type Server struct {
	cfg             Config
	httpServer      *http.Server
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

func New(cfg Config) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Hub == nil {
		cfg.Hub = hub.New(hub.WithLogger(cfg.Logger))
	}
	s := &Server{
		cfg:             cfg,
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          logging.OrDiscard(cfg.Logger).With("component", "server"),
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routes. The websocket route is mounted without the
// logging wrapper because the upgrade needs the raw ResponseWriter.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.Handle("/ws", hub.Handler(s.cfg.Hub))
	mux.Handle("POST /geocode", s.logged(s.handleGeocode))
	mux.Handle("POST /verify", s.logged(s.handleVerify))
	mux.Handle("GET /disasters/{id}/updates", s.logged(s.handleUpdates))
	mux.Handle("POST /events/{kind}/{id}", s.logged(s.handleEvent))
	return mux
}

// ListenAndServe runs the HTTP server until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}

	serveErr := make(chan error, 1)
	s.logger.Info("listening", "addr", s.httpServer.Addr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logged(fn http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		fn(rec, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start).Round(time.Millisecond),
		)
	})
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func errorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusServiceUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: errorBody{Code: errorCode(status), Message: msg}})
}

// writeResolveError maps a resolver error to a response. Only input
// validation reaches callers as a client error.
func (s *Server) writeResolveError(w http.ResponseWriter, err error) {
	if errors.Is(err, resolve.ErrEmptyInput) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Error("resolution failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

type geocodeRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Geocoder == nil {
		writeError(w, http.StatusServiceUnavailable, "geocoding is not configured")
		return
	}
	var req geocodeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.cfg.Geocoder.Resolve(r.Context(), req.Text)
	if err != nil {
		s.writeResolveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type verifyRequest struct {
	Reference  string   `json:"reference"`
	DisasterID string   `json:"disaster_id"`
	Tags       []string `json:"tags"`
	Location   string   `json:"location"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Verifier == nil {
		writeError(w, http.StatusServiceUnavailable, "verification is not configured")
		return
	}
	var req verifyRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.cfg.Verifier.Verify(r.Context(), req.Reference, resolve.Context{
		EntityID: req.DisasterID,
		Tags:     req.Tags,
		Location: req.Location,
	})
	if err != nil {
		s.writeResolveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleUpdates(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Updates == nil {
		writeError(w, http.StatusServiceUnavailable, "updates are not configured")
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	q := r.URL.Query()

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", raw))
			return
		}
		limit = n
	}

	f, err := s.cfg.Updates.Fetch(r.Context(), id, resolve.Context{
		Tags:     splitTags(q.Get("tags")),
		Location: q.Get("location"),
	}, limit)
	if err != nil {
		s.writeResolveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func splitTags(raw string) []string {
	var tags []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

type eventRequest struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type eventResponse struct {
	Room      string `json:"room"`
	Type      string `json:"type"`
	Delivered int    `json:"delivered"`
}

// handleEvent lets the entity store announce mutations to a room.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	room := hub.Room(r.PathValue("kind"), r.PathValue("id"))
	if err := room.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req eventRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !hub.KnownEvent(req.Type) || req.Type == hub.EventSystemHeartbeat {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported event type %q", req.Type))
		return
	}

	parent := ""
	if room.Kind == hub.KindDisaster {
		parent = room.ID
	}
	payload, err := hub.DecodePayload(req.Type, req.Payload, parent)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	n := s.cfg.Hub.Publish(room, req.Type, payload)
	writeJSON(w, http.StatusAccepted, eventResponse{Room: room.String(), Type: req.Type, Delivered: n})
}
