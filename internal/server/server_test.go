package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/cache"
	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/feed"
	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/geocode"
	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/hub"
	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/resolve"
	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/updates"
	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/verify"
)

func newTestServer(t *testing.T) (*httptest.Server, *hub.Hub) {
	t.Helper()
	store := cache.NewStore(cache.NewMemory())
	h := hub.New()

	geo, err := geocode.New(geocode.Config{Cache: store, TTL: time.Hour})
	require.NoError(t, err)
	ver, err := verify.New(verify.Config{Cache: store, TTL: time.Hour})
	require.NoError(t, err)
	upd, err := updates.New(updates.Config{
		Providers: []resolve.Provider[[]feed.Item]{resolve.ProviderFunc[[]feed.Item]{
			ProviderName: "offline",
			Fn: func(context.Context, resolve.Request) (resolve.Answer[[]feed.Item], error) {
				return resolve.Answer[[]feed.Item]{}, errors.New("offline")
			},
		}},
		Cache:     store,
		TTL:       time.Minute,
		Publisher: h,
	})
	require.NoError(t, err)

	s := New(Config{Geocoder: geo, Verifier: ver, Updates: upd, Hub: h})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv, h
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestUp(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/up")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGeocodeFallback(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/geocode", `{"text":"Flooding near Manhattan, NYC, need food"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res resolve.Result[geocode.Location]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, resolve.Fallback, res.Outcome)
	assert.Contains(t, res.Value.Name, "Manhattan")
	assert.Equal(t, "mock", res.Value.Service)
	assert.False(t, res.Cached)

	again := postJSON(t, srv.URL+"/geocode", `{"text":"flooding near  Manhattan, NYC, need food"}`)
	require.NoError(t, json.NewDecoder(again.Body).Decode(&res))
	assert.True(t, res.Cached)
}

func TestGeocodeRejectsEmptyText(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/geocode", `{"text":"   "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var e errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
	assert.Equal(t, "invalid_request", e.Error.Code)
	assert.Contains(t, e.Error.Message, "empty")
}

func TestGeocodeRejectsMalformedBody(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := postJSON(t, srv.URL+"/geocode", `{"text":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestVerify(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/verify", `{"reference":"https://img.example/deepfake.png","disaster_id":"42","tags":["flood"]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res resolve.Result[verify.Verdict]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, resolve.Fallback, res.Outcome)
	assert.Equal(t, verify.StatusFake, res.Value.Status)
}

func TestUpdatesPublishesToRoom(t *testing.T) {
	srv, h := newTestServer(t)
	rec := &recordingSubscriber{id: "watcher"}
	h.Connect(rec)
	require.NoError(t, h.Join("watcher", hub.DisasterRoom("42")))

	resp, err := http.Get(srv.URL + "/disasters/42/updates?tags=flood,shelter&location=Manhattan&limit=2")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var f updates.Feed
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&f))
	assert.Equal(t, "42", f.DisasterID)
	assert.Equal(t, resolve.Fallback, f.Outcome)
	assert.LessOrEqual(t, len(f.Updates), 2)
	assert.Equal(t, 1, f.Delivered)

	got := rec.received()
	require.Len(t, got, 1)
	assert.Equal(t, hub.EventSocialMediaUpdated, got[0].Type)
}

func TestUpdatesRejectsBadLimit(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/disasters/42/updates?limit=many")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEventIngress(t *testing.T) {
	srv, h := newTestServer(t)
	rec := &recordingSubscriber{id: "w"}
	h.Connect(rec)
	require.NoError(t, h.Join("w", hub.DisasterRoom("42")))

	resp := postJSON(t, srv.URL+"/events/disaster/42", `{"type":"resources_updated","payload":{"action":"create","resource":{"name":"Red Cross Shelter"}}}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var out eventResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, eventResponse{Room: "disaster_42", Type: "resources_updated", Delivered: 1}, out)
	got := rec.received()
	require.Len(t, got, 1)
	assert.Equal(t, "disaster_42", got[0].Room)
	payload, ok := got[0].Payload.(hub.ResourcesUpdatedPayload)
	require.True(t, ok)
	assert.Equal(t, "42", payload.DisasterID, "parent filled from the room")
	assert.Equal(t, "create", payload.Action)
}

func TestEventIngressRejects(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name string
		path string
		body string
	}{
		{"unknown type", "/events/disaster/42", `{"type":"party"}`},
		{"heartbeat", "/events/disaster/42", `{"type":"system_heartbeat"}`},
		{"bad kind", "/events/Disaster/42", `{"type":"disaster_updated"}`},
		{"bad body", "/events/disaster/42", `nope`},
		{"missing payload", "/events/disaster/42", `{"type":"disaster_updated"}`},
		{"bad action", "/events/disaster/42", `{"type":"disaster_updated","payload":{"action":"explode","disaster":{"id":"42"}}}`},
		{"resource missing", "/events/disaster/42", `{"type":"resources_updated","payload":{"action":"create"}}`},
		{"items not a list", "/events/disaster/42", `{"type":"social_media_updated","payload":{"items":"lots"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestMissingServices(t *testing.T) {
	srv := httptest.NewServer(New(Config{}).Handler())
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/geocode", `{"text":"x"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestListenAndServeShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	s := New(Config{Addr: addr, ShutdownTimeout: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/up")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
}

type recordingSubscriber struct {
	id     string
	mu     sync.Mutex
	events []hub.Event
}

func (r *recordingSubscriber) ID() string { return r.id }

func (r *recordingSubscriber) Send(ev hub.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingSubscriber) received() []hub.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]hub.Event(nil), r.events...)
}
