// Package resolve implements cascading provider resolution with a
// deterministic fallback and a write-through TTL cache.
//
// A resolution never fails once its input is valid: callers always receive a
// Result tagged either Resolved (an external provider answered) or Fallback
// (a local heuristic produced the value). Provider and cache faults are
// logged and absorbed here.
package resolve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

// Namespace selects a provider list, TTL and fallback policy.
type Namespace string

const (
	Geocoding    Namespace = "geocoding"
	Verification Namespace = "verification"
	Updates      Namespace = "updates"
)

const DefaultTimeout = 8 * time.Second

var (
	// ErrEmptyInput rejects a request before any provider is consulted.
	ErrEmptyInput = errors.New("resolution input is empty")
	ErrNoFallback = errors.New("resolver requires a fallback")
)

// Context carries disambiguation hints drawn from the entity a request
// concerns.
type Context struct {
	EntityID string   `json:"entity_id,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Location string   `json:"location,omitempty"`
}

type Request struct {
	Input   string  `json:"input"`
	Context Context `json:"context"`
}

func (r Request) Validate() error {
	if strings.TrimSpace(r.Input) == "" {
		return ErrEmptyInput
	}
	return nil
}

// Outcome tags how a Result was produced.
type Outcome string

const (
	Resolved Outcome = "resolved"
	Fallback Outcome = "fallback"
)

// Result is the tagged outcome of a resolution. Source and Confidence are set
// for Resolved results, Reason for Fallback ones.
type Result[T any] struct {
	Value      T       `json:"value"`
	Outcome    Outcome `json:"outcome"`
	Source     string  `json:"source,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Reason     string  `json:"reason,omitempty"`
	Cached     bool    `json:"cached"`
}

func (r Result[T]) IsFallback() bool { return r.Outcome == Fallback }

// Answer is what a provider returns on success.
type Answer[T any] struct {
	Value      T
	Confidence float64
}

// Provider is one external capability in a namespace's chain.
type Provider[T any] interface {
	Name() string
	Attempt(ctx context.Context, req Request) (Answer[T], error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc[T any] struct {
	ProviderName string
	Fn           func(ctx context.Context, req Request) (Answer[T], error)
}

func (p ProviderFunc[T]) Name() string { return p.ProviderName }

func (p ProviderFunc[T]) Attempt(ctx context.Context, req Request) (Answer[T], error) {
	return p.Fn(ctx, req)
}

// FallbackFunc always produces a value; the string explains why the
// fallback was used or how the value was derived.
type FallbackFunc[T any] func(req Request) (T, string)

// Cache is the subset of the TTL store a resolver needs. Implementations
// must absorb their own faults.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration)
}

// attempt runs one provider call bounded by timeout. A call that outlives
// its deadline is abandoned; its eventual result lands in a buffered channel
// nobody reads.
func attempt[T any](ctx context.Context, p Provider[T], req Request, timeout time.Duration) (Answer[T], error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type reply struct {
		answer Answer[T]
		err    error
	}
	ch := make(chan reply, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- reply{err: fmt.Errorf("provider panicked: %v", r)}
			}
		}()
		a, err := p.Attempt(ctx, req)
		ch <- reply{answer: a, err: err}
	}()

	select {
	case r := <-ch:
		return r.answer, r.err
	case <-ctx.Done():
		return Answer[T]{}, fmt.Errorf("attempt abandoned: %w", ctx.Err())
	}
}

// once runs a resolution for key, sharing it with any caller that misses on
// the same key while it is in flight. The shared run is detached from the
// caller's cancellation; each provider attempt keeps its own timeout.
func once[T any](ctx context.Context, g *singleflight.Group, key string, run func(context.Context) Result[T]) (Result[T], bool) {
	v, _, shared := g.Do(key, func() (any, error) {
		return run(context.WithoutCancel(ctx)), nil
	})
	return v.(Result[T]), shared
}

func lookup[T any](ctx context.Context, c Cache, key string, logger *slog.Logger) (Result[T], bool) {
	if c == nil {
		return Result[T]{}, false
	}
	raw, ok := c.Get(ctx, key)
	if !ok {
		return Result[T]{}, false
	}
	var res Result[T]
	if err := json.Unmarshal(raw, &res); err != nil {
		logger.Warn("discarding undecodable cache entry", "key", key, "error", err)
		return Result[T]{}, false
	}
	res.Cached = true
	return res, true
}

func store[T any](ctx context.Context, c Cache, key string, ttl time.Duration, res Result[T], logger *slog.Logger) {
	if c == nil {
		return
	}
	res.Cached = false
	raw, err := json.Marshal(res)
	if err != nil {
		logger.Warn("result not cacheable", "key", key, "error", err)
		return
	}
	c.Put(ctx, key, raw, ttl)
}
