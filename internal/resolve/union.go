package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/logging"
)

// UnionConfig describes a namespace whose providers each contribute part of
// the answer.
type UnionConfig[E any] struct {
	Namespace Namespace
	Providers []Provider[[]E]
	// Fallback runs only when every provider came back empty or failed.
	Fallback FallbackFunc[[]E]
	Cache    Cache
	TTL      time.Duration
	Timeout  time.Duration
	// Concurrency caps in-flight provider calls; 0 means all at once.
	Concurrency int
	Logger      *slog.Logger
}

// Union calls every provider concurrently and concatenates what succeeded,
// in provider order. A failing provider only loses its own contribution.
type Union[E any] struct {
	cfg    UnionConfig[E]
	logger *slog.Logger
	flight singleflight.Group
}

func NewUnion[E any](cfg UnionConfig[E]) (*Union[E], error) {
	if cfg.Fallback == nil {
		return nil, fmt.Errorf("%s: %w", cfg.Namespace, ErrNoFallback)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Union[E]{
		cfg:    cfg,
		logger: logging.OrDiscard(cfg.Logger).With("namespace", string(cfg.Namespace)),
	}, nil
}

func (u *Union[E]) Namespace() Namespace { return u.cfg.Namespace }

func (u *Union[E]) ProviderNames() []string {
	names := make([]string, len(u.cfg.Providers))
	for i, p := range u.cfg.Providers {
		names[i] = p.Name()
	}
	return names
}

func (u *Union[E]) Resolve(ctx context.Context, req Request) (Result[[]E], error) {
	if err := req.Validate(); err != nil {
		return Result[[]E]{}, err
	}

	key := Key(u.cfg.Namespace, req.Input, req.Context)
	if res, ok := lookup[[]E](ctx, u.cfg.Cache, key, u.logger); ok {
		u.logger.Debug("cache hit", "key", key, "outcome", res.Outcome)
		return res, nil
	}

	res, shared := once(ctx, &u.flight, key, func(ctx context.Context) Result[[]E] {
		res := u.gather(ctx, req)
		store(ctx, u.cfg.Cache, key, u.cfg.TTL, res, u.logger)
		return res
	})
	if shared {
		u.logger.Debug("joined in-flight resolution", "key", key)
	}
	return res, nil
}

func (u *Union[E]) gather(ctx context.Context, req Request) Result[[]E] {
	parts := make([][]E, len(u.cfg.Providers))

	var g errgroup.Group
	if u.cfg.Concurrency > 0 {
		g.SetLimit(u.cfg.Concurrency)
	}
	for i, p := range u.cfg.Providers {
		g.Go(func() error {
			answer, err := attempt(ctx, p, req, u.cfg.Timeout)
			if err != nil {
				u.logger.Warn("provider failed", "provider", p.Name(), "error", err)
				return nil
			}
			parts[i] = answer.Value
			return nil
		})
	}
	_ = g.Wait()

	var (
		items   []E
		sources []string
	)
	for i, part := range parts {
		if len(part) == 0 {
			continue
		}
		items = append(items, part...)
		sources = append(sources, u.cfg.Providers[i].Name())
	}

	if len(items) == 0 {
		value, reason := u.cfg.Fallback(req)
		u.logger.Info("resolved via fallback", "reason", reason)
		return Result[[]E]{Value: value, Outcome: Fallback, Reason: reason}
	}

	return Result[[]E]{
		Value:      items,
		Outcome:    Resolved,
		Source:     strings.Join(sources, ","),
		Confidence: float64(len(sources)) / float64(len(u.cfg.Providers)),
	}
}
