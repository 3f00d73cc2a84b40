package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/logging"
)

// ChainConfig describes one namespace's cascading resolution.
type ChainConfig[T any] struct {
	Namespace Namespace
	// Providers are attempted strictly in this order.
	Providers []Provider[T]
	Fallback  FallbackFunc[T]
	Cache     Cache
	TTL       time.Duration
	// Timeout bounds each provider attempt. Defaults to DefaultTimeout.
	Timeout time.Duration
	// Validate rejects a provider answer; the chain then moves on.
	Validate func(T) error
	Logger   *slog.Logger
}

// Chain tries providers in order and returns the first validated answer,
// falling back to a local heuristic when all of them fail.
type Chain[T any] struct {
	cfg    ChainConfig[T]
	logger *slog.Logger
	flight singleflight.Group
}

func NewChain[T any](cfg ChainConfig[T]) (*Chain[T], error) {
	if cfg.Fallback == nil {
		return nil, fmt.Errorf("%s: %w", cfg.Namespace, ErrNoFallback)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Chain[T]{
		cfg:    cfg,
		logger: logging.OrDiscard(cfg.Logger).With("namespace", string(cfg.Namespace)),
	}, nil
}

func (c *Chain[T]) Namespace() Namespace { return c.cfg.Namespace }

// ProviderNames lists the configured providers in priority order.
func (c *Chain[T]) ProviderNames() []string {
	names := make([]string, len(c.cfg.Providers))
	for i, p := range c.cfg.Providers {
		names[i] = p.Name()
	}
	return names
}

// Resolve returns a cached result when one is live, otherwise walks the
// provider chain. Concurrent misses on one key share a single walk. The only
// error is ErrEmptyInput.
func (c *Chain[T]) Resolve(ctx context.Context, req Request) (Result[T], error) {
	if err := req.Validate(); err != nil {
		return Result[T]{}, err
	}

	key := Key(c.cfg.Namespace, req.Input, req.Context)
	if res, ok := lookup[T](ctx, c.cfg.Cache, key, c.logger); ok {
		c.logger.Debug("cache hit", "key", key, "outcome", res.Outcome)
		return res, nil
	}

	res, shared := once(ctx, &c.flight, key, func(ctx context.Context) Result[T] {
		res := c.walk(ctx, req)
		store(ctx, c.cfg.Cache, key, c.cfg.TTL, res, c.logger)
		return res
	})
	if shared {
		c.logger.Debug("joined in-flight resolution", "key", key)
	}
	return res, nil
}

func (c *Chain[T]) walk(ctx context.Context, req Request) Result[T] {
	for _, p := range c.cfg.Providers {
		answer, err := attempt(ctx, p, req, c.cfg.Timeout)
		if err == nil && c.cfg.Validate != nil {
			err = c.cfg.Validate(answer.Value)
		}
		if err != nil {
			c.logger.Warn("provider failed", "provider", p.Name(), "error", err)
			continue
		}
		return Result[T]{
			Value:      answer.Value,
			Outcome:    Resolved,
			Source:     p.Name(),
			Confidence: answer.Confidence,
		}
	}

	value, reason := c.cfg.Fallback(req)
	c.logger.Info("resolved via fallback", "reason", reason)
	return Result[T]{Value: value, Outcome: Fallback, Reason: reason}
}
