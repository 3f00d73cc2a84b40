package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/floraaheh/Disaster-Response-Coordination-Platform-Assignment/internal/logging"
)

// Store is the TTL cache used by resolvers. It never returns backend errors:
// a failed read is a miss and a failed write is dropped, both logged at warn.
type Store struct {
	backend Backend
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger used for cache faults.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

func NewStore(backend Backend, opts ...Option) *Store {
	s := &Store{backend: backend, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrDiscard(s.logger).With("component", "cache")
	return s
}

// Get returns the value stored under key. Stale entries are deleted and
// reported as a miss.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool) {
	if s == nil || s.backend == nil {
		return nil, false
	}
	e, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		s.logger.Warn("cache read failed", "key", key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	if e.Expired(s.now()) {
		if err := s.backend.DeleteIfExpired(ctx, key, s.now()); err != nil {
			s.logger.Warn("cache delete of stale entry failed", "key", key, "error", err)
		}
		return nil, false
	}
	return e.Value, true
}

// Put upserts value under key, expiring ttl from now.
func (s *Store) Put(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if s == nil || s.backend == nil {
		return
	}
	e := Entry{Key: key, Value: value, ExpiresAt: s.now().Add(ttl)}
	if err := s.backend.Put(ctx, e); err != nil {
		s.logger.Warn("cache write failed", "key", key, "error", err)
	}
}

// Sweep deletes every expired entry and returns how many were removed.
func (s *Store) Sweep(ctx context.Context) (int64, error) {
	if s == nil || s.backend == nil {
		return 0, nil
	}
	return s.backend.DeleteExpired(ctx, s.now())
}

// Count returns the number of stored entries, stale ones included.
func (s *Store) Count(ctx context.Context) (int64, error) {
	if s == nil || s.backend == nil {
		return 0, nil
	}
	return s.backend.Count(ctx)
}

// RunSweeper sweeps the store every interval until ctx is done. Sweep errors
// are logged and the loop keeps going.
func RunSweeper(ctx context.Context, s *Store, interval time.Duration) {
	if s == nil {
		return
	}
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				s.logger.Error("cache sweep failed", "error", err)
				continue
			}
			s.logger.Debug("cache sweep finished", "deleted", n)
		}
	}
}
