package cache

import (
	"context"
	"time"
)

// Entry is one cached resolution. Value is an opaque JSON blob.
type Entry struct {
	Key       string
	Value     []byte
	ExpiresAt time.Time
}

// Expired reports whether the entry is stale at now.
func (e Entry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Backend is the durable key/value table behind a Store. Implementations
// return errors freely; Store decides how faults surface.
type Backend interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Put(ctx context.Context, entry Entry) error
	// DeleteIfExpired removes key only if it is still stale at now, so a
	// concurrent refresh of the key survives.
	DeleteIfExpired(ctx context.Context, key string, now time.Time) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	Count(ctx context.Context) (int64, error)
	Close() error
}
