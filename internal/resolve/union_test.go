package resolve

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listProvider(name string, calls *atomic.Int32, delay time.Duration, items []string, err error) Provider[[]string] {
	return ProviderFunc[[]string]{
		ProviderName: name,
		Fn: func(ctx context.Context, _ Request) (Answer[[]string], error) {
			calls.Add(1)
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return Answer[[]string]{}, ctx.Err()
				}
			}
			return Answer[[]string]{Value: items}, err
		},
	}
}

func curated(Request) ([]string, string) {
	return []string{"curated-1"}, "no source returned updates"
}

func newTestUnion(t *testing.T, c Cache, providers ...Provider[[]string]) *Union[string] {
	t.Helper()
	u, err := NewUnion(UnionConfig[string]{
		Namespace: Updates,
		Providers: providers,
		Fallback:  curated,
		Cache:     c,
		TTL:       time.Minute,
		Timeout:   100 * time.Millisecond,
	})
	require.NoError(t, err)
	return u
}

func TestUnion_MergesInProviderOrder(t *testing.T) {
	var calls atomic.Int32
	u := newTestUnion(t, nil,
		listProvider("slow", &calls, 20*time.Millisecond, []string{"a1", "a2"}, nil),
		listProvider("fast", &calls, 0, []string{"b1"}, nil),
	)

	res, err := u.Resolve(context.Background(), Request{Input: "disaster-1"})
	require.NoError(t, err)
	assert.Equal(t, Resolved, res.Outcome)
	assert.Equal(t, []string{"a1", "a2", "b1"}, res.Value)
	assert.Equal(t, "slow,fast", res.Source)
	assert.Equal(t, 1.0, res.Confidence)
}

func TestUnion_FailureOnlyDropsThatProvider(t *testing.T) {
	var calls atomic.Int32
	u := newTestUnion(t, nil,
		listProvider("broken", &calls, 0, nil, errors.New("403")),
		listProvider("ok", &calls, 0, []string{"b1"}, nil),
	)

	res, err := u.Resolve(context.Background(), Request{Input: "d"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b1"}, res.Value)
	assert.Equal(t, "ok", res.Source)
	assert.Equal(t, 0.5, res.Confidence)
}

func TestUnion_RunsConcurrently(t *testing.T) {
	var calls atomic.Int32
	u := newTestUnion(t, nil,
		listProvider("a", &calls, 60*time.Millisecond, []string{"a"}, nil),
		listProvider("b", &calls, 60*time.Millisecond, []string{"b"}, nil),
		listProvider("c", &calls, 60*time.Millisecond, []string{"c"}, nil),
	)

	start := time.Now()
	res, err := u.Resolve(context.Background(), Request{Input: "d"})
	require.NoError(t, err)
	assert.Len(t, res.Value, 3)
	assert.Less(t, time.Since(start), 150*time.Millisecond)
}

func TestUnion_TimedOutProviderContributesNothing(t *testing.T) {
	var calls atomic.Int32
	u := newTestUnion(t, nil,
		listProvider("stuck", &calls, time.Second, []string{"late"}, nil),
		listProvider("ok", &calls, 0, []string{"b1"}, nil),
	)

	res, err := u.Resolve(context.Background(), Request{Input: "d"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b1"}, res.Value)
}

func TestUnion_EmptyUnionFallsBack(t *testing.T) {
	var calls atomic.Int32
	c := newMemCache()
	u := newTestUnion(t, c,
		listProvider("empty", &calls, 0, nil, nil),
		listProvider("broken", &calls, 0, nil, errors.New("down")),
	)

	res, err := u.Resolve(context.Background(), Request{Input: "d"})
	require.NoError(t, err)
	assert.Equal(t, Fallback, res.Outcome)
	assert.Equal(t, []string{"curated-1"}, res.Value)
	assert.Equal(t, 1, c.writes)
}

func TestUnion_CacheHit(t *testing.T) {
	var calls atomic.Int32
	u := newTestUnion(t, newMemCache(),
		listProvider("a", &calls, 0, []string{"a1"}, nil),
	)
	ctx := context.Background()

	_, err := u.Resolve(ctx, Request{Input: "d"})
	require.NoError(t, err)
	res, err := u.Resolve(ctx, Request{Input: "d"})
	require.NoError(t, err)

	assert.True(t, res.Cached)
	assert.Equal(t, []string{"a1"}, res.Value)
	assert.EqualValues(t, 1, calls.Load())
}

func TestUnion_EmptyInputRejected(t *testing.T) {
	u := newTestUnion(t, nil)
	_, err := u.Resolve(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestUnion_ConcurrencyLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	track := ProviderFunc[[]string]{
		ProviderName: "tracked",
		Fn: func(context.Context, Request) (Answer[[]string], error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			inFlight.Add(-1)
			return Answer[[]string]{Value: []string{"x"}}, nil
		},
	}
	u, err := NewUnion(UnionConfig[string]{
		Namespace:   Updates,
		Providers:   []Provider[[]string]{track, track, track, track},
		Fallback:    curated,
		Concurrency: 1,
	})
	require.NoError(t, err)

	res, err := u.Resolve(context.Background(), Request{Input: "d"})
	require.NoError(t, err)
	assert.Len(t, res.Value, 4)
	assert.EqualValues(t, 1, peak.Load())
}
