package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(max int, window time.Duration) (*Limiter, *MemoryStore, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	store := NewMemoryStore()
	store.Now = clock.Now
	l := New(store, Config{Max: max, Window: window, Scope: "test", Now: clock.Now})
	return l, store, clock
}

func TestLimiterFixedWindow(t *testing.T) {
	ctx := context.Background()
	l, _, clock := newTestLimiter(5, time.Minute)

	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow(ctx, "203.0.113.9"), "attempt %d", i+1)
	}
	assert.False(t, l.Allow(ctx, "203.0.113.9"), "sixth attempt must be denied")

	clock.Advance(time.Minute + time.Second)
	assert.True(t, l.Allow(ctx, "203.0.113.9"), "new window must admit again")
}

func TestLimiterDenyDoesNotIncrement(t *testing.T) {
	ctx := context.Background()
	l, store, _ := newTestLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		require.True(t, l.Allow(ctx, "shop-a"))
	}
	for i := 0; i < 10; i++ {
		require.False(t, l.Allow(ctx, "shop-a"))
	}

	e, ok, err := store.Peek(ctx, "test:shop-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, e.Count, "count must stay at the cap through denials")
}

func TestLimiterRemaining(t *testing.T) {
	ctx := context.Background()
	l, _, clock := newTestLimiter(5, time.Minute)

	assert.Equal(t, 5, l.Remaining(ctx, "id"), "unknown id has the full budget")

	l.Allow(ctx, "id")
	l.Allow(ctx, "id")
	assert.Equal(t, 3, l.Remaining(ctx, "id"))

	for i := 0; i < 10; i++ {
		l.Allow(ctx, "id")
	}
	assert.Equal(t, 0, l.Remaining(ctx, "id"), "never negative")

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 5, l.Remaining(ctx, "id"), "lapsed window reports the full budget")
}

func TestLimiterTimeUntilReset(t *testing.T) {
	ctx := context.Background()
	l, _, clock := newTestLimiter(5, time.Minute)

	assert.Equal(t, time.Duration(0), l.TimeUntilReset(ctx, "id"))

	l.Allow(ctx, "id")
	assert.Equal(t, time.Minute, l.TimeUntilReset(ctx, "id"))

	clock.Advance(40 * time.Second)
	assert.Equal(t, 20*time.Second, l.TimeUntilReset(ctx, "id"))

	clock.Advance(30 * time.Second)
	assert.Equal(t, time.Duration(0), l.TimeUntilReset(ctx, "id"))
}

func TestLimiterKeyAndInstanceIsolation(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	store := NewMemoryStore()
	store.Now = clock.Now

	auth := New(store, Config{Max: 1, Window: time.Minute, Scope: "auth", Now: clock.Now})
	webhook := New(store, Config{Max: 1, Window: time.Minute, Scope: "webhook", Now: clock.Now})

	require.True(t, auth.Allow(ctx, "my-shop.myshopify.com"))
	require.False(t, auth.Allow(ctx, "my-shop.myshopify.com"))

	// Same id, different limiter: independent budget.
	assert.True(t, webhook.Allow(ctx, "my-shop.myshopify.com"))

	// Same limiter, different id: independent budget.
	assert.True(t, auth.Allow(ctx, "other-shop.myshopify.com"))
}

func TestMemoryStoreSweep(t *testing.T) {
	ctx := context.Background()
	l, store, clock := newTestLimiter(5, time.Minute)

	l.Allow(ctx, "a")
	l.Allow(ctx, "b")
	require.Equal(t, 2, store.Len())

	// Nothing lapsed yet.
	require.NoError(t, store.Sweep(ctx, clock.Now()))
	assert.Equal(t, 2, store.Len())

	clock.Advance(2 * time.Minute)
	l.Allow(ctx, "c")
	require.NoError(t, store.Sweep(ctx, clock.Now()))
	assert.Equal(t, 1, store.Len(), "only the live window survives")
}

type failingStore struct{}

func (failingStore) Allow(context.Context, string, int, time.Duration) (Decision, error) {
	return Decision{}, errors.New("store down")
}

func (failingStore) Peek(context.Context, string) (Entry, bool, error) {
	return Entry{}, false, errors.New("store down")
}

func (failingStore) Sweep(context.Context, time.Time) error { return errors.New("store down") }

func TestLimiterFailsOpenOnStoreError(t *testing.T) {
	ctx := context.Background()
	l := New(failingStore{}, Config{Max: 1, Window: time.Minute, Scope: "test"})

	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow(ctx, "id"), "store failure must not deny traffic")
	}
	assert.Equal(t, 1, l.Remaining(ctx, "id"))
	assert.Equal(t, time.Duration(0), l.TimeUntilReset(ctx, "id"))
}
