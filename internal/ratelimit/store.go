// Package ratelimit applies fixed-window admission control: at most max
// attempts per key per window, counted against a pluggable store so a Redis
// deployment can share budgets across instances.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of one admission attempt.
type Decision struct {
	Allowed bool
	Count   int
	ResetAt time.Time
}

// Entry is a read-only snapshot of a key's live window.
type Entry struct {
	Count   int
	ResetAt time.Time
}

// Store holds the window counters. Implementations must make Allow atomic:
// a fresh or lapsed window restarts at count 1; a live window increments up
// to max; at the cap it denies without incrementing, so a window's count
// never exceeds max.
type Store interface {
	Allow(ctx context.Context, key string, max int, window time.Duration) (Decision, error)

	// Peek reports the live window for key without consuming an attempt.
	Peek(ctx context.Context, key string) (Entry, bool, error)

	// Sweep drops windows that closed before cutoff. Stores with native
	// expiry may treat it as a no-op.
	Sweep(ctx context.Context, cutoff time.Time) error
}
