package ratelimit

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"linkbio/internal/obs"
)

// Config sizes a Limiter. Scope names the limiter in logs, metrics, and —
// when limiters share a store — the key namespace, so every limiter on a
// shared store needs a distinct Scope.
type Config struct {
	Max    int
	Window time.Duration
	Scope  string
	Now    func() time.Time
	Logger zerolog.Logger
}

// Limiter gives each key at most Max attempts per fixed Window.
type Limiter struct {
	store  Store
	max    int
	window time.Duration
	scope  string
	now    func() time.Time
	log    zerolog.Logger
}

func New(store Store, cfg Config) *Limiter {
	if cfg.Max <= 0 {
		cfg.Max = 60
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Scope == "" {
		cfg.Scope = "default"
	}
	return &Limiter{
		store:  store,
		max:    cfg.Max,
		window: cfg.Window,
		scope:  cfg.Scope,
		now:    cfg.Now,
		log:    cfg.Logger,
	}
}

func (l *Limiter) key(id string) string { return l.scope + ":" + id }

// Max returns the per-window budget.
func (l *Limiter) Max() int { return l.max }

// Window returns the window length.
func (l *Limiter) Window() time.Duration { return l.window }

// Allow reports whether id may proceed, consuming one attempt when it may.
// Admission control never fails: a store error logs and allows, since a
// broken limiter must not become the outage.
func (l *Limiter) Allow(ctx context.Context, id string) bool {
	d, err := l.store.Allow(ctx, l.key(id), l.max, l.window)
	if err != nil {
		l.log.Warn().Err(err).Str("scope", l.scope).Msg("rate limit store error; failing open")
		return true
	}
	if !d.Allowed {
		obs.MarkRateLimited(l.scope)
	}
	return d.Allowed
}

// Remaining reports the attempts left for id in its live window: the full
// budget for unknown keys or lapsed windows, never negative.
func (l *Limiter) Remaining(ctx context.Context, id string) int {
	e, ok, err := l.store.Peek(ctx, l.key(id))
	if err != nil || !ok {
		return l.max
	}
	if l.now().After(e.ResetAt) {
		return l.max
	}
	if r := l.max - e.Count; r > 0 {
		return r
	}
	return 0
}

// TimeUntilReset reports how long until id's window reopens: zero for
// unknown keys or lapsed windows. Feeds Retry-After headers.
func (l *Limiter) TimeUntilReset(ctx context.Context, id string) time.Duration {
	e, ok, err := l.store.Peek(ctx, l.key(id))
	if err != nil || !ok {
		return 0
	}
	if d := e.ResetAt.Sub(l.now()); d > 0 {
		return d
	}
	return 0
}

// SweepLoop evicts lapsed windows every window length until ctx ends. Run it
// in a goroutine for stores without native expiry.
func (l *Limiter) SweepLoop(ctx context.Context) {
	t := time.NewTicker(l.window)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := l.store.Sweep(ctx, l.now()); err != nil {
				l.log.Warn().Err(err).Str("scope", l.scope).Msg("rate limit sweep failed")
			}
		}
	}
}
