package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	count   int
	resetAt time.Time
}

// MemoryStore is the single-process Store: a mutex-guarded map. Memory stays
// bounded as long as someone runs Sweep (the Limiter's sweep loop does).
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry

	// Now is the clock; tests pin it.
	Now func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		Now:     time.Now,
	}
}

func (s *MemoryStore) Allow(_ context.Context, key string, max int, window time.Duration) (Decision, error) {
	now := s.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || now.After(e.resetAt) {
		e = memoryEntry{count: 1, resetAt: now.Add(window)}
		s.entries[key] = e
		return Decision{Allowed: true, Count: 1, ResetAt: e.resetAt}, nil
	}
	if e.count >= max {
		return Decision{Allowed: false, Count: e.count, ResetAt: e.resetAt}, nil
	}
	e.count++
	s.entries[key] = e
	return Decision{Allowed: true, Count: e.count, ResetAt: e.resetAt}, nil
}

func (s *MemoryStore) Peek(_ context.Context, key string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return Entry{}, false, nil
	}
	return Entry{Count: e.count, ResetAt: e.resetAt}, true, nil
}

func (s *MemoryStore) Sweep(_ context.Context, cutoff time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, e := range s.entries {
		if cutoff.After(e.resetAt) {
			delete(s.entries, key)
		}
	}
	return nil
}

// Len reports how many windows are held. Tests assert sweep behavior with it.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
