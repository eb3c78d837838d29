package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/draftpace/draftpace/internal/compute"
)

// Entry is an Output together with the time it was stored.
type Entry struct {
	Output    compute.Output
	UpdatedAt time.Time
}

// Stale reports whether e is older than ttl at now.
func (e *Entry) Stale(now time.Time, ttl time.Duration) bool {
	return !e.UpdatedAt.After(now.Add(-ttl))
}

// Store is a thread-safe in-memory Output store. It keeps the latest Output
// overall plus the last Output of every session, so consumers can read the
// final totals of a session after the target has changed. A background
// goroutine (Run) evicts sessions that have not been updated within the TTL.
type Store struct {
	mu       sync.RWMutex
	latest   *Entry
	sessions map[string]*Entry
	ttl      time.Duration
	now      func() time.Time // injectable for deterministic tests
}

// New creates a Store with the given TTL.
func New(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*Entry),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Put records out as the latest Output and as the last Output of its session.
// It has the scheduler.Sink signature.
func (s *Store) Put(out compute.Output) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &Entry{Output: out, UpdatedAt: s.now()}
	s.latest = e
	if out.SessionID != "" {
		s.sessions[out.SessionID] = e
	}
}

// Latest returns the most recent Entry and whether it is still within the TTL.
// ok is false when nothing has been stored yet.
func (s *Store) Latest() (e *Entry, fresh, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return nil, false, false
	}
	return s.latest, !s.latest.Stale(s.now(), s.ttl), true
}

// Get returns the last Entry recorded for the given session.
// The entry may be stale if the TTL has elapsed.
func (s *Store) Get(sessionID string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[sessionID]
	return e, ok
}

// List returns the last Entry of every session updated within the TTL,
// newest first. Stale entries that have not yet been evicted are excluded.
func (s *Store) List() []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now()
	out := make([]*Entry, 0, len(s.sessions))
	for _, e := range s.sessions {
		if !e.Stale(now, s.ttl) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

// Count returns the number of sessions currently held, including stale ones.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Evict removes sessions whose UpdatedAt is older than now minus TTL.
// The latest entry is kept so /output can still report it as stale.
// It returns the number of sessions removed.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, e := range s.sessions {
		if e.Stale(now, s.ttl) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Run starts the background TTL eviction loop. It ticks at half the TTL interval
// (minimum 1 second). Run blocks until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Debug("store: evicted stale sessions", "count", n)
			}
		}
	}
}
