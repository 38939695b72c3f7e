package store

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/gradtrack/gradtrack/tracker/internal/compute"
)

// minSweep bounds how often Run scans for stale passes.
const minSweep = time.Second

// Entry is a pass together with the time it was stored.
type Entry struct {
	Pass      *compute.Pass
	UpdatedAt time.Time
}

// Store maps board IDs to their most recent pass. It is safe for concurrent
// use.
type Store struct {
	ttl time.Duration
	now func() time.Time

	mu     sync.RWMutex
	latest map[string]*Entry
}

// New returns an empty Store whose passes expire ttl after they were put.
func New(ttl time.Duration) *Store {
	return &Store{ttl: ttl, now: time.Now, latest: make(map[string]*Entry)}
}

// fresh reports whether e was stored less than ttl before at.
func (s *Store) fresh(e *Entry, at time.Time) bool {
	return at.Sub(e.UpdatedAt) < s.ttl
}

// Put records p as the latest pass of its board, replacing the previous one.
// p must not be modified afterwards.
func (s *Store) Put(p *compute.Pass) {
	e := &Entry{Pass: p, UpdatedAt: s.now()}
	s.mu.Lock()
	s.latest[p.BoardID] = e
	s.mu.Unlock()
}

// Get returns the latest pass of boardID. An expired pass counts as missing
// even if Run has not removed it yet.
func (s *Store) Get(boardID string) (*Entry, bool) {
	s.mu.RLock()
	e, ok := s.latest[boardID]
	s.mu.RUnlock()
	if !ok || !s.fresh(e, s.now()) {
		return nil, false
	}
	return e, true
}

// List returns the unexpired entries ordered by board ID.
func (s *Store) List() []*Entry {
	at := s.now()
	s.mu.RLock()
	out := make([]*Entry, 0, len(s.latest))
	for _, e := range s.latest {
		if s.fresh(e, at) {
			out = append(out, e)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Entry) int { return cmp.Compare(a.Pass.BoardID, b.Pass.BoardID) })
	return out
}

// Count reports how many boards have an entry, expired or not.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.latest)
}

// Delete forgets boardID, e.g. once it has been removed from the config.
func (s *Store) Delete(boardID string) {
	s.mu.Lock()
	delete(s.latest, boardID)
	s.mu.Unlock()
}

// Evict drops every entry that has expired as of at and reports how many
// were dropped.
func (s *Store) Evict(at time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, e := range s.latest {
		if !s.fresh(e, at) {
			delete(s.latest, id)
			n++
		}
	}
	return n
}

// Run evicts expired entries every ttl/2 (at least once a second) until ctx
// is cancelled.
func (s *Store) Run(ctx context.Context) {
	sweep := max(s.ttl/2, minSweep)
	ticker := time.NewTicker(sweep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case at := <-ticker.C:
			if n := s.Evict(at); n > 0 {
				slog.Debug("store: evicted stale passes", "count", n)
			}
		}
	}
}
