// Package cache provides the time-boxed result store between the ingest
// pipeline and the dashboard. Entries are session-scoped (in memory, gone on
// restart) so stale public-sector data never survives a browsing session.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/xcaplin/tender-banana/internal/models"
)

// Store holds normalized tender lists keyed by request shape. Freshness is
// checked against the window on every read: an entry older than the window is
// treated as absent, never served. There is no background sweeper to race.
type Store struct {
	window  time.Duration
	backend *gocache.Cache
	now     func() time.Time
}

type entry struct {
	Timestamp time.Time
	Window    time.Duration // entry-specific override, zero means store default
	Data      []models.Tender
}

// New creates a Store with the given freshness window (5-15 minutes depending
// on source; the zero value defaults to 10 minutes).
func New(window time.Duration) *Store {
	if window <= 0 {
		window = 10 * time.Minute
	}
	// The backend's own expiry is a backstop; reads enforce the window.
	return &Store{
		window:  window,
		backend: gocache.New(window, 2*window),
		now:     time.Now,
	}
}

// Get returns the cached tender list for key, or ok=false when the key is
// absent or its entry has aged past the freshness window.
func (s *Store) Get(key string) ([]models.Tender, bool) {
	v, found := s.backend.Get(key)
	if !found {
		return nil, false
	}
	e, ok := v.(entry)
	if !ok {
		return nil, false
	}
	window := e.Window
	if window <= 0 {
		window = s.window
	}
	if s.now().Sub(e.Timestamp) > window {
		s.backend.Delete(key)
		return nil, false
	}
	return e.Data, true
}

// Put stores a tender list under key, stamped now.
func (s *Store) Put(key string, data []models.Tender) {
	s.backend.Set(key, entry{Timestamp: s.now(), Data: data}, s.window)
}

// PutFor stores a tender list with a per-entry freshness window, for sources
// whose registry entry declares its own TTL.
func (s *Store) PutFor(key string, data []models.Tender, window time.Duration) {
	if window <= 0 {
		s.Put(key, data)
		return
	}
	s.backend.Set(key, entry{Timestamp: s.now(), Window: window, Data: data}, window)
}

// IsValid reports whether a fresh entry exists for key.
func (s *Store) IsValid(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Invalidate drops the entry for key regardless of age.
func (s *Store) Invalidate(key string) {
	s.backend.Delete(key)
}

// Window returns the configured freshness window.
func (s *Store) Window() time.Duration {
	return s.window
}
