package core

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/JonMunkholm/worldview/internal/directory"
	"github.com/JonMunkholm/worldview/internal/metrics"
)

// Derivation triggers, used as the metrics label.
const (
	TriggerLoad   = "load"
	TriggerView   = "view"
	TriggerSearch = "search"
	TriggerRegion = "region"
	TriggerFilter = "filter"
	TriggerNext   = "next"
	TriggerPrev   = "prev"
)

// Session is one browser's view of the directory. It owns a
// directory.Store and serialises every call into it.
type Session struct {
	id      string
	created time.Time
	metrics *metrics.Metrics

	lastSeen atomic.Int64 // unix nanoseconds

	mu      sync.Mutex
	store   *directory.Store
	loadErr error
}

func newSession(id string, pageSize int, now time.Time, m *metrics.Metrics) *Session {
	s := &Session{
		id:      id,
		created: now,
		metrics: m,
		store:   directory.NewStore(pageSize),
	}
	s.touch(now)
	return s
}

// ID returns the session identifier used in the session cookie.
func (s *Session) ID() string { return s.id }

// CreatedAt returns when the session was opened.
func (s *Session) CreatedAt() time.Time { return s.created }

// LastSeen returns the time of the most recent lookup.
func (s *Session) LastSeen() time.Time { return time.Unix(0, s.lastSeen.Load()) }

// LoadErr reports why the directory is empty, if the initial fetch failed.
// It never changes after Open returns.
func (s *Session) LoadErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadErr
}

// RecordCount returns the number of loaded records.
func (s *Session) RecordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Len()
}

// View derives the current page without changing state.
func (s *Session) View() directory.View {
	return s.apply(TriggerView, func(st *directory.Store) directory.View { return st.Derive() })
}

// SetSearchText changes the search text and returns the new page.
func (s *Session) SetSearchText(text string) directory.View {
	return s.apply(TriggerSearch, func(st *directory.Store) directory.View { return st.SetSearchText(text) })
}

// SetRegionFilter changes the region filter and returns the new page.
func (s *Session) SetRegionFilter(region directory.Region) directory.View {
	return s.apply(TriggerRegion, func(st *directory.Store) directory.View { return st.SetRegionFilter(region) })
}

// UpdateFilter applies a combined search and region change and returns
// the new page.
func (s *Session) UpdateFilter(c directory.FilterChange) directory.View {
	return s.apply(TriggerFilter, func(st *directory.Store) directory.View { return st.UpdateFilter(c) })
}

// NextPage advances one page, stopping at the last.
func (s *Session) NextPage() directory.View {
	return s.apply(TriggerNext, (*directory.Store).NextPage)
}

// PrevPage goes back one page, stopping at the first.
func (s *Session) PrevPage() directory.View {
	return s.apply(TriggerPrev, (*directory.Store).PrevPage)
}

func (s *Session) load(records []directory.Record, err error) {
	s.apply(TriggerLoad, func(st *directory.Store) directory.View {
		s.loadErr = err
		if err != nil {
			return st.Derive()
		}
		return st.Load(records)
	})
}

func (s *Session) apply(trigger string, fn func(*directory.Store) directory.View) directory.View {
	s.mu.Lock()
	v := fn(s.store)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.IncrementDerivations(trigger)
	}
	return v
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

func (s *Session) expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.LastSeen()) > ttl
}
