package core

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"gitlab.com/tozd/go/errors"

	"github.com/JonMunkholm/worldview/internal/config"
	"github.com/JonMunkholm/worldview/internal/directory"
	"github.com/JonMunkholm/worldview/internal/logging"
	"github.com/JonMunkholm/worldview/internal/metrics"
)

// ErrSessionNotFound is returned for unknown or expired session IDs.
var ErrSessionNotFound = errors.New("session not found")

// Fetcher produces the full record list for a new session.
type Fetcher interface {
	FetchAll(ctx context.Context) ([]directory.Record, error)
}

// Service owns every live session and the upstream fetch limiter.
// It is safe for concurrent use.
type Service struct {
	fetcher  Fetcher
	limiter  *FetchLimiter
	metrics  *metrics.Metrics
	pageSize int
	ttl      time.Duration
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewService creates a Service. A nil m gets a private metrics set.
func NewService(fetcher Fetcher, cfg *config.Config, m *metrics.Metrics) *Service {
	if m == nil {
		m = metrics.New()
	}
	return &Service{
		fetcher:  fetcher,
		limiter:  NewFetchLimiter(cfg.Source.MaxConcurrent, cfg.Source.MaxWaitTime),
		metrics:  m,
		pageSize: cfg.Directory.PageSize,
		ttl:      cfg.Session.TTL,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Metrics returns the collectors the service reports to.
func (s *Service) Metrics() *metrics.Metrics { return s.metrics }

// Open starts a session and performs its one fetch. A failed fetch does not
// fail Open: the session comes back with an empty directory and LoadErr set.
// There is no retry; a new session is the only way to fetch again.
func (s *Service) Open(ctx context.Context) *Session {
	sess := newSession(uuid.NewString(), s.pageSize, s.now(), s.metrics)
	ctx = logging.ContextWithSessionID(ctx, sess.ID())
	logger := logging.FromContext(ctx)

	records, err := s.fetch(ctx)
	sess.load(records, err)
	if err != nil {
		logger.Warn("country fetch failed, serving empty directory", "error", err)
	} else {
		logger.Info("session opened", "records", len(records))
	}

	s.mu.Lock()
	s.sessions[sess.ID()] = sess
	active := len(s.sessions)
	s.mu.Unlock()

	s.metrics.SessionsOpened.Inc()
	s.metrics.SetActiveSessions(active)
	return sess
}

// Get returns a live session and marks it as seen.
func (s *Service) Get(id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	now := s.now()
	if !ok || sess.expired(now, s.ttl) {
		return nil, errors.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	sess.touch(now)
	return sess, nil
}

// Close discards a session. Unknown IDs are ignored.
func (s *Service) Close(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	active := len(s.sessions)
	s.mu.Unlock()

	s.metrics.SetActiveSessions(active)
}

// ActiveSessions returns the number of sessions currently held.
func (s *Service) ActiveSessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// FetchStatus reports the fetch limiter state.
func (s *Service) FetchStatus() FetchLimiterStatus {
	return s.limiter.Status()
}

// WaitForFetches blocks until in-flight fetches finish or ctx is done.
func (s *Service) WaitForFetches(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

func (s *Service) fetch(ctx context.Context) ([]directory.Record, error) {
	start := time.Now()

	if err := s.limiter.Acquire(ctx); err != nil {
		s.metrics.ObserveFetch(metrics.FetchBusy, 0)
		return nil, err
	}
	defer s.limiter.Release()

	records, err := s.fetcher.FetchAll(ctx)
	if err != nil {
		s.metrics.ObserveFetch(metrics.FetchFailed, time.Since(start))
		return nil, err
	}
	s.metrics.ObserveFetch(metrics.FetchOK, time.Since(start))
	return records, nil
}
