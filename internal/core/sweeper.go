package core

// sweeper.go removes sessions that have been idle longer than the session
// TTL. It runs once on start and then on every tick until its context is
// cancelled. A sweep never fails; it only logs what it removed.

import (
	"context"
	"log/slog"
	"time"
)

// StartSessionSweeper blocks, sweeping every interval until ctx is done.
// Run it in its own goroutine.
func (s *Service) StartSessionSweeper(ctx context.Context, interval time.Duration) {
	slog.Info("session sweeper started",
		"interval", interval.String(),
		"ttl", s.ttl.String(),
	)

	s.runSweep()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session sweeper stopped")
			return
		case <-ticker.C:
			s.runSweep()
		}
	}
}

func (s *Service) runSweep() {
	start := time.Now()
	removed := s.SweepExpired()
	if removed > 0 {
		slog.Info("expired sessions removed",
			"removed", removed,
			"remaining", s.ActiveSessions(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// SweepExpired removes every session idle past the TTL and returns how many
// were removed.
func (s *Service) SweepExpired() int {
	now := s.now()

	s.mu.Lock()
	removed := 0
	for id, sess := range s.sessions {
		if sess.expired(now, s.ttl) {
			delete(s.sessions, id)
			removed++
		}
	}
	active := len(s.sessions)
	s.mu.Unlock()

	if removed > 0 {
		s.metrics.SessionsSwept.Add(float64(removed))
	}
	s.metrics.SetActiveSessions(active)
	return removed
}
