package core

// fetch_limiter.go bounds the number of upstream country-list fetches in
// flight. Every new session triggers one fetch; the limiter keeps a burst of
// new visitors from fanning out into an equal burst of upstream calls. When
// all slots are taken, Acquire waits up to maxWait and then fails with
// ErrTooManyFetches, which the session treats like any other fetch failure.

import (
	"context"
	"sync"
	"time"

	"gitlab.com/tozd/go/errors"
)

// ErrTooManyFetches is returned when all fetch slots stay occupied for the
// whole wait window.
var ErrTooManyFetches = errors.New("too many concurrent fetches, please try again later")

// DefaultMaxConcurrentFetches is the default limit for parallel fetches.
const DefaultMaxConcurrentFetches = 4

// DefaultMaxFetchWait is how long to wait for a slot before giving up.
const DefaultMaxFetchWait = 10 * time.Second

// FetchLimiter is a counting semaphore with a bounded wait.
type FetchLimiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.RWMutex
	active int
}

// NewFetchLimiter creates a limiter that allows at most maxConcurrent
// simultaneous fetches. Non-positive arguments fall back to the defaults.
func NewFetchLimiter(maxConcurrent int, maxWait time.Duration) *FetchLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentFetches
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxFetchWait
	}

	return &FetchLimiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
	}
}

// Acquire takes a slot, waiting at most maxWait.
// The caller must call Release once the fetch completes.
func (l *FetchLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil

	case <-timer.C:
		return ErrTooManyFetches

	case <-ctx.Done():
		return ctx.Err()
	}
}

// tryAcquire takes a slot without blocking.
func (l *FetchLimiter) tryAcquire() bool {
	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return true
	default:
		return false
	}
}

// Release returns a slot taken by Acquire.
func (l *FetchLimiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()

	<-l.semaphore
}

// ActiveCount returns the number of fetches in flight.
func (l *FetchLimiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// WaitForDrain blocks until no fetch is in flight or ctx is done.
func (l *FetchLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// FetchLimiterStatus is a point-in-time view of the limiter.
type FetchLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current limiter state for monitoring.
func (l *FetchLimiter) Status() FetchLimiterStatus {
	l.mu.RLock()
	active := l.active
	l.mu.RUnlock()

	return FetchLimiterStatus{
		Active:        active,
		Available:     cap(l.semaphore) - len(l.semaphore),
		MaxConcurrent: cap(l.semaphore),
	}
}
