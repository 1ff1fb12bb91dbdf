// session/session.go
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wfunc/liargame/logger"
)

// ErrSessionBusy is returned when a session's lock is not obtained in time.
// Callers may retry.
var ErrSessionBusy = errors.New("session is busy")

// Lock is a held session lock. Release is safe to call more than once.
type Lock struct {
	SessionID  string
	AcquiredAt time.Time
	sem        chan struct{}
	once       sync.Once
}

// Release frees the session for the next caller.
func (l *Lock) Release() {
	l.once.Do(func() {
		<-l.sem
	})
}

// Registry hands out one lock per session id. Entries are created on first
// use and live for the lifetime of the process.
type Registry struct {
	locks map[string]chan struct{}
	mutex sync.Mutex
}

func NewRegistry() *Registry {
	return &Registry{
		locks: make(map[string]chan struct{}),
	}
}

// entry returns the semaphore of sessionID, creating it if needed. The
// registry mutex only guards the map, never a session.
func (r *Registry) entry(sessionID string) chan struct{} {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	sem, exists := r.locks[sessionID]
	if !exists {
		sem = make(chan struct{}, 1)
		r.locks[sessionID] = sem
	}
	return sem
}

// Acquire waits up to timeout for the session's lock. It fails with
// ErrSessionBusy on timeout, or with the context's error if ctx is done
// first.
func (r *Registry) Acquire(ctx context.Context, sessionID string, timeout time.Duration) (*Lock, error) {
	sem := r.entry(sessionID)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case sem <- struct{}{}:
		return &Lock{SessionID: sessionID, AcquiredAt: time.Now(), sem: sem}, nil
	case <-timer.C:
		logger.Log.Warnf("Session %s lock not acquired within %s", sessionID, timeout)
		return nil, fmt.Errorf("%w: %s", ErrSessionBusy, sessionID)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len reports how many sessions have been seen.
func (r *Registry) Len() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.locks)
}
