package task

import (
	"sync"
	"time"
)

// rowLatches emulates the store-level "lock rows, skip already-locked" read.
// A claimant that cannot take a row's latch moves on to the next candidate
// instead of waiting, which keeps concurrent fetchers from stalling on each
// other. Latches are held only for the duration of one engine operation.
type rowLatches struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newRowLatches() *rowLatches {
	return &rowLatches{held: make(map[string]struct{})}
}

// tryAcquire takes the latch for id if free, returning false without blocking
// when another operation holds it.
func (l *rowLatches) tryAcquire(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, taken := l.held[id]; taken {
		return false
	}
	l.held[id] = struct{}{}
	return true
}

// acquire blocks until the latch for id is taken. Used by single-row writes,
// which must serialize against an in-flight claim but never skip.
func (l *rowLatches) acquire(id string) {
	for !l.tryAcquire(id) {
		time.Sleep(200 * time.Microsecond)
	}
}

// release frees latches taken by tryAcquire or acquire.
func (l *rowLatches) release(ids ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, id := range ids {
		delete(l.held, id)
	}
}
