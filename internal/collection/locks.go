package collection

import (
	"fmt"
	"sync"
	"time"

	"github.com/prism-search/prism/internal/perr"
)

// writeLock serializes writes to one collection's backends (spec.md
// §4.9's per-collection write lock). It supports a bounded-timeout
// acquisition so destructive lifecycle operations can fail fast with no
// side effects instead of blocking indefinitely.
type writeLock struct {
	ch chan struct{}
}

func newWriteLock() *writeLock {
	l := &writeLock{ch: make(chan struct{}, 1)}
	l.ch <- struct{}{}
	return l
}

// acquire blocks until the lock is free or timeout elapses.
func (l *writeLock) acquire(timeout time.Duration) bool {
	select {
	case <-l.ch:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (l *writeLock) release() {
	l.ch <- struct{}{}
}

// acquireAll tries to acquire every lock in locks within timeout,
// releasing anything already held the instant one acquisition fails so
// the caller observes no partial lock state (spec.md §4.9's "no partial
// states" invariant for destructive lifecycle operations). Locks are
// acquired in a stable order (as given) to avoid deadlocking against a
// concurrent acquireAll over an overlapping lock set.
func acquireAll(locks []*writeLock, timeout time.Duration) (func(), error) {
	deadline := time.Now().Add(timeout)
	held := make([]*writeLock, 0, len(locks))

	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].release()
		}
	}

	for _, l := range locks {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			release()
			return nil, perr.Conflict("collection.lock_timeout", "timed out acquiring collection write locks")
		}
		if !l.acquire(remaining) {
			release()
			return nil, perr.Conflict("collection.lock_timeout", "timed out acquiring collection write locks")
		}
		held = append(held, l)
	}
	return release, nil
}

// lockSet maps each collection name to its single write lock, which
// covers all of that collection's backends and is what an atomic
// destructive lifecycle operation (drop, detach-with-delete,
// attach-over-existing) holds before mutating anything (spec.md §4.9's
// critical invariant). The schema registry is not locked through it.
type lockSet struct {
	mu    sync.Mutex
	locks map[string]*writeLock
}

func newLockSet() *lockSet {
	return &lockSet{locks: make(map[string]*writeLock)}
}

// forCollection returns (creating if absent) the write lock for name.
func (ls *lockSet) forCollection(name string) *writeLock {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	l, ok := ls.locks[name]
	if !ok {
		l = newWriteLock()
		ls.locks[name] = l
	}
	return l
}

func (ls *lockSet) remove(name string) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	delete(ls.locks, name)
}

// describeTimeout renders a consistent message for a failed bounded
// acquisition across every caller site.
func describeTimeout(op, collection string, timeout time.Duration) string {
	return fmt.Sprintf("%s on collection %q timed out after %s waiting for write locks", op, collection, timeout)
}
