package persistlog

import (
	"fmt"
	"sync"
	"time"
)

// DefaultLockWait bounds lock acquisition when Options.LockWait is zero.
const DefaultLockWait = 10 * time.Second

// boundedRW is a reader-writer lock whose acquisitions poll with backoff
// and give up after a deadline instead of blocking forever.
type boundedRW struct {
	mu sync.RWMutex
}

func (b *boundedRW) rlock(wait time.Duration) bool { return pollLock(b.mu.TryRLock, wait) }
func (b *boundedRW) lock(wait time.Duration) bool  { return pollLock(b.mu.TryLock, wait) }
func (b *boundedRW) runlock()                      { b.mu.RUnlock() }
func (b *boundedRW) unlock()                       { b.mu.Unlock() }

func pollLock(try func() bool, wait time.Duration) bool {
	if try() {
		return true
	}
	deadline := time.Now().Add(wait)
	sleep := 10 * time.Microsecond
	for {
		time.Sleep(sleep)
		if try() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		if sleep < time.Millisecond {
			sleep *= 2
		}
	}
}

// Lock order is head before tail, and the guard types enforce it: a
// tailGuard with write access is only mintable from a held headGuard, and no
// guard can mint a headGuard, so the order cannot be inverted. Pure tail
// reads may skip head entirely via (*Log).tailRead.

type headGuard struct {
	l     *Log
	write bool
	done  bool
}

func (l *Log) headRead() (*headGuard, error) {
	if !l.headLock.rlock(l.wait) {
		return nil, fmt.Errorf("head read lock: %w", ErrLockTimeout)
	}
	return &headGuard{l: l}, nil
}

func (l *Log) headWrite() (*headGuard, error) {
	if !l.headLock.lock(l.wait) {
		return nil, fmt.Errorf("head write lock: %w", ErrLockTimeout)
	}
	return &headGuard{l: l, write: true}, nil
}

func (g *headGuard) release() {
	if g.done {
		return
	}
	g.done = true
	if g.write {
		g.l.headLock.unlock()
	} else {
		g.l.headLock.runlock()
	}
}

type tailGuard struct {
	l     *Log
	write bool
	done  bool
}

func (g *headGuard) tailRead() (*tailGuard, error) {
	return g.l.tailRead()
}

func (g *headGuard) tailWrite() (*tailGuard, error) {
	if !g.l.tailLock.lock(g.l.wait) {
		return nil, fmt.Errorf("tail write lock: %w", ErrLockTimeout)
	}
	return &tailGuard{l: g.l, write: true}, nil
}

// tailRead takes only the tail lock, for queries that never touch head.
func (l *Log) tailRead() (*tailGuard, error) {
	if !l.tailLock.rlock(l.wait) {
		return nil, fmt.Errorf("tail read lock: %w", ErrLockTimeout)
	}
	return &tailGuard{l: l}, nil
}

func (g *tailGuard) release() {
	if g.done {
		return
	}
	g.done = true
	if g.write {
		g.l.tailLock.unlock()
	} else {
		g.l.tailLock.runlock()
	}
}
