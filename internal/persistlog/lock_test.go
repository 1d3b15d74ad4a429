package persistlog

import (
	"errors"
	"testing"
	"time"
)

func openShortWaitLog(t *testing.T) *Log {
	t.Helper()
	b := newMemBackend(DefaultGeometry())
	l, err := Open("lock.obj", b, Options{LockWait: 30 * time.Millisecond})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return l
}

func TestLockTimeout(t *testing.T) {
	l := openShortWaitLog(t)
	guard, err := l.headWrite()
	if err != nil {
		t.Fatalf("head write: %v", err)
	}
	if err := l.Append([]byte("x"), 1, ts(10, 0)); !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("append under held head lock: %v, want ErrLockTimeout", err)
	}
	guard.release()
	if err := l.Append([]byte("x"), 1, ts(10, 0)); err != nil {
		t.Fatalf("append after release: %v", err)
	}
}

func TestTailOnlyReadsSkipHead(t *testing.T) {
	l := openShortWaitLog(t)
	if err := l.Append([]byte("a"), 1, ts(10, 0)); err != nil {
		t.Fatalf("append: %v", err)
	}
	guard, err := l.headWrite()
	if err != nil {
		t.Fatalf("head write: %v", err)
	}
	defer guard.release()

	// tail-only queries proceed while head is held exclusively
	if v, err := l.LatestVersion(); err != nil || v != 1 {
		t.Fatalf("latest under head lock = %d, %v, want 1", v, err)
	}
	if idx, err := l.LatestIndex(); err != nil || idx != 0 {
		t.Fatalf("latest index under head lock = %d, %v, want 0", idx, err)
	}
	// queries that need head do not
	if _, err := l.Length(); !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("length under held head lock: %v, want ErrLockTimeout", err)
	}
}

func TestWriterBlocksUnderTailLock(t *testing.T) {
	l := openShortWaitLog(t)
	head, err := l.headRead()
	if err != nil {
		t.Fatalf("head read: %v", err)
	}
	tail, err := head.tailWrite()
	if err != nil {
		t.Fatalf("tail write: %v", err)
	}
	if _, err := l.LatestVersion(); !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("tail read under held tail lock: %v, want ErrLockTimeout", err)
	}
	tail.release()
	head.release()
	if _, err := l.LatestVersion(); err != nil {
		t.Fatalf("latest after release: %v", err)
	}
}

func TestConcurrentReadersAndAppends(t *testing.T) {
	l, _ := openTestLog(t)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for v := int64(1); v <= 50; v++ {
			if err := l.Append([]byte("x"), v, ts(v, 0)); err != nil {
				t.Errorf("append %d: %v", v, err)
				return
			}
		}
	}()
	for {
		select {
		case <-done:
			if n, _ := l.Length(); n != 50 {
				t.Fatalf("length = %d, want 50", n)
			}
			return
		default:
			if _, err := l.LatestVersion(); err != nil {
				t.Fatalf("latest: %v", err)
			}
			if _, err := l.Length(); err != nil {
				t.Fatalf("length: %v", err)
			}
		}
	}
}

// Appends hold the tail write lock only, so they must leave Head's bytes
// alone: head-only readers run under the head read lock concurrently.
func TestConcurrentAppendsAndHeadReads(t *testing.T) {
	l, _ := openTestLog(t)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for v := int64(1); v <= 50; v++ {
			if err := l.Append([]byte("x"), v, ts(v, 0)); err != nil {
				t.Errorf("append %d: %v", v, err)
				return
			}
			if v%5 == 0 {
				if err := l.AdvanceVersion(v + 2); err != nil {
					t.Errorf("advance %d: %v", v+2, err)
					return
				}
				v += 2
			}
		}
	}()
	for {
		select {
		case <-done:
			if idx, err := l.EarliestIndex(); err != nil || idx != 0 {
				t.Fatalf("earliest index = %d, %v, want 0", idx, err)
			}
			return
		default:
			if idx, err := l.EarliestIndex(); err != nil || idx != 0 {
				t.Fatalf("earliest index moved during appends: %d, %v", idx, err)
			}
		}
	}
}

// Trims hold the head write lock only, so they must leave Tail and Version
// alone: tail-only readers run under the tail read lock concurrently.
func TestConcurrentTrimsAndTailReads(t *testing.T) {
	l, _ := openTestLog(t)
	for v := int64(1); v <= 40; v++ {
		mustAppend(t, l, "x", v)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for v := int64(1); v <= 30; v++ {
			if err := l.Trim(v); err != nil {
				t.Errorf("trim %d: %v", v, err)
				return
			}
		}
	}()
	for {
		select {
		case <-done:
			if idx, err := l.EarliestIndex(); err != nil || idx != 30 {
				t.Fatalf("earliest index = %d, %v, want 30", idx, err)
			}
			return
		default:
			if v, err := l.LatestVersion(); err != nil || v != 40 {
				t.Fatalf("latest version changed during trims: %d, %v", v, err)
			}
			if idx, err := l.LatestIndex(); err != nil || idx != 39 {
				t.Fatalf("latest index changed during trims: %d, %v", idx, err)
			}
		}
	}
}
