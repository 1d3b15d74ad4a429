package persistlog

import (
	"fmt"

	"github.com/NB-T/derecho/pkg/hlc"
)

// TrimByIndex advances head past index, logically deleting every entry up to
// and including it. Indices outside [head, tail) are a no-op, so repeated or
// stale trims are safe. Payload bytes are never touched; only the window
// moves.
func (l *Log) TrimByIndex(index int64) error {
	head, err := l.headWrite()
	if err != nil {
		return err
	}
	defer head.release()
	tail, err := head.tailRead()
	if err != nil {
		return err
	}
	defer tail.release()

	return l.trimByIndexLocked(index)
}

// trimByIndexLocked moves head. Caller holds head (write) and tail (read).
func (l *Log) trimByIndexLocked(index int64) error {
	if index < l.meta.Head || index >= l.meta.Tail {
		return nil
	}
	meta := l.meta
	meta.Head = index + 1
	if err := l.backend.UpdateMetadata(meta.ID, meta); err != nil {
		return fmt.Errorf("trim to index %d: %w", index, err)
	}
	// Only the head write lock is held; Tail and Version must not be stored.
	l.meta.Head = meta.Head
	return nil
}

// Trim logically deletes every entry with version at most ver.
func (l *Log) Trim(ver int64) error {
	head, err := l.headWrite()
	if err != nil {
		return err
	}
	defer head.release()
	tail, err := head.tailRead()
	if err != nil {
		return err
	}
	defer tail.release()

	// The newest index with version <= ver sits just before the first one
	// with version > ver.
	idx, err := l.upperBoundVersionLocked(ver)
	if err != nil {
		return err
	}
	return l.trimByIndexLocked(idx - 1)
}

// TrimByTime logically deletes every entry with timestamp at most ts.
func (l *Log) TrimByTime(ts hlc.HLC) error {
	head, err := l.headWrite()
	if err != nil {
		return err
	}
	defer head.release()
	tail, err := head.tailRead()
	if err != nil {
		return err
	}
	defer tail.release()

	idx, err := l.upperBoundTimeLocked(ts)
	if err != nil {
		return err
	}
	return l.trimByIndexLocked(idx - 1)
}

// Truncate rolls back every entry with version strictly greater than ver by
// retreating tail. Truncated entries are unrecoverable even though their
// bytes may still sit on disk. The latest version rolls back with the tail
// so subsequent appends can reuse the discarded range.
func (l *Log) Truncate(ver int64) error {
	head, err := l.headRead()
	if err != nil {
		return err
	}
	defer head.release()
	tail, err := head.tailWrite()
	if err != nil {
		return err
	}
	defer tail.release()

	idx, err := l.upperBoundVersionLocked(ver)
	if err != nil {
		return err
	}
	meta := l.meta
	meta.Tail = idx
	if meta.Tail > meta.Head {
		last, err := l.backend.ReadEntry(meta.ID, meta.Tail-1)
		if err != nil {
			return fmt.Errorf("read entry %d: %w", meta.Tail-1, err)
		}
		meta.Version = last.Version
	} else if meta.Version > ver {
		// Empty window: adopt the request, floored at the empty sentinel.
		meta.Version = ver
		if meta.Version < -1 {
			meta.Version = -1
		}
	}
	if err := l.backend.UpdateMetadata(meta.ID, meta); err != nil {
		return fmt.Errorf("truncate to version %d: %w", ver, err)
	}
	// Only the tail write lock is held; Head must not be stored.
	l.meta.Tail = meta.Tail
	l.meta.Version = meta.Version
	return nil
}

// Zeroout erases the log for identifier reuse: head and tail reset to zero
// and the in-use flag clears. The next Load of the name starts fresh.
func (l *Log) Zeroout() error {
	head, err := l.headWrite()
	if err != nil {
		return err
	}
	defer head.release()
	tail, err := head.tailWrite()
	if err != nil {
		return err
	}
	defer tail.release()

	meta := l.meta
	meta.Head = 0
	meta.Tail = 0
	meta.InUse = false
	if err := l.backend.UpdateMetadata(meta.ID, meta); err != nil {
		return fmt.Errorf("zeroout: %w", err)
	}
	l.meta = meta
	return nil
}
