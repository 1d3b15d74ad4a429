package persistlog

import (
	"fmt"

	"github.com/NB-T/derecho/pkg/hlc"
)

// searchLocked returns the first index in [head, tail) whose entry satisfies
// pred, or tail when none does. pred must be monotone over the live window:
// false for a prefix, true for the rest. Caller holds both read locks.
func (l *Log) searchLocked(pred func(Entry) bool) (int64, error) {
	lo, hi := l.meta.Head, l.meta.Tail
	for lo < hi {
		mid := lo + (hi-lo)/2
		ent, err := l.backend.ReadEntry(l.meta.ID, mid)
		if err != nil {
			return 0, fmt.Errorf("read entry %d: %w", mid, err)
		}
		if pred(ent) {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo, nil
}

func (l *Log) lowerBoundVersionLocked(ver int64) (int64, error) {
	return l.searchLocked(func(e Entry) bool { return e.Version >= ver })
}

func (l *Log) upperBoundVersionLocked(ver int64) (int64, error) {
	return l.searchLocked(func(e Entry) bool { return e.Version > ver })
}

func (l *Log) lowerBoundTimeLocked(ts hlc.HLC) (int64, error) {
	return l.searchLocked(func(e Entry) bool { return e.Time.Compare(ts) >= 0 })
}

func (l *Log) upperBoundTimeLocked(ts hlc.HLC) (int64, error) {
	return l.searchLocked(func(e Entry) bool { return e.Time.Compare(ts) > 0 })
}

// VersionIndex returns the index of the live entry with exactly this
// version, or ErrVersionNotFound.
func (l *Log) VersionIndex(ver int64) (int64, error) {
	head, err := l.headRead()
	if err != nil {
		return 0, err
	}
	defer head.release()
	tail, err := head.tailRead()
	if err != nil {
		return 0, err
	}
	defer tail.release()

	idx, err := l.lowerBoundVersionLocked(ver)
	if err != nil {
		return 0, err
	}
	if idx < l.meta.Tail {
		ent, err := l.backend.ReadEntry(l.meta.ID, idx)
		if err != nil {
			return 0, err
		}
		if ent.Version == ver {
			return idx, nil
		}
	}
	return 0, fmt.Errorf("version %d: %w", ver, ErrVersionNotFound)
}

// HLCIndex returns the index of the live entry with exactly this timestamp,
// or ErrTimestampNotFound.
func (l *Log) HLCIndex(ts hlc.HLC) (int64, error) {
	head, err := l.headRead()
	if err != nil {
		return 0, err
	}
	defer head.release()
	tail, err := head.tailRead()
	if err != nil {
		return 0, err
	}
	defer tail.release()

	idx, err := l.lowerBoundTimeLocked(ts)
	if err != nil {
		return 0, err
	}
	if idx < l.meta.Tail {
		ent, err := l.backend.ReadEntry(l.meta.ID, idx)
		if err != nil {
			return 0, err
		}
		if ent.Time.Compare(ts) == 0 {
			return idx, nil
		}
	}
	return 0, fmt.Errorf("timestamp %v: %w", ts, ErrTimestampNotFound)
}

// LowerBound returns the first live index whose version is at least ver, or
// tail when there is none.
func (l *Log) LowerBound(ver int64) (int64, error) {
	head, err := l.headRead()
	if err != nil {
		return 0, err
	}
	defer head.release()
	tail, err := head.tailRead()
	if err != nil {
		return 0, err
	}
	defer tail.release()

	return l.lowerBoundVersionLocked(ver)
}

// UpperBound returns the first live index whose version is greater than ver,
// or tail when there is none.
func (l *Log) UpperBound(ver int64) (int64, error) {
	head, err := l.headRead()
	if err != nil {
		return 0, err
	}
	defer head.release()
	tail, err := head.tailRead()
	if err != nil {
		return 0, err
	}
	defer tail.release()

	return l.upperBoundVersionLocked(ver)
}

// LowerBoundHLC returns the first live index whose timestamp is at least ts,
// or tail when there is none.
func (l *Log) LowerBoundHLC(ts hlc.HLC) (int64, error) {
	head, err := l.headRead()
	if err != nil {
		return 0, err
	}
	defer head.release()
	tail, err := head.tailRead()
	if err != nil {
		return 0, err
	}
	defer tail.release()

	return l.lowerBoundTimeLocked(ts)
}

// UpperBoundHLC returns the first live index whose timestamp is greater than
// ts, or tail when there is none.
func (l *Log) UpperBoundHLC(ts hlc.HLC) (int64, error) {
	head, err := l.headRead()
	if err != nil {
		return 0, err
	}
	defer head.release()
	tail, err := head.tailRead()
	if err != nil {
		return 0, err
	}
	defer tail.release()

	return l.upperBoundTimeLocked(ts)
}
