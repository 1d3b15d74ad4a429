package persistlog

import (
	"errors"
	"fmt"
	"time"

	"github.com/NB-T/derecho/pkg/hlc"
)

// Options configures a Log.
type Options struct {
	// LockWait bounds every head/tail lock acquisition; exceeding it yields
	// ErrLockTimeout. Zero means DefaultLockWait.
	LockWait time.Duration

	// PayloadMax caps a single payload's size in bytes. Zero means no cap.
	// The cap applies to replicated appends too.
	PayloadMax int64
}

func (o Options) lockWait() time.Duration {
	if o.LockWait <= 0 {
		return DefaultLockWait
	}
	return o.LockWait
}

// Log is a versioned, append-only log over a storage Backend. Live entries
// occupy the window [head, tail); versions increase strictly across appends.
// Safe for concurrent use.
type Log struct {
	name       string
	backend    Backend
	geo        Geometry
	wait       time.Duration
	payloadMax int64

	headLock boundedRW
	tailLock boundedRW

	// meta.Head is guarded by headLock; meta.Tail and meta.Version by
	// tailLock. Mutations store only the fields their write lock guards;
	// whole-struct stores are legal only under both write locks (Open,
	// Zeroout). ID never changes; InUse changes only under both.
	meta Meta
}

// Open registers the named log with the backend and loads, or initializes,
// its metadata. Both write locks are held across the load so no operation
// can observe a half-initialized log.
func Open(name string, backend Backend, opts Options) (*Log, error) {
	if backend == nil {
		return nil, errors.New("nil backend")
	}
	geo := backend.Geometry()
	if err := geo.Validate(); err != nil {
		return nil, fmt.Errorf("backend geometry: %w", err)
	}
	l := &Log{name: name, backend: backend, geo: geo, wait: opts.lockWait(), payloadMax: opts.PayloadMax}

	head, err := l.headWrite()
	if err != nil {
		return nil, err
	}
	defer head.release()
	tail, err := head.tailWrite()
	if err != nil {
		return nil, err
	}
	defer tail.release()

	meta, err := backend.Load(name)
	if err != nil {
		return nil, fmt.Errorf("load %q: %w", name, err)
	}
	l.meta = meta
	return l, nil
}

// Name returns the log's registered name.
func (l *Log) Name() string { return l.name }

// ID returns the backend-assigned log identifier.
func (l *Log) ID() uint32 { return l.meta.ID }

// Append writes one entry. The version must be strictly greater than the
// latest appended version, and the live span must stay within the backend's
// index table capacity. On failure nothing is mutated.
func (l *Log) Append(data []byte, ver int64, ts hlc.HLC) error {
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

	return l.appendLocked(data, ver, ts)
}

// appendLocked allocates the slot at tail, chains the data offset from the
// predecessor, and hands payload, descriptor, and updated metadata to the
// backend as one durable write. Caller holds head (read) and tail (write).
func (l *Log) appendLocked(data []byte, ver int64, ts hlc.HLC) error {
	if l.payloadMax > 0 && int64(len(data)) > l.payloadMax {
		return fmt.Errorf("payload %d bytes over cap %d: %w", len(data), l.payloadMax, ErrPayloadTooLarge)
	}
	if ver <= l.meta.Version {
		return fmt.Errorf("append version %d after %d: %w", ver, l.meta.Version, ErrOutOfOrderVersion)
	}
	if l.geo.SegmentSpan(l.meta.Head, l.meta.Tail) > l.geo.IndexSegments {
		return fmt.Errorf("window [%d, %d): %w", l.meta.Head, l.meta.Tail, ErrLogFull)
	}

	ent := Entry{Version: ver, Time: ts, DataLength: int64(len(data))}
	if l.meta.Tail > l.meta.Head {
		last, err := l.backend.ReadEntry(l.meta.ID, l.meta.Tail-1)
		if err != nil {
			return fmt.Errorf("read entry %d: %w", l.meta.Tail-1, err)
		}
		ent.DataOffset = last.DataOffset + last.DataLength
	}

	meta := l.meta
	meta.Version = ver
	meta.Tail++
	if err := l.backend.Append(meta.ID, data, ent, l.geo.Slot(meta.Tail-1), meta); err != nil {
		return fmt.Errorf("append version %d: %w", ver, err)
	}
	// Only the tail write lock is held; Head must not be stored.
	l.meta.Version = meta.Version
	l.meta.Tail = meta.Tail
	return nil
}

// AdvanceVersion records a version boundary without appending an entry.
// Same ordering rule as Append; persists metadata only.
func (l *Log) AdvanceVersion(ver int64) error {
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

	if ver <= l.meta.Version {
		return fmt.Errorf("advance to version %d after %d: %w", ver, l.meta.Version, ErrOutOfOrderVersion)
	}
	meta := l.meta
	meta.Version = ver
	if err := l.backend.UpdateMetadata(meta.ID, meta); err != nil {
		return fmt.Errorf("advance to version %d: %w", ver, err)
	}
	l.meta.Version = ver
	return nil
}

// Length reports the number of live entries.
func (l *Log) Length() (int64, error) {
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

	return l.meta.Tail - l.meta.Head, nil
}

// EarliestIndex reports the index of the oldest live entry.
func (l *Log) EarliestIndex() (int64, error) {
	head, err := l.headRead()
	if err != nil {
		return 0, err
	}
	defer head.release()
	return l.meta.Head, nil
}

// LatestIndex reports the index of the newest live entry, head-1 when the
// log is empty.
func (l *Log) LatestIndex() (int64, error) {
	tail, err := l.tailRead()
	if err != nil {
		return 0, err
	}
	defer tail.release()
	return l.meta.Tail - 1, nil
}

// EarliestVersion reports the version of the oldest live entry.
func (l *Log) EarliestVersion() (int64, error) {
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

	if l.meta.Tail == l.meta.Head {
		return 0, fmt.Errorf("empty log: %w", ErrIndexOutOfRange)
	}
	ent, err := l.backend.ReadEntry(l.meta.ID, l.meta.Head)
	if err != nil {
		return 0, err
	}
	return ent.Version, nil
}

// LatestVersion reports the latest appended version, -1 when none.
func (l *Log) LatestVersion() (int64, error) {
	tail, err := l.tailRead()
	if err != nil {
		return 0, err
	}
	defer tail.release()
	return l.meta.Version, nil
}

// Stat returns a consistent snapshot of the log metadata.
func (l *Log) Stat() (Meta, error) {
	head, err := l.headRead()
	if err != nil {
		return Meta{}, err
	}
	defer head.release()
	tail, err := head.tailRead()
	if err != nil {
		return Meta{}, err
	}
	defer tail.release()

	return l.meta, nil
}

// Entry returns the index descriptor at a logical index.
func (l *Log) Entry(index int64) (Entry, error) {
	head, err := l.headRead()
	if err != nil {
		return Entry{}, err
	}
	defer head.release()
	tail, err := head.tailRead()
	if err != nil {
		return Entry{}, err
	}
	defer tail.release()

	if err := l.checkIndexLocked(index); err != nil {
		return Entry{}, err
	}
	return l.backend.ReadEntry(l.meta.ID, index)
}

// Data returns the payload at a logical index.
func (l *Log) Data(index int64) ([]byte, error) {
	head, err := l.headRead()
	if err != nil {
		return nil, err
	}
	defer head.release()
	tail, err := head.tailRead()
	if err != nil {
		return nil, err
	}
	defer tail.release()

	if err := l.checkIndexLocked(index); err != nil {
		return nil, err
	}
	return l.backend.ReadData(l.meta.ID, index)
}

func (l *Log) checkIndexLocked(index int64) error {
	if index < l.meta.Head || index >= l.meta.Tail {
		return fmt.Errorf("index %d outside [%d, %d): %w", index, l.meta.Head, l.meta.Tail, ErrIndexOutOfRange)
	}
	return nil
}

// DataAtVersion returns the payload in effect at a version: the newest live
// entry with version at most ver.
func (l *Log) DataAtVersion(ver int64) ([]byte, error) {
	head, err := l.headRead()
	if err != nil {
		return nil, err
	}
	defer head.release()
	tail, err := head.tailRead()
	if err != nil {
		return nil, err
	}
	defer tail.release()

	idx, err := l.upperBoundVersionLocked(ver)
	if err != nil {
		return nil, err
	}
	if idx <= l.meta.Head {
		return nil, fmt.Errorf("no entry at or before version %d: %w", ver, ErrVersionNotFound)
	}
	return l.backend.ReadData(l.meta.ID, idx-1)
}

// DataAtTime returns the payload in effect at a timestamp: the newest live
// entry with timestamp at most ts.
func (l *Log) DataAtTime(ts hlc.HLC) ([]byte, error) {
	head, err := l.headRead()
	if err != nil {
		return nil, err
	}
	defer head.release()
	tail, err := head.tailRead()
	if err != nil {
		return nil, err
	}
	defer tail.release()

	idx, err := l.upperBoundTimeLocked(ts)
	if err != nil {
		return nil, err
	}
	if idx <= l.meta.Head {
		return nil, fmt.Errorf("no entry at or before %v: %w", ts, ErrTimestampNotFound)
	}
	return l.backend.ReadData(l.meta.ID, idx-1)
}

// LastPersisted reports the highest version known durably flushed, which can
// lag LatestVersion while writes ride a relaxed fsync policy. Callers use it
// as a durability barrier before acknowledging replication.
func (l *Log) LastPersisted() int64 {
	return l.backend.LastWrittenVersion(l.meta.ID)
}

// Persist forces a backend durability barrier and returns the resulting
// last persisted version.
func (l *Log) Persist() (int64, error) {
	return l.backend.Sync(l.meta.ID)
}
