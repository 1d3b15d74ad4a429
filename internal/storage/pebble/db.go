package pebblestore

import (
	"errors"
	"time"

	"github.com/cockroachdb/pebble"
)

// defaultGroupCommit is the WAL sync coalescing window applied when no
// fsync policy is chosen.
const defaultGroupCommit = 5 * time.Millisecond

// FsyncMode selects when committed writes reach stable storage.
type FsyncMode int

const (
	FsyncModeUnspecified FsyncMode = iota
	// FsyncModeAlways syncs the WAL on every committed batch. A version is
	// durable the moment its commit returns.
	FsyncModeAlways
	// FsyncModeInterval lets Pebble coalesce WAL syncs within the configured
	// interval (group commit). Versions become durable a bounded time after
	// commit.
	FsyncModeInterval
	// FsyncModeNever issues no application-driven WAL syncs. Versions count
	// as durable only after an explicit Sync barrier.
	FsyncModeNever
)

// ParseFsyncMode converts a mode name. Accepts "always", "interval" and
// "never"; the empty string means interval.
func ParseFsyncMode(s string) (FsyncMode, error) {
	switch s {
	case "", "interval":
		return FsyncModeInterval, nil
	case "always":
		return FsyncModeAlways, nil
	case "never":
		return FsyncModeNever, nil
	default:
		return FsyncModeUnspecified, errors.New("unknown fsync mode " + s)
	}
}

func (m FsyncMode) String() string {
	switch m {
	case FsyncModeAlways:
		return "always"
	case FsyncModeInterval:
		return "interval"
	case FsyncModeNever:
		return "never"
	default:
		return "unspecified"
	}
}

// Options carries the open-time settings for the wrapper.
type Options struct {
	// DataDir locates the database on disk.
	DataDir string
	// Fsync picks the WAL sync policy.
	Fsync FsyncMode
	// FsyncInterval bounds WAL sync coalescing under FsyncModeInterval.
	FsyncInterval time.Duration
	// PebbleOptions tunes the underlying store. Nil picks defaults.
	PebbleOptions *pebble.Options
	// Metrics observes read, commit and sync latencies. Optional.
	Metrics MetricsHook
}

// MetricsHook receives storage timings. Hooks run inline on the read and
// write paths and must be cheap.
type MetricsHook interface {
	ObserveRead(elapsed time.Duration, bytes int)
	ObserveBatchCommit(elapsed time.Duration, numOps int, bytes int)
	ObserveSync(elapsed time.Duration)
}

// NoopMetrics discards all observations.
type NoopMetrics struct{}

func (NoopMetrics) ObserveRead(time.Duration, int)             {}
func (NoopMetrics) ObserveBatchCommit(time.Duration, int, int) {}
func (NoopMetrics) ObserveSync(time.Duration)                  {}

// DB wraps a Pebble database with an fsync policy and the small helper
// surface the block store needs.
type DB struct {
	inner     *pebble.DB
	writeSync bool
	metrics   MetricsHook
}

// Open creates or opens the database at Options.DataDir.
func Open(opts Options) (*DB, error) {
	if opts.DataDir == "" {
		return nil, errors.New("pebble: Options.DataDir is required")
	}

	po := opts.PebbleOptions
	if po == nil {
		po = &pebble.Options{}
	}
	switch opts.Fsync {
	case FsyncModeAlways, FsyncModeNever:
		// No coalescing window. Always syncs per commit; never relies on
		// explicit barriers.
	case FsyncModeInterval:
		interval := opts.FsyncInterval
		if interval <= 0 {
			interval = defaultGroupCommit
		}
		po.WALMinSyncInterval = func() time.Duration { return interval }
	default:
		po.WALMinSyncInterval = func() time.Duration { return defaultGroupCommit }
	}

	inner, err := pebble.Open(opts.DataDir, po)
	if err != nil {
		return nil, err
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &DB{
		inner:     inner,
		writeSync: opts.Fsync == FsyncModeAlways,
		metrics:   metrics,
	}, nil
}

// Close closes the database.
func (db *DB) Close() error {
	if db == nil || db.inner == nil {
		return nil
	}
	return db.inner.Close()
}

// SyncOnCommit reports whether commits sync the WAL themselves.
func (db *DB) SyncOnCommit() bool { return db.writeSync }

// NewBatch creates a batch for atomic multi-key updates.
func (db *DB) NewBatch() *pebble.Batch {
	return db.inner.NewBatch()
}

// CommitBatch commits b under the configured fsync policy.
func (db *DB) CommitBatch(b *pebble.Batch) error {
	if b == nil {
		return errors.New("pebble: nil batch")
	}
	start := time.Now()
	numOps := int(b.Count())
	size := b.Len()
	defer func() { db.metrics.ObserveBatchCommit(time.Since(start), numOps, size) }()

	syncMode := pebble.NoSync
	if db.writeSync {
		syncMode = pebble.Sync
	}
	return b.Commit(syncMode)
}

// Sync forces the WAL to stable storage by committing a synced marker
// record. Everything committed before the call is durable once it returns.
// An empty batch will not do here: the commit pipeline short-circuits
// batches with no records, so the WAL never gets fsynced.
func (db *DB) Sync() error {
	start := time.Now()
	defer func() { db.metrics.ObserveSync(time.Since(start)) }()

	return db.inner.LogData(nil, pebble.Sync)
}

// Set writes one key through a single-op batch under the fsync policy.
func (db *DB) Set(key, value []byte) error {
	b := db.inner.NewBatch()
	defer b.Close()
	if err := b.Set(key, value, nil); err != nil {
		return err
	}
	return db.CommitBatch(b)
}

// Get copies the value for key.
func (db *DB) Get(key []byte) ([]byte, error) {
	start := time.Now()
	val, closer, err := db.inner.Get(key)
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	buf := append([]byte(nil), val...)
	db.metrics.ObserveRead(time.Since(start), len(buf))
	return buf, nil
}

// NewIter returns an iterator over the raw keyspace.
func (db *DB) NewIter(opts *pebble.IterOptions) (*pebble.Iterator, error) {
	return db.inner.NewIter(opts)
}
