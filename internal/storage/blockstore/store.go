package blockstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/NB-T/derecho/internal/persistlog"
	pebblestore "github.com/NB-T/derecho/internal/storage/pebble"
	"github.com/NB-T/derecho/pkg/log"
)

const (
	defaultSyncEvery  = 200 * time.Millisecond
	defaultQueueDepth = 64
)

// Options configures a Store.
type Options struct {
	// Geometry is the index table layout shared by every log in the store.
	// Zero value means persistlog.DefaultGeometry.
	Geometry persistlog.Geometry

	// SyncEvery is how often the write worker raises a WAL barrier to
	// promote pending versions when the database does not sync on commit.
	// Zero means a 200ms default; negative disables the periodic barrier.
	SyncEvery time.Duration

	// QueueDepth bounds the write queue. Zero means 64.
	QueueDepth int

	Logger log.Logger
}

// LogInfo identifies one registered log.
type LogInfo struct {
	Name string
	ID   uint32
}

// Store implements persistlog.Backend on top of a Pebble database. All
// writes funnel through a single ordered worker; reads go straight to the
// database.
type Store struct {
	db     *pebblestore.DB
	geo    persistlog.Geometry
	logger log.Logger

	// regMu serializes registry lookups and id assignment.
	regMu sync.Mutex

	// mu guards the durability maps. lastWritten is the highest version
	// known flushed per log; pending holds versions committed but not yet
	// past a WAL barrier.
	mu          sync.Mutex
	lastWritten map[uint32]int64
	pending     map[uint32]int64

	reqCh      chan *writeReq
	stopCh     chan struct{}
	workerDone chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// Open starts a Store over an already opened database. The caller keeps
// ownership of the database and closes it after the store.
func Open(db *pebblestore.DB, opts Options) (*Store, error) {
	if db == nil {
		return nil, errors.New("blockstore: nil db")
	}
	geo := opts.Geometry
	if geo == (persistlog.Geometry{}) {
		geo = persistlog.DefaultGeometry()
	}
	if err := geo.Validate(); err != nil {
		return nil, fmt.Errorf("blockstore: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	depth := opts.QueueDepth
	if depth <= 0 {
		depth = defaultQueueDepth
	}
	syncEvery := opts.SyncEvery
	if syncEvery == 0 {
		syncEvery = defaultSyncEvery
	}

	s := &Store{
		db:          db,
		geo:         geo,
		logger:      logger.WithComponent("blockstore"),
		lastWritten: make(map[uint32]int64),
		pending:     make(map[uint32]int64),
		reqCh:       make(chan *writeReq, depth),
		stopCh:      make(chan struct{}),
		workerDone:  make(chan struct{}),
	}

	go s.run(syncEvery)
	return s, nil
}

// Close stops the write worker and flushes any pending versions with a
// final WAL barrier. The underlying database stays open.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopCh)
		<-s.workerDone
		s.closeErr = s.syncBarrier()
	})
	return s.closeErr
}

// Geometry reports the index table layout appends are validated against.
func (s *Store) Geometry() persistlog.Geometry { return s.geo }

// Load resolves a name to its log id, assigning a fresh id on first use,
// and recovers the durable metadata. A record marked not in use is
// reinitialized as an empty log.
func (s *Store) Load(name string) (persistlog.Meta, error) {
	if name == "" {
		return persistlog.Meta{}, errors.New("blockstore: empty log name")
	}
	s.regMu.Lock()
	defer s.regMu.Unlock()

	id, err := s.resolveID(name)
	if err != nil {
		return persistlog.Meta{}, err
	}

	mb, err := s.db.Get(KeyLogMeta(id))
	switch {
	case err == nil:
		meta, ok := persistlog.DecodeMeta(mb)
		if !ok {
			return persistlog.Meta{}, fmt.Errorf("log %q meta: %w", name, ErrCorruptRecord)
		}
		if meta.InUse {
			meta.ID = id
			s.resetDurable(id, meta.Version)
			return meta, nil
		}
	case errors.Is(err, pebble.ErrNotFound):
	default:
		return persistlog.Meta{}, fmt.Errorf("log %q meta: %w", name, err)
	}

	meta := persistlog.Meta{ID: id, Version: -1, InUse: true}
	if err := s.db.Set(KeyLogMeta(id), persistlog.EncodeMeta(meta)); err != nil {
		return persistlog.Meta{}, fmt.Errorf("log %q init: %w", name, err)
	}
	s.resetDurable(id, -1)
	s.logger.Debug("log initialized", log.Str("name", name), log.Uint32("id", id))
	return meta, nil
}

// resolveID returns the id registered for name, assigning and persisting
// the next free id when the name is new. Caller holds regMu.
func (s *Store) resolveID(name string) (uint32, error) {
	idb, err := s.db.Get(KeyLogName(name))
	if err == nil {
		if len(idb) < 4 {
			return 0, fmt.Errorf("log %q registry: %w", name, ErrCorruptRecord)
		}
		return binary.BigEndian.Uint32(idb), nil
	}
	if !errors.Is(err, pebble.ErrNotFound) {
		return 0, fmt.Errorf("log %q registry: %w", name, err)
	}

	next := uint32(1)
	nb, err := s.db.Get(KeyNextID())
	if err == nil && len(nb) >= 4 {
		next = binary.BigEndian.Uint32(nb)
	} else if err != nil && !errors.Is(err, pebble.ErrNotFound) {
		return 0, fmt.Errorf("next id: %w", err)
	}

	b := s.db.NewBatch()
	defer b.Close()
	if err := b.Set(KeyLogName(name), appendBE4(nil, next), nil); err != nil {
		return 0, err
	}
	if err := b.Set(KeyNextID(), appendBE4(nil, next+1), nil); err != nil {
		return 0, err
	}
	if err := s.db.CommitBatch(b); err != nil {
		return 0, fmt.Errorf("log %q assign id: %w", name, err)
	}
	s.logger.Debug("log registered", log.Str("name", name), log.Uint32("id", next))
	return next, nil
}

// LookupID resolves a name without registering it.
func (s *Store) LookupID(name string) (uint32, error) {
	idb, err := s.db.Get(KeyLogName(name))
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, fmt.Errorf("log %q: %w", name, ErrUnknownLog)
	}
	if err != nil {
		return 0, err
	}
	if len(idb) < 4 {
		return 0, fmt.Errorf("log %q registry: %w", name, ErrCorruptRecord)
	}
	return binary.BigEndian.Uint32(idb), nil
}

// ListLogs scans the registry and returns every log sorted by name.
func (s *Store) ListLogs() ([]LogInfo, error) {
	low := append([]byte(nil), namePrefix...)
	hi := append(append([]byte(nil), namePrefix[:len(namePrefix)-1]...), namePrefix[len(namePrefix)-1]+1)

	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: hi})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []LogInfo
	for iter.First(); iter.Valid(); iter.Next() {
		if len(iter.Value()) < 4 {
			continue
		}
		out = append(out, LogInfo{
			Name: string(iter.Key()[len(namePrefix):]),
			ID:   binary.BigEndian.Uint32(iter.Value()),
		})
	}
	return out, iter.Error()
}

// ReadEntry fetches the descriptor at a logical index, wrapping it into the
// address space.
func (s *Store) ReadEntry(id uint32, index int64) (persistlog.Entry, error) {
	return s.ReadEntrySlot(id, s.geo.Slot(index))
}

// ReadEntrySlot fetches the descriptor stored at a physical slot.
func (s *Store) ReadEntrySlot(id uint32, slot int64) (persistlog.Entry, error) {
	b, err := s.db.Get(KeyLogEntry(id, uint64(slot)))
	if err != nil {
		return persistlog.Entry{}, fmt.Errorf("log %d entry slot %d: %w", id, slot, err)
	}
	ent, ok := persistlog.DecodeEntry(b)
	if !ok {
		return persistlog.Entry{}, fmt.Errorf("log %d entry slot %d: %w", id, slot, ErrCorruptRecord)
	}
	return ent, nil
}

// ReadData fetches the payload at a logical index and verifies its
// checksum.
func (s *Store) ReadData(id uint32, index int64) ([]byte, error) {
	slot := s.geo.Slot(index)
	b, err := s.db.Get(KeyLogData(id, uint64(slot)))
	if err != nil {
		return nil, fmt.Errorf("log %d data slot %d: %w", id, slot, err)
	}
	payload, ok := DecodeDataRecord(b)
	if !ok {
		return nil, fmt.Errorf("log %d data slot %d: %w", id, slot, ErrCorruptRecord)
	}
	return payload, nil
}

// LastWrittenVersion reports the highest version known durably flushed for
// the log, -1 when nothing has been.
func (s *Store) LastWrittenVersion(id uint32) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.lastWritten[id]; ok {
		return v
	}
	return -1
}

// resetDurable seeds the durability maps for a freshly loaded log.
// Whatever was read back from the database is durable by definition.
func (s *Store) resetDurable(id uint32, version int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastWritten[id] = version
	delete(s.pending, id)
}
